// Package repository provides raw-SQL data access for the booking
// engine.  This file defines the sentinel errors shared across
// repositories and services.  Higher layers compare them with
// errors.Is and translate them into HTTP responses or typed results;
// nothing in the reservation path is allowed to fail silently.
package repository

import "errors"

// ErrSlotNotFound is returned when no availability slot is configured
// for the requested POI/date/timeslot.  Handlers translate it into a
// 404 response.
var ErrSlotNotFound = errors.New("availability slot not found")

// ErrInsufficientCapacity is returned when a hold asks for more units
// than the slot has available.  User facing ("sold out"); retrying
// with the same parameters cannot succeed.
var ErrInsufficientCapacity = errors.New("insufficient capacity")

// ErrReservationNotFound is returned for unknown reservation ids.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrAlreadyExpired is returned when a confirmation arrives after the
// hold's deadline.  If payment was already captured the orchestrator
// parks the booking for reversal instead of swallowing the conflict.
var ErrAlreadyExpired = errors.New("reservation already expired")

// ErrAlreadyConfirmed is returned for a duplicate confirmation
// attempt.  Callers treat it as success and return the existing
// booking; payment webhooks are retried and must stay idempotent.
var ErrAlreadyConfirmed = errors.New("reservation already confirmed")

// ErrBookingNotFound is returned for unknown booking ids or
// references.
var ErrBookingNotFound = errors.New("booking not found")

// ErrTicketNotFound is returned when a scanned code does not resolve
// to a ticket.  The validate boundary reports it as valid:false, it
// never propagates past that surface.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrPOINotFound is returned for unknown points of interest.
var ErrPOINotFound = errors.New("poi not found")

// ErrDeviceNotFound is returned when a validator device id is unknown
// or the device has been deactivated.
var ErrDeviceNotFound = errors.New("validator device not found")

// ErrConflict signals that a state transition lost to a concurrent
// writer, e.g. two gates scanning the same ticket or two sweeps
// releasing the same hold.  Callers decide whether that is an error
// (double admission) or a no-op (double release).
var ErrConflict = errors.New("conflict")
