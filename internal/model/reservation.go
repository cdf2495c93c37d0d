package model

import "time"

// ReservationState enumerates the hold state machine.  HELD is the
// only non-terminal state; a reservation leaves it exactly once,
// through CONFIRMED (payment succeeded), EXPIRED (hold timed out) or
// RELEASED (explicit cancellation).  Terminal reservations are
// immutable.
type ReservationState string

const (
	ReservationHeld      ReservationState = "HELD"
	ReservationConfirmed ReservationState = "CONFIRMED"
	ReservationExpired   ReservationState = "EXPIRED"
	ReservationReleased  ReservationState = "RELEASED"
)

// Terminal reports whether the state admits no further transitions.
func (s ReservationState) Terminal() bool {
	return s == ReservationConfirmed || s == ReservationExpired || s == ReservationReleased
}

// GuestInfo is the contact data captured with a booking intent.  It
// travels with the reservation so the notification collaborator can
// reach the guest without a second lookup.
type GuestInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Reservation is a time-bounded claim on slot capacity.  While HELD it
// accounts for Quantity units of the slot's reserved_count; once
// terminal the quantity has either moved to booked_count (CONFIRMED)
// or returned to the pool (EXPIRED/RELEASED).
//
// Fields:
//  ID        – UUID primary key.
//  Slot      – the inventory slot the hold was placed against.
//  Quantity  – units claimed, always > 0.
//  State     – current state machine position.
//  Guest     – guest contact info attached at creation.
//  ExpiresAt – CreatedAt + configured hold duration; holds are not
//              renewable.
type Reservation struct {
	ID        string           // reservations.id (UUID)
	Slot      SlotKey          // reservations.poi_id / slot_date / timeslot
	Quantity  uint32           // reservations.quantity
	State     ReservationState // reservations.state
	Guest     GuestInfo        // reservations.guest_* columns
	CreatedAt time.Time        // reservations.created_at
	ExpiresAt time.Time        // reservations.expires_at
}

// ExpiredBy reports whether the hold's deadline has passed at the
// given instant.  Both the lazy confirm-time check and the background
// sweep use this single comparison so they can never disagree.
func (r *Reservation) ExpiredBy(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
