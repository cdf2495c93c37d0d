package service

import (
	"context"
	"time"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
)

// The engine talks to persistence through the interfaces below.  The
// SQL implementation in internal/store composes the repositories with
// row-level guards for multi-process deployments; the in-memory
// implementation uses a per-key mutex map and backs single-process
// mode and the engine tests.  Compound operations are atomic in both:
// a hold and its counter move together, a booking and its tickets
// commit together.

// ReservationStore persists availability counters and reservations.
type ReservationStore interface {
	// Availability returns the current counters for one slot, or
	// repository.ErrSlotNotFound.
	Availability(ctx context.Context, key model.SlotKey) (model.AvailabilitySlot, error)

	// PlaceHold atomically reserves res.Quantity units of the slot and
	// persists the HELD reservation.  Fails with
	// repository.ErrInsufficientCapacity or repository.ErrSlotNotFound
	// without mutating anything.
	PlaceHold(ctx context.Context, res *model.Reservation) error

	// GetReservation loads one reservation, or
	// repository.ErrReservationNotFound.
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)

	// ConfirmHold transitions HELD -> CONFIRMED and moves the quantity
	// from reserved to booked, iff the hold is still HELD and its
	// deadline is after now.  Exactly one of any set of concurrent
	// terminal transitions wins.  Returns the reservation as confirmed,
	// or repository.ErrAlreadyExpired / repository.ErrAlreadyConfirmed /
	// repository.ErrReservationNotFound.
	ConfirmHold(ctx context.Context, id string, now time.Time) (*model.Reservation, error)

	// ReleaseHold transitions HELD -> to (EXPIRED or RELEASED) and
	// returns the quantity to the pool.  Reports false without error
	// when the reservation is already terminal: release is idempotent.
	ReleaseHold(ctx context.Context, id string, to model.ReservationState) (bool, error)

	// ListExpired returns up to limit HELD reservations with deadlines
	// at or before now, for the background sweep.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
}

// BookingStore persists bookings and their tickets.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *model.Booking) error

	// GetBooking loads one booking, or repository.ErrBookingNotFound.
	GetBooking(ctx context.Context, id string) (*model.Booking, error)

	// FinalizeBooking marks the booking CONFIRMED with the payment
	// transaction id and persists its tickets, atomically.  Reports
	// false when the booking was not PENDING_PAYMENT, which keeps
	// duplicate payment webhooks idempotent.
	FinalizeBooking(ctx context.Context, id, paymentTxID string, tickets []model.Ticket) (bool, error)

	// CancelBooking marks a PENDING_PAYMENT booking CANCELLED; with
	// reversalRequired it additionally parks it for reconciliation.
	CancelBooking(ctx context.Context, id string, reversalRequired bool) (bool, error)

	// FlagReversal parks a booking for reconciliation regardless of its
	// current status (cancelling it if still pending).  Used when a
	// payment lands for inventory that no longer exists.
	FlagReversal(ctx context.Context, id string) error

	TicketsByBooking(ctx context.Context, bookingID string) ([]model.Ticket, error)
}

// TicketStore is the validation-side view of issued tickets.
type TicketStore interface {
	// GetTicketByCode resolves a scanned code, or
	// repository.ErrTicketNotFound.
	GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error)

	// MarkTicketUsed flips VALID -> USED recording the scan; reports
	// false when the ticket was not VALID (atomic per ticket).
	MarkTicketUsed(ctx context.Context, ticketID, deviceID string, at time.Time) (bool, error)
}

// POIStore resolves points of interest for pricing and validation.
type POIStore interface {
	// GetPOI loads one POI, or repository.ErrPOINotFound.
	GetPOI(ctx context.Context, id uint64) (*model.POI, error)
}
