// Package store provides the persistence backends for the booking
// engine: a MySQL-backed store composing the repositories with
// row-level guards, and an in-memory store using a per-key mutex map
// for single-process deployments and tests.  Both implement the
// interfaces the service layer consumes.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/repository"
)

// SQLStore runs the engine's compound operations as database
// transactions.  The individual statements carry their own guards
// (capacity checks and state checks in WHERE clauses), so the store
// is safe for workers spread over multiple processes; the transaction
// only ties the pieces of one operation together.
type SQLStore struct {
	db           *sql.DB
	availability *repository.AvailabilityRepo
	reservations *repository.ReservationRepo
	bookings     *repository.BookingRepo
	tickets      *repository.TicketRepo
	pois         *repository.POIRepo
}

// NewSQLStore builds the store and its repositories over one database
// handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:           db,
		availability: repository.NewAvailabilityRepo(db),
		reservations: repository.NewReservationRepo(db),
		bookings:     repository.NewBookingRepo(db),
		tickets:      repository.NewTicketRepo(db),
		pois:         repository.NewPOIRepo(db),
	}
}

// Availability answers a capacity query for one slot.
func (s *SQLStore) Availability(ctx context.Context, key model.SlotKey) (model.AvailabilitySlot, error) {
	return s.availability.Snapshot(ctx, key)
}

// SeedSlot creates a slot or raises its capacity.  Called by the
// capacity-management sync, never by the booking flow.
func (s *SQLStore) SeedSlot(ctx context.Context, key model.SlotKey, totalCapacity uint32) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.availability.SeedTx(ctx, tx, key, totalCapacity)
	})
}

// PlaceHold reserves capacity and persists the HELD reservation in
// one transaction; rollback restores the counters if the insert
// fails.
func (s *SQLStore) PlaceHold(ctx context.Context, res *model.Reservation) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.availability.ReserveTx(ctx, tx, res.Slot, res.Quantity); err != nil {
			return err
		}
		return s.reservations.CreateTx(ctx, tx, res)
	})
}

// GetReservation loads one reservation.
func (s *SQLStore) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return s.reservations.Get(ctx, id)
}

// ConfirmHold transitions HELD -> CONFIRMED and moves the quantity to
// booked.  The initial read locks the row, so the state it decides on
// is current, not the REPEATABLE READ snapshot; a snapshot read here
// could classify a reservation as confirmable after another process
// already released it and returned the capacity.
func (s *SQLStore) ConfirmHold(ctx context.Context, id string, now time.Time) (*model.Reservation, error) {
	var out *model.Reservation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := s.reservations.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := classifyHeld(res, now); err != nil {
			return err
		}
		won, err := s.reservations.TransitionTx(ctx, tx, id, model.ReservationConfirmed)
		if err != nil {
			return err
		}
		if !won {
			// Cannot happen while the row lock is held; never report
			// success without having moved the capacity.
			return repository.ErrConflict
		}
		if err := s.availability.ConfirmTx(ctx, tx, res.Slot, res.Quantity); err != nil {
			return err
		}
		res.State = model.ReservationConfirmed
		out = res
		return nil
	})
	return out, err
}

// ReleaseHold transitions HELD -> to and returns the quantity to the
// pool.  Already-terminal reservations report false without error.
// The read locks the row for the same reason ConfirmHold's does.
func (s *SQLStore) ReleaseHold(ctx context.Context, id string, to model.ReservationState) (bool, error) {
	released := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := s.reservations.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if res.State.Terminal() {
			return nil
		}
		won, err := s.reservations.TransitionTx(ctx, tx, id, to)
		if err != nil || !won {
			return err
		}
		if err := s.availability.ReleaseTx(ctx, tx, res.Slot, res.Quantity); err != nil {
			return err
		}
		released = true
		return nil
	})
	return released, err
}

// ListExpired returns lapsed HELD reservations for the sweep.
func (s *SQLStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	return s.reservations.ListExpired(ctx, now, limit)
}

// CreateBooking persists a new pending booking.
func (s *SQLStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.bookings.CreateTx(ctx, tx, b)
	})
}

// GetBooking loads one booking.
func (s *SQLStore) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	return s.bookings.Get(ctx, id)
}

// FinalizeBooking confirms the booking and inserts its tickets in one
// transaction, so status CONFIRMED and the ticket rows are one fact.
func (s *SQLStore) FinalizeBooking(ctx context.Context, id, paymentTxID string, tickets []model.Ticket) (bool, error) {
	finalized := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		won, err := s.bookings.ConfirmTx(ctx, tx, id, paymentTxID)
		if err != nil || !won {
			return err
		}
		if err := s.tickets.CreateBatchTx(ctx, tx, tickets); err != nil {
			return err
		}
		finalized = true
		return nil
	})
	return finalized, err
}

// CancelBooking cancels a pending booking.
func (s *SQLStore) CancelBooking(ctx context.Context, id string, reversalRequired bool) (bool, error) {
	cancelled := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		won, err := s.bookings.CancelTx(ctx, tx, id, reversalRequired)
		cancelled = won
		return err
	})
	return cancelled, err
}

// FlagReversal parks a booking for reconciliation.
func (s *SQLStore) FlagReversal(ctx context.Context, id string) error {
	return s.bookings.FlagReversal(ctx, id)
}

// TicketsByBooking lists a booking's tickets.
func (s *SQLStore) TicketsByBooking(ctx context.Context, bookingID string) ([]model.Ticket, error) {
	return s.tickets.ListByBooking(ctx, bookingID)
}

// GetTicketByCode resolves a scanned code.
func (s *SQLStore) GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
	return s.tickets.GetByCode(ctx, code)
}

// MarkTicketUsed burns a ticket.
func (s *SQLStore) MarkTicketUsed(ctx context.Context, ticketID, deviceID string, at time.Time) (bool, error) {
	return s.tickets.MarkUsed(ctx, ticketID, deviceID, at)
}

// ListReversalRequired returns bookings parked for refunds, for the
// operator surface.
func (s *SQLStore) ListReversalRequired(ctx context.Context, limit int) ([]model.Booking, error) {
	return s.bookings.ListReversalRequired(ctx, limit)
}

// GetBookingByReference resolves the human-shareable reference.
func (s *SQLStore) GetBookingByReference(ctx context.Context, ref string) (*model.Booking, error) {
	return s.bookings.GetByReference(ctx, ref)
}

// GetPOI loads one POI.
func (s *SQLStore) GetPOI(ctx context.Context, id uint64) (*model.POI, error) {
	return s.pois.GetByID(ctx, id)
}

// ListBookablePOIs lists POIs open for booking.
func (s *SQLStore) ListBookablePOIs(ctx context.Context) ([]model.POI, error) {
	return s.pois.ListBookable(ctx)
}

// Devices exposes the validator device repository for the auth
// handler.
func (s *SQLStore) Devices() *repository.DeviceRepo {
	return repository.NewDeviceRepo(s.db)
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// classifyHeld maps a reservation's state at confirm time onto the
// sentinel taxonomy.  HELD past its deadline counts as expired even
// though the row has not transitioned yet; no confirm may succeed
// past expires_at.
func classifyHeld(res *model.Reservation, now time.Time) error {
	switch res.State {
	case model.ReservationConfirmed:
		return repository.ErrAlreadyConfirmed
	case model.ReservationExpired, model.ReservationReleased:
		return repository.ErrAlreadyExpired
	}
	if res.ExpiredBy(now) {
		return repository.ErrAlreadyExpired
	}
	return nil
}
