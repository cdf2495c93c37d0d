package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
)

// BookingRepo provides data access to the bookings table.  A booking
// is written once in PENDING_PAYMENT and then only ever moves through
// guarded status UPDATEs, mirroring the reservation state machine it
// is joined to.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts a new booking within the caller's transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
	           (id, reference, reservation_id, poi_id, slot_date, timeslot, quantity,
	            guest_name, guest_email, guest_phone,
	            total_amount_cents, currency, payment_tx_id, status, reversal_required, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	_, err := tx.ExecContext(ctx, q,
		b.ID, b.Reference, b.ReservationID,
		b.Slot.POIID, b.Slot.Date, b.Slot.Timeslot, b.Quantity,
		b.Guest.Name, b.Guest.Email, b.Guest.Phone,
		b.TotalAmountCents, b.Currency, b.PaymentTxID, string(b.Status), b.ReversalRequired,
		now, now,
	)
	return err
}

// Get loads one booking by id.  Returns ErrBookingNotFound for
// unknown ids.
func (r *BookingRepo) Get(ctx context.Context, id string) (*model.Booking, error) {
	return r.getWhere(ctx, r.db, "id = ?", id)
}

// GetTx is Get inside the caller's transaction.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.Booking, error) {
	return r.getWhere(ctx, tx, "id = ?", id)
}

// GetByReference loads one booking by its human-shareable reference,
// the code guests quote at support desks.
func (r *BookingRepo) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
	return r.getWhere(ctx, r.db, "reference = ?", ref)
}

func (r *BookingRepo) getWhere(ctx context.Context, ex execer, cond string, arg any) (*model.Booking, error) {
	q := `SELECT id, reference, reservation_id, poi_id, slot_date, timeslot, quantity,
	             guest_name, guest_email, guest_phone,
	             total_amount_cents, currency, payment_tx_id, status, reversal_required, created_at, updated_at
	      FROM bookings WHERE ` + cond
	var b model.Booking
	var status string
	err := ex.QueryRowContext(ctx, q, arg).Scan(
		&b.ID, &b.Reference, &b.ReservationID,
		&b.Slot.POIID, &b.Slot.Date, &b.Slot.Timeslot, &b.Quantity,
		&b.Guest.Name, &b.Guest.Email, &b.Guest.Phone,
		&b.TotalAmountCents, &b.Currency, &b.PaymentTxID, &status, &b.ReversalRequired,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	return &b, nil
}

// ConfirmTx moves a booking from PENDING_PAYMENT to CONFIRMED and
// records the payment transaction id.  Guarded on the current status;
// returns false when the booking was not pending, which the
// orchestrator uses to keep duplicate webhooks idempotent.
func (r *BookingRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, id, paymentTxID string) (bool, error) {
	const q = `UPDATE bookings
	           SET status = ?, payment_tx_id = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(model.BookingConfirmed), paymentTxID, id, string(model.BookingPendingPayment))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CancelTx moves a booking from PENDING_PAYMENT to CANCELLED.  When
// reversalRequired is set the booking is additionally flagged for
// reconciliation: payment was captured but the inventory was lost.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id string, reversalRequired bool) (bool, error) {
	const q = `UPDATE bookings
	           SET status = ?, reversal_required = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(model.BookingCancelled), reversalRequired, id, string(model.BookingPendingPayment))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FlagReversal parks a booking for reconciliation regardless of its
// current status.  A still-pending booking is cancelled in the same
// statement; a confirmed one keeps its status, only the flag is
// raised.
func (r *BookingRepo) FlagReversal(ctx context.Context, id string) error {
	const q = `UPDATE bookings
	           SET reversal_required = TRUE,
	               status = IF(status = ?, ?, status),
	               updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	// Rows-affected is not checked: MySQL reports zero both for an
	// unknown id and for a repeat of an identical update, and the
	// callers have already resolved the booking.
	_, err := r.db.ExecContext(ctx, q, string(model.BookingPendingPayment), string(model.BookingCancelled), id)
	return err
}

// ListReversalRequired returns bookings parked for reconciliation,
// oldest first, for the operator surface.
func (r *BookingRepo) ListReversalRequired(ctx context.Context, limit int) ([]model.Booking, error) {
	const q = `SELECT id, reference, reservation_id, poi_id, slot_date, timeslot, quantity,
	                  guest_name, guest_email, guest_phone,
	                  total_amount_cents, currency, payment_tx_id, status, reversal_required, created_at, updated_at
	           FROM bookings
	           WHERE reversal_required = TRUE
	           ORDER BY updated_at
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		var status string
		if err := rows.Scan(
			&b.ID, &b.Reference, &b.ReservationID,
			&b.Slot.POIID, &b.Slot.Date, &b.Slot.Timeslot, &b.Quantity,
			&b.Guest.Name, &b.Guest.Email, &b.Guest.Phone,
			&b.TotalAmountCents, &b.Currency, &b.PaymentTxID, &status, &b.ReversalRequired,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		b.Status = model.BookingStatus(status)
		out = append(out, b)
	}
	return out, rows.Err()
}
