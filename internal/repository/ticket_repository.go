package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
)

// TicketRepo provides data access to the tickets table.  Tickets are
// inserted in one batch when a booking confirms and afterwards only
// the validation transition mutates them; rows are never deleted, the
// table is the admission audit trail.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// CreateBatchTx inserts all tickets for a booking in one statement
// within the caller's transaction, the same transaction that confirms
// the booking so status and ticket count can never disagree.
func (r *TicketRepo) CreateBatchTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	query := `INSERT INTO tickets (id, booking_id, code, status) VALUES `
	args := make([]any, 0, len(tickets)*4)
	for i, t := range tickets {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, t.ID, t.BookingID, t.Code, string(t.Status))
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByCode loads one ticket by its scannable code.  Returns
// ErrTicketNotFound for unknown codes.
func (r *TicketRepo) GetByCode(ctx context.Context, code string) (*model.Ticket, error) {
	const q = `SELECT id, booking_id, code, status, validated_at, validator_device_id, created_at
	           FROM tickets WHERE code = ?`
	var t model.Ticket
	var status string
	var validatedAt sql.NullTime
	var deviceID sql.NullString
	err := r.db.QueryRowContext(ctx, q, code).Scan(
		&t.ID, &t.BookingID, &t.Code, &status, &validatedAt, &deviceID, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = model.TicketStatus(status)
	if validatedAt.Valid {
		at := validatedAt.Time
		t.ValidatedAt = &at
	}
	if deviceID.Valid {
		t.ValidatorDeviceID = deviceID.String
	}
	return &t, nil
}

// ListByBooking returns all tickets issued for a booking, in issue
// order.
func (r *TicketRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.Ticket, error) {
	const q = `SELECT id, booking_id, code, status, validated_at, validator_device_id, created_at
	           FROM tickets WHERE booking_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		var t model.Ticket
		var status string
		var validatedAt sql.NullTime
		var deviceID sql.NullString
		if err := rows.Scan(&t.ID, &t.BookingID, &t.Code, &status, &validatedAt, &deviceID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Status = model.TicketStatus(status)
		if validatedAt.Valid {
			at := validatedAt.Time
			t.ValidatedAt = &at
		}
		if deviceID.Valid {
			t.ValidatorDeviceID = deviceID.String
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkUsed flips a ticket VALID -> USED, recording the accepting scan.
// The status guard in the WHERE clause makes the transition atomic per
// ticket: of two concurrent scans of the same code exactly one
// affects a row, the other gets false and the gate shows
// "already used".
func (r *TicketRepo) MarkUsed(ctx context.Context, ticketID, deviceID string, at time.Time) (bool, error) {
	const q = `UPDATE tickets
	           SET status = ?, validated_at = ?, validator_device_id = ?
	           WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q,
		string(model.TicketUsed), at.UTC().Format("2006-01-02 15:04:05"), deviceID,
		ticketID, string(model.TicketValid),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
