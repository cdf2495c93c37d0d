package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
)

// ReservationRepo provides data access to the reservations table.
// State transitions are guarded UPDATEs conditioned on the current
// state, so a check-then-act against a reservation is atomic at the
// row level even with workers on multiple machines.  All timestamps
// are UTC; callers must not compare expirations in local time.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the provided
// database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// CreateTx inserts a new HELD reservation within the caller's
// transaction, normally the same transaction that reserved the slot
// capacity so the hold and the counter move together.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
	           (id, poi_id, slot_date, timeslot, quantity, state, guest_name, guest_email, guest_phone, created_at, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		res.ID, res.Slot.POIID, res.Slot.Date, res.Slot.Timeslot,
		res.Quantity, string(res.State),
		res.Guest.Name, res.Guest.Email, res.Guest.Phone,
		res.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		res.ExpiresAt.UTC().Format("2006-01-02 15:04:05"),
	)
	return err
}

// Get loads one reservation by id.  Returns ErrReservationNotFound
// for unknown ids.
func (r *ReservationRepo) Get(ctx context.Context, id string) (*model.Reservation, error) {
	return r.getRow(ctx, r.db, id, false)
}

// GetTx is Get inside the caller's transaction.
func (r *ReservationRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.Reservation, error) {
	return r.getRow(ctx, tx, id, false)
}

// GetForUpdateTx reads the reservation with SELECT ... FOR UPDATE.
// The locking read returns the latest committed row rather than the
// transaction's consistent snapshot and holds the row lock until
// commit.  State-deciding paths must use this; a snapshot read can
// report HELD for a row another transaction already moved to a
// terminal state.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Reservation, error) {
	return r.getRow(ctx, tx, id, true)
}

func (r *ReservationRepo) getRow(ctx context.Context, ex execer, id string, lock bool) (*model.Reservation, error) {
	q := `SELECT id, poi_id, slot_date, timeslot, quantity, state, guest_name, guest_email, guest_phone, created_at, expires_at
	      FROM reservations WHERE id = ?`
	if lock {
		q += " FOR UPDATE"
	}
	var res model.Reservation
	var state string
	err := ex.QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.Slot.POIID, &res.Slot.Date, &res.Slot.Timeslot,
		&res.Quantity, &state,
		&res.Guest.Name, &res.Guest.Email, &res.Guest.Phone,
		&res.CreatedAt, &res.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	res.State = model.ReservationState(state)
	return &res, nil
}

// TransitionTx moves a reservation out of HELD into the given
// terminal state.  The WHERE clause carries the state check, so of
// any number of concurrent confirm/expire/release attempts exactly
// one wins; the losers see zero rows affected and get false back.
// Terminal states are immutable, there is no path back to HELD.
func (r *ReservationRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id string, to model.ReservationState) (bool, error) {
	if !to.Terminal() {
		return false, errors.New("reservation transition target must be terminal")
	}
	const q = `UPDATE reservations SET state = ? WHERE id = ? AND state = ?`
	res, err := tx.ExecContext(ctx, q, string(to), id, string(model.ReservationHeld))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListExpired returns up to limit HELD reservations whose deadline has
// passed.  The background sweep feeds each one through the same
// guarded transition as lazy expiry, so finding a reservation here is
// only a hint, never a decision.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	const q = `SELECT id, poi_id, slot_date, timeslot, quantity, state, guest_name, guest_email, guest_phone, created_at, expires_at
	           FROM reservations
	           WHERE state = ? AND expires_at <= ?
	           ORDER BY expires_at
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, string(model.ReservationHeld), now.UTC().Format("2006-01-02 15:04:05"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		var state string
		if err := rows.Scan(
			&res.ID, &res.Slot.POIID, &res.Slot.Date, &res.Slot.Timeslot,
			&res.Quantity, &state,
			&res.Guest.Name, &res.Guest.Email, &res.Guest.Phone,
			&res.CreatedAt, &res.ExpiresAt,
		); err != nil {
			return nil, err
		}
		res.State = model.ReservationState(state)
		out = append(out, res)
	}
	return out, rows.Err()
}
