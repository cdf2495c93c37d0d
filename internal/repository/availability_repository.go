package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
)

// AvailabilityRepo provides data access to the availability_slots
// table.  Counter mutations are expressed as single guarded UPDATE
// statements so the availability check and the adjustment are one
// indivisible operation at the database: two concurrent requests for
// the last unit cannot both see it free.  All timestamps are UTC.
type AvailabilityRepo struct {
	db *sql.DB
}

// NewAvailabilityRepo returns an AvailabilityRepo bound to the
// provided database.
func NewAvailabilityRepo(db *sql.DB) *AvailabilityRepo { return &AvailabilityRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning multiple repositories.
func (r *AvailabilityRepo) DB() *sql.DB { return r.db }

// Snapshot returns the current counters for one slot.  No side
// effects.  Returns ErrSlotNotFound when no slot is configured for
// the key.
func (r *AvailabilityRepo) Snapshot(ctx context.Context, key model.SlotKey) (model.AvailabilitySlot, error) {
	const q = `SELECT id, poi_id, slot_date, timeslot, total_capacity, reserved_count, booked_count, created_at, updated_at
	           FROM availability_slots
	           WHERE poi_id = ? AND slot_date = ? AND timeslot = ?`
	var s model.AvailabilitySlot
	err := r.db.QueryRowContext(ctx, q, key.POIID, key.Date, key.Timeslot).Scan(
		&s.ID, &s.Key.POIID, &s.Key.Date, &s.Key.Timeslot,
		&s.TotalCapacity, &s.ReservedCount, &s.BookedCount,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AvailabilitySlot{}, ErrSlotNotFound
	}
	if err != nil {
		return model.AvailabilitySlot{}, err
	}
	return s, nil
}

// ReserveTx moves quantity units into reserved_count if and only if
// the slot still has that much available.  The WHERE clause carries
// the capacity check, so the rows-affected count tells reservation
// from rejection without a read-modify-write window.  Returns
// ErrInsufficientCapacity when the slot exists but is too full, and
// ErrSlotNotFound when it does not exist at all.
func (r *AvailabilityRepo) ReserveTx(ctx context.Context, tx *sql.Tx, key model.SlotKey, quantity uint32) error {
	const q = `UPDATE availability_slots
	           SET reserved_count = reserved_count + ?
	           WHERE poi_id = ? AND slot_date = ? AND timeslot = ?
	             AND total_capacity - reserved_count - booked_count >= ?`
	res, err := tx.ExecContext(ctx, q, quantity, key.POIID, key.Date, key.Timeslot, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	return r.classifyMiss(ctx, tx, key, ErrInsufficientCapacity)
}

// ConfirmTx atomically moves quantity units from reserved_count to
// booked_count.  The guard reserved_count >= quantity means the call
// only succeeds against capacity that is actually held; callers pass
// the reservation's own quantity, never a raw number, so counters
// cannot drift.
func (r *AvailabilityRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, key model.SlotKey, quantity uint32) error {
	const q = `UPDATE availability_slots
	           SET reserved_count = reserved_count - ?, booked_count = booked_count + ?
	           WHERE poi_id = ? AND slot_date = ? AND timeslot = ?
	             AND reserved_count >= ?`
	res, err := tx.ExecContext(ctx, q, quantity, quantity, key.POIID, key.Date, key.Timeslot, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	return r.classifyMiss(ctx, tx, key, ErrConflict)
}

// ReleaseTx returns quantity units from reserved_count to the pool.
// The guard prevents the counter from going negative if a release
// races with a duplicate sweep; the reservation-level state machine is
// what makes release idempotent, this is the backstop.
func (r *AvailabilityRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, key model.SlotKey, quantity uint32) error {
	const q = `UPDATE availability_slots
	           SET reserved_count = reserved_count - ?
	           WHERE poi_id = ? AND slot_date = ? AND timeslot = ?
	             AND reserved_count >= ?`
	res, err := tx.ExecContext(ctx, q, quantity, key.POIID, key.Date, key.Timeslot, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	return r.classifyMiss(ctx, tx, key, ErrConflict)
}

// classifyMiss distinguishes "slot missing" from "guard failed" after
// a guarded UPDATE touched zero rows.
func (r *AvailabilityRepo) classifyMiss(ctx context.Context, tx *sql.Tx, key model.SlotKey, guardErr error) error {
	const q = `SELECT 1 FROM availability_slots WHERE poi_id = ? AND slot_date = ? AND timeslot = ?`
	var one int
	err := tx.QueryRowContext(ctx, q, key.POIID, key.Date, key.Timeslot).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSlotNotFound
	}
	if err != nil {
		return err
	}
	return guardErr
}

// SeedTx inserts a slot with the given total capacity or raises the
// capacity of an existing one.  Used by the capacity-management sync
// and by integration fixtures; the engine itself never creates slots.
func (r *AvailabilityRepo) SeedTx(ctx context.Context, tx *sql.Tx, key model.SlotKey, totalCapacity uint32) error {
	const q = `INSERT INTO availability_slots (poi_id, slot_date, timeslot, total_capacity, reserved_count, booked_count)
	           VALUES (?, ?, ?, ?, 0, 0)
	           ON DUPLICATE KEY UPDATE total_capacity = VALUES(total_capacity)`
	_, err := tx.ExecContext(ctx, q, key.POIID, key.Date, key.Timeslot, totalCapacity)
	return err
}

// execer is the subset of *sql.DB and *sql.Tx the repositories need,
// letting the same query run inside and outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
