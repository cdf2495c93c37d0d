package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
)

// DeviceRepo provides data access to the validator_devices table.
// Devices are provisioned out of band by the admin module; this
// service only authenticates them and stamps their last activity.
type DeviceRepo struct {
	db *sql.DB
}

// NewDeviceRepo returns a DeviceRepo bound to the provided database.
func NewDeviceRepo(db *sql.DB) *DeviceRepo { return &DeviceRepo{db: db} }

// GetActive loads an active validator device by id.  Returns
// ErrDeviceNotFound when the id is unknown or the device has been
// deactivated; callers cannot distinguish the two cases, which keeps
// probing uninformative.
func (r *DeviceRepo) GetActive(ctx context.Context, id string) (*model.ValidatorDevice, error) {
	const q = `SELECT id, poi_id, label, key_hash, active, created_at, last_seen_at
	           FROM validator_devices WHERE id = ? AND active = TRUE`
	var d model.ValidatorDevice
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.POIID, &d.Label, &d.KeyHash, &d.Active, &d.CreatedAt, &d.LastSeenAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// TouchLastSeen stamps the device's last activity.  Best effort, the
// caller ignores the result for the login path.
func (r *DeviceRepo) TouchLastSeen(ctx context.Context, id string) error {
	const q = `UPDATE validator_devices SET last_seen_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}
