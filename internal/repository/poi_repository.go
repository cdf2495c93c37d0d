package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
)

// POIRepo provides read access to the pois table.  The guide platform
// owns POI content; this service only reads the booking-relevant
// projection (pricing, bookable flag, coordinates).
type POIRepo struct {
	db *sql.DB
}

// NewPOIRepo returns a POIRepo bound to the provided database.
func NewPOIRepo(db *sql.DB) *POIRepo { return &POIRepo{db: db} }

// GetByID loads one POI.  Returns ErrPOINotFound for unknown ids.
func (r *POIRepo) GetByID(ctx context.Context, id uint64) (*model.POI, error) {
	const q = `SELECT id, name, category, latitude, longitude, bookable, base_price_cents, currency, created_at, updated_at
	           FROM pois WHERE id = ?`
	var p model.POI
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.Name, &p.Category, &p.Latitude, &p.Longitude,
		&p.Bookable, &p.BasePriceCents, &p.Currency,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPOINotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListBookable returns all POIs that accept bookings, ordered by
// name.  Backs the public browse endpoint; the response is cacheable.
func (r *POIRepo) ListBookable(ctx context.Context) ([]model.POI, error) {
	const q = `SELECT id, name, category, latitude, longitude, bookable, base_price_cents, currency, created_at, updated_at
	           FROM pois WHERE bookable = TRUE ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.POI
	for rows.Next() {
		var p model.POI
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Category, &p.Latitude, &p.Longitude,
			&p.Bookable, &p.BasePriceCents, &p.Currency,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
