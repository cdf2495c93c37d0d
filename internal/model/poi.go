package model

import "time"

// POI is a point of interest from the destination guide that can be
// booked through this engine.  The guide platform owns the full
// content record (descriptions, media, translations); only the fields
// the booking flow needs are mirrored here.  Capacity itself lives in
// availability_slots, seeded by the capacity-management module.
type POI struct {
	ID             uint64    // pois.id
	Name           string    // pois.name
	Category       string    // pois.category (museum, boat trip, ...)
	Latitude       float64   // pois.latitude
	Longitude      float64   // pois.longitude
	Bookable       bool      // pois.bookable
	BasePriceCents uint32    // pois.base_price_cents (per unit)
	Currency       string    // pois.currency
	CreatedAt      time.Time // pois.created_at
	UpdatedAt      time.Time // pois.updated_at
}
