package model

import "time"

// SlotKey addresses one unit of bookable inventory: a point of
// interest on a given date, optionally narrowed to a timeslot.  An
// empty Timeslot means the whole day.  Dates are plain "YYYY-MM-DD"
// strings and timeslots "HH:MM-HH:MM"; both are treated as opaque keys
// by the engine and interpreted only at the admission gate.
type SlotKey struct {
	POIID    uint64 // availability_slots.poi_id
	Date     string // availability_slots.slot_date
	Timeslot string // availability_slots.timeslot ("" for all-day)
}

// AvailabilitySlot tracks capacity counters for one slot.  The
// counters are only ever mutated through the availability store's
// atomic operations; reserved counts active holds, booked counts
// confirmed purchases.
//
// Invariant: ReservedCount + BookedCount <= TotalCapacity, and neither
// counter is ever negative.
type AvailabilitySlot struct {
	ID            uint64    // availability_slots.id
	Key           SlotKey   // poi_id + slot_date + timeslot
	TotalCapacity uint32    // availability_slots.total_capacity
	ReservedCount uint32    // availability_slots.reserved_count
	BookedCount   uint32    // availability_slots.booked_count
	CreatedAt     time.Time // availability_slots.created_at
	UpdatedAt     time.Time // availability_slots.updated_at
}

// Available returns the capacity still open for new holds.
func (s AvailabilitySlot) Available() uint32 {
	used := s.ReservedCount + s.BookedCount
	if used >= s.TotalCapacity {
		return 0
	}
	return s.TotalCapacity - used
}

// AvailabilitySnapshot is the read model returned to clients asking
// whether a slot can still be booked.  It carries no identities and
// has no side effects.
type AvailabilitySnapshot struct {
	POIID         uint64 `json:"poi_id"`
	Date          string `json:"date"`
	Timeslot      string `json:"timeslot,omitempty"`
	TotalCapacity uint32 `json:"total_capacity"`
	Available     uint32 `json:"available"`
}
