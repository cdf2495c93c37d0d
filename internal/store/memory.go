package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/repository"
)

// Memory keeps the whole engine state in process memory with a mutex
// per availability slot and a coarse lock over the record maps.  It
// backs single-node deployments without a database and is what the
// engine tests run against.  Nothing here survives a restart;
// production multi-worker setups use SQLStore.
type Memory struct {
	mu           sync.RWMutex
	slots        map[model.SlotKey]*memSlot
	reservations map[string]*model.Reservation
	bookings     map[string]*model.Booking
	tickets      map[string]*model.Ticket // by ticket id
	ticketCodes  map[string]string        // code -> ticket id
	pois         map[uint64]*model.POI
}

type memSlot struct {
	mu       sync.Mutex
	total    uint32
	reserved uint32
	booked   uint32
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		slots:        make(map[model.SlotKey]*memSlot),
		reservations: make(map[string]*model.Reservation),
		bookings:     make(map[string]*model.Booking),
		tickets:      make(map[string]*model.Ticket),
		ticketCodes:  make(map[string]string),
		pois:         make(map[uint64]*model.POI),
	}
}

// SeedSlot configures capacity for one slot, creating or resizing it.
func (m *Memory) SeedSlot(key model.SlotKey, totalCapacity uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[key]; ok {
		s.mu.Lock()
		s.total = totalCapacity
		s.mu.Unlock()
		return
	}
	m.slots[key] = &memSlot{total: totalCapacity}
}

// AddPOI registers a point of interest.
func (m *Memory) AddPOI(p model.POI) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.pois[p.ID] = &cp
}

func (m *Memory) slot(key model.SlotKey) (*memSlot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[key]
	return s, ok
}

// Availability answers a capacity query for one slot.
func (m *Memory) Availability(_ context.Context, key model.SlotKey) (model.AvailabilitySlot, error) {
	s, ok := m.slot(key)
	if !ok {
		return model.AvailabilitySlot{}, repository.ErrSlotNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.AvailabilitySlot{
		Key:           key,
		TotalCapacity: s.total,
		ReservedCount: s.reserved,
		BookedCount:   s.booked,
	}, nil
}

// PlaceHold reserves capacity and records the HELD reservation.  The
// capacity check and the increment happen under the slot's mutex
// nested inside the store lock (always in that order), so two
// concurrent requests for the last unit cannot both succeed.
func (m *Memory) PlaceHold(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[res.Slot]
	if !ok {
		return repository.ErrSlotNotFound
	}
	s.mu.Lock()
	if s.total-s.reserved-s.booked < res.Quantity {
		s.mu.Unlock()
		return repository.ErrInsufficientCapacity
	}
	s.reserved += res.Quantity
	s.mu.Unlock()

	cp := *res
	m.reservations[res.ID] = &cp
	return nil
}

// GetReservation loads a copy of one reservation.
func (m *Memory) GetReservation(_ context.Context, id string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

// ConfirmHold transitions HELD -> CONFIRMED and moves the quantity
// from reserved to booked, iff the deadline is still ahead of now.
func (m *Memory) ConfirmHold(_ context.Context, id string, now time.Time) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	switch res.State {
	case model.ReservationConfirmed:
		return nil, repository.ErrAlreadyConfirmed
	case model.ReservationExpired, model.ReservationReleased:
		return nil, repository.ErrAlreadyExpired
	}
	if res.ExpiredBy(now) {
		return nil, repository.ErrAlreadyExpired
	}

	s, ok := m.slots[res.Slot]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	s.mu.Lock()
	s.reserved -= res.Quantity
	s.booked += res.Quantity
	s.mu.Unlock()

	res.State = model.ReservationConfirmed
	cp := *res
	return &cp, nil
}

// ReleaseHold transitions HELD -> to and returns the quantity to the
// pool; already-terminal reservations report false.
func (m *Memory) ReleaseHold(_ context.Context, id string, to model.ReservationState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return false, repository.ErrReservationNotFound
	}
	if res.State.Terminal() {
		return false, nil
	}
	s, ok := m.slots[res.Slot]
	if !ok {
		return false, repository.ErrSlotNotFound
	}
	s.mu.Lock()
	if s.reserved >= res.Quantity {
		s.reserved -= res.Quantity
	} else {
		s.reserved = 0
	}
	s.mu.Unlock()

	res.State = to
	return true, nil
}

// ListExpired returns lapsed HELD reservations, oldest deadline
// first.
func (m *Memory) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Reservation
	for _, res := range m.reservations {
		if res.State == model.ReservationHeld && res.ExpiredBy(now) {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateBooking records a new pending booking.
func (m *Memory) CreateBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.bookings[b.ID] = &cp
	return nil
}

// GetBooking loads a copy of one booking.
func (m *Memory) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

// FinalizeBooking confirms the booking and stores its tickets as one
// step under the store lock.
func (m *Memory) FinalizeBooking(_ context.Context, id, paymentTxID string, tickets []model.Ticket) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, repository.ErrBookingNotFound
	}
	if b.Status != model.BookingPendingPayment {
		return false, nil
	}
	b.Status = model.BookingConfirmed
	b.PaymentTxID = paymentTxID
	b.UpdatedAt = time.Now().UTC()
	for i := range tickets {
		cp := tickets[i]
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		m.tickets[cp.ID] = &cp
		m.ticketCodes[cp.Code] = cp.ID
	}
	return true, nil
}

// CancelBooking cancels a pending booking.
func (m *Memory) CancelBooking(_ context.Context, id string, reversalRequired bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, repository.ErrBookingNotFound
	}
	if b.Status != model.BookingPendingPayment {
		return false, nil
	}
	b.Status = model.BookingCancelled
	b.ReversalRequired = reversalRequired
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

// FlagReversal parks a booking for reconciliation.
func (m *Memory) FlagReversal(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.Status == model.BookingPendingPayment {
		b.Status = model.BookingCancelled
	}
	b.ReversalRequired = true
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// GetBookingByReference resolves the human-shareable reference.
func (m *Memory) GetBookingByReference(_ context.Context, ref string) (*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.Reference == ref {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

// ListReversalRequired returns bookings waiting for a refund, oldest
// first.
func (m *Memory) ListReversalRequired(_ context.Context, limit int) ([]model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.ReversalRequired {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TicketsByBooking lists a booking's tickets ordered by creation
// time, ties broken by id, matching the SQL store's ordering.
func (m *Memory) TicketsByBooking(_ context.Context, bookingID string) ([]model.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Ticket
	for _, t := range m.tickets {
		if t.BookingID == bookingID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetTicketByCode resolves a scanned code.
func (m *Memory) GetTicketByCode(_ context.Context, code string) (*model.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ticketCodes[code]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	cp := *m.tickets[id]
	return &cp, nil
}

// MarkTicketUsed flips VALID -> USED; concurrent scans of the same
// code serialize on the store lock and exactly one wins.
func (m *Memory) MarkTicketUsed(_ context.Context, ticketID, deviceID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return false, repository.ErrTicketNotFound
	}
	if t.Status != model.TicketValid {
		return false, nil
	}
	t.Status = model.TicketUsed
	stamp := at.UTC()
	t.ValidatedAt = &stamp
	t.ValidatorDeviceID = deviceID
	return true, nil
}

// GetPOI loads one POI.
func (m *Memory) GetPOI(_ context.Context, id uint64) (*model.POI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pois[id]
	if !ok {
		return nil, repository.ErrPOINotFound
	}
	cp := *p
	return &cp, nil
}

// ListBookablePOIs lists POIs open for booking, ordered by name.
func (m *Memory) ListBookablePOIs(_ context.Context) ([]model.POI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.POI
	for _, p := range m.pois {
		if p.Bookable {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
