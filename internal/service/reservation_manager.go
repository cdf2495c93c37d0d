package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/repository"
)

// DefaultHoldDuration is how long a hold claims capacity before it
// lapses.  Holds are not renewable; a guest who runs out of time
// starts over.
const DefaultHoldDuration = 15 * time.Minute

// ReservationManager drives the hold state machine: PlaceHold claims
// capacity, Confirm converts it into a permanent booking once payment
// succeeded, Release returns it to the pool.  Expiry is enforced
// lazily on every Confirm and by the background sweep; both use the
// same deadline comparison so they cannot disagree.
type ReservationManager struct {
	store   ReservationStore
	holdDur time.Duration
	locks   *keyMutex
	now     func() time.Time
}

// ReservationManagerOption customises a ReservationManager.
type ReservationManagerOption func(*ReservationManager)

// WithHoldDuration overrides the default hold duration.
func WithHoldDuration(d time.Duration) ReservationManagerOption {
	return func(m *ReservationManager) {
		if d > 0 {
			m.holdDur = d
		}
	}
}

// WithClock overrides the time source.  Tests use it to move holds
// past their deadline without sleeping.
func WithClock(now func() time.Time) ReservationManagerOption {
	return func(m *ReservationManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewReservationManager constructs a manager over the given store.
func NewReservationManager(store ReservationStore, opts ...ReservationManagerOption) *ReservationManager {
	m := &ReservationManager{
		store:   store,
		holdDur: DefaultHoldDuration,
		locks:   newKeyMutex(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HoldDuration returns the configured hold duration.
func (m *ReservationManager) HoldDuration() time.Duration { return m.holdDur }

// Availability answers a capacity query for one slot.  No side
// effects.
func (m *ReservationManager) Availability(ctx context.Context, key model.SlotKey) (model.AvailabilitySnapshot, error) {
	var slot model.AvailabilitySlot
	err := withRetry(ctx, func() error {
		var err error
		slot, err = m.store.Availability(ctx, key)
		return err
	})
	if err != nil {
		return model.AvailabilitySnapshot{}, err
	}
	return model.AvailabilitySnapshot{
		POIID:         slot.Key.POIID,
		Date:          slot.Key.Date,
		Timeslot:      slot.Key.Timeslot,
		TotalCapacity: slot.TotalCapacity,
		Available:     slot.Available(),
	}, nil
}

// PlaceHold claims quantity units of the slot for the guest.  On
// success the reservation is HELD with a deadline holdDur from now;
// on repository.ErrInsufficientCapacity nothing was mutated.
func (m *ReservationManager) PlaceHold(ctx context.Context, key model.SlotKey, quantity uint32, guest model.GuestInfo) (*model.Reservation, error) {
	if quantity == 0 {
		return nil, errors.New("quantity must be positive")
	}
	now := m.now().UTC()
	res := &model.Reservation{
		ID:        uuid.NewString(),
		Slot:      key,
		Quantity:  quantity,
		State:     model.ReservationHeld,
		Guest:     guest,
		CreatedAt: now,
		ExpiresAt: now.Add(m.holdDur),
	}
	err := withRetry(ctx, func() error { return m.store.PlaceHold(ctx, res) })
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCapacity) {
			log.Printf("reservation: hold rejected poi=%d date=%s qty=%d: insufficient capacity", key.POIID, key.Date, quantity)
		}
		return nil, err
	}
	return res, nil
}

// GetReservation loads one reservation, expiring it on the way out if
// its deadline has passed.  This is the lazy half of the expiry
// policy: capacity comes back as soon as anyone looks.
func (m *ReservationManager) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	res, err := m.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.State == model.ReservationHeld && res.ExpiredBy(m.now().UTC()) {
		if _, err := m.expireLocked(ctx, res.ID); err != nil {
			return nil, err
		}
		res.State = model.ReservationExpired
	}
	return res, nil
}

// Confirm converts a HELD reservation into consumed capacity.  Fails
// with repository.ErrAlreadyExpired when the deadline has passed (the
// hold is expired as a side effect so the capacity returns
// immediately) and repository.ErrAlreadyConfirmed on duplicates.  The
// caller must not charge the guest on an ErrAlreadyExpired result.
func (m *ReservationManager) Confirm(ctx context.Context, id string) (*model.Reservation, error) {
	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	now := m.now().UTC()
	var res *model.Reservation
	err := withRetry(ctx, func() error {
		var err error
		res, err = m.store.ConfirmHold(ctx, id, now)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyExpired):
			// Make the lapse terminal right away rather than waiting
			// for the sweep.
			if _, relErr := m.expireLocked(ctx, id); relErr != nil {
				log.Printf("reservation: expire after failed confirm %s: %v", id, relErr)
			}
			log.Printf("reservation: confirm rejected %s: hold expired", id)
		case errors.Is(err, repository.ErrAlreadyConfirmed):
			log.Printf("reservation: confirm rejected %s: already confirmed", id)
		}
		return nil, err
	}
	return res, nil
}

// Release returns a HELD reservation's capacity to the pool, marking
// it RELEASED.  No-op when the reservation is already terminal;
// double releases are expected from racing sweeps and cancellations.
func (m *ReservationManager) Release(ctx context.Context, id string, reason string) error {
	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	var released bool
	err := withRetry(ctx, func() error {
		var err error
		released, err = m.store.ReleaseHold(ctx, id, model.ReservationReleased)
		return err
	})
	if err != nil {
		return err
	}
	if released {
		log.Printf("reservation: released %s (%s)", id, reason)
	}
	return nil
}

// ReleaseExpired is the sweep: it finds lapsed holds and expires
// them, returning how many it released.  Every candidate goes through
// the same guarded transition as lazy expiry, so racing a concurrent
// confirm or a second sweep is safe.
func (m *ReservationManager) ReleaseExpired(ctx context.Context, limit int) (int, error) {
	expired, err := m.store.ListExpired(ctx, m.now().UTC(), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range expired {
		id := expired[i].ID
		m.locks.Lock(id)
		released, err := m.expireLocked(ctx, id)
		m.locks.Unlock(id)
		if err != nil {
			log.Printf("reservation: sweep release %s: %v", id, err)
			continue
		}
		if released {
			n++
		}
	}
	return n, nil
}

func (m *ReservationManager) expireLocked(ctx context.Context, id string) (bool, error) {
	var released bool
	err := withRetry(ctx, func() error {
		var err error
		released, err = m.store.ReleaseHold(ctx, id, model.ReservationExpired)
		return err
	})
	if err != nil {
		return false, err
	}
	if released {
		log.Printf("reservation: expired %s", id)
	}
	return released, nil
}
