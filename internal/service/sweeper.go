package service

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically releases lapsed holds so capacity comes back
// even when nobody queries the reservation.  Lazy expiry at confirm
// time remains the correctness guarantee; the sweep is hygiene.
type Sweeper struct {
	reservations *ReservationManager
	interval     time.Duration
	batch        int
}

// NewSweeper constructs a sweeper.  interval defaults to one minute
// and batch to 200 when zero.
func NewSweeper(reservations *ReservationManager, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	return &Sweeper{reservations: reservations, interval: interval, batch: batch}
}

// Run sweeps until the context is cancelled.  Intended to be started
// as a goroutine from main.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.reservations.ReleaseExpired(ctx, s.batch)
			if err != nil {
				log.Printf("sweeper: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweeper: released %d expired holds", n)
			}
		}
	}
}
