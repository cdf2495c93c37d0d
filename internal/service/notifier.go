package service

import (
	"context"
	"log"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
)

// Notifier is the notification collaborator boundary.  Both calls are
// fire-and-forget from the orchestrator's point of view: a failed
// notification is logged and never rolls back a booking.
type Notifier interface {
	// BookingConfirmed announces a confirmed booking with its tickets
	// so the notification module can mail the guest.
	BookingConfirmed(ctx context.Context, b *model.Booking, tickets []model.Ticket) error

	// ReversalRequired announces a paid-but-expired conflict for the
	// reconciliation queue.
	ReversalRequired(ctx context.Context, b *model.Booking, paymentTxID string) error
}

// LogNotifier writes notifications to the process log.  It stands in
// when no message broker is configured so the flow keeps working in
// development.
type LogNotifier struct{}

func (LogNotifier) BookingConfirmed(_ context.Context, b *model.Booking, tickets []model.Ticket) error {
	log.Printf("notify: booking confirmed id=%s ref=%s tickets=%d guest=%s", b.ID, b.Reference, len(tickets), b.Guest.Email)
	return nil
}

func (LogNotifier) ReversalRequired(_ context.Context, b *model.Booking, paymentTxID string) error {
	log.Printf("notify: REVERSAL REQUIRED booking=%s ref=%s payment_tx=%s amount=%d %s", b.ID, b.Reference, paymentTxID, b.TotalAmountCents, b.Currency)
	return nil
}
