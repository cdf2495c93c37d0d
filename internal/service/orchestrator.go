package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/repository"
)

// ErrNotBookable is returned when a booking targets a POI the guide
// lists but does not sell admission for.
var ErrNotBookable = errors.New("poi not bookable")

// referenceAlphabet excludes lookalike characters; references are read
// out over the phone at support desks.
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBookingReference returns a human-shareable code like
// "TXM-7KQ2M9FA".
func NewBookingReference() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, 8)
	for i, v := range b {
		out[i] = referenceAlphabet[int(v)%len(referenceAlphabet)]
	}
	return "TXM-" + string(out), nil
}

// BookingStart is the answer to a booking intent: the pending booking
// plus where to send the guest to pay and how long the hold lasts.
type BookingStart struct {
	Booking    *model.Booking
	PaymentURL string
	ExpiresAt  time.Time
}

// BookingResult is a finalised booking with its tickets.
type BookingResult struct {
	Booking *model.Booking
	Tickets []model.Ticket
}

// BookingOrchestrator coordinates the end-to-end flow: capture guest
// info, place the hold, hand off to the payment module, and on the
// payment callback finalise the booking and issue tickets.  It owns
// the paid-but-expired conflict: such bookings are parked for
// reversal and surfaced, never silently confirmed or dropped.
type BookingOrchestrator struct {
	reservations *ReservationManager
	bookings     BookingStore
	pois         POIStore
	issuer       *TicketIssuer
	payment      PaymentCollaborator
	notifier     Notifier
	returnURL    string
}

// NewBookingOrchestrator wires the orchestrator.  All dependencies
// must be non-nil.
func NewBookingOrchestrator(
	reservations *ReservationManager,
	bookings BookingStore,
	pois POIStore,
	issuer *TicketIssuer,
	payment PaymentCollaborator,
	notifier Notifier,
	returnURL string,
) *BookingOrchestrator {
	if reservations == nil || bookings == nil || pois == nil || issuer == nil || payment == nil || notifier == nil {
		panic("nil dependency passed to NewBookingOrchestrator")
	}
	return &BookingOrchestrator{
		reservations: reservations,
		bookings:     bookings,
		pois:         pois,
		issuer:       issuer,
		payment:      payment,
		notifier:     notifier,
		returnURL:    returnURL,
	}
}

// StartBooking places a hold, records the pending booking and obtains
// a checkout URL from the payment module.  Priced from the POI's base
// price; the hold is compensated if any later step fails, so a
// rejected checkout never strands capacity until the sweep.
func (o *BookingOrchestrator) StartBooking(ctx context.Context, key model.SlotKey, quantity uint32, guest model.GuestInfo) (*BookingStart, error) {
	poi, err := o.pois.GetPOI(ctx, key.POIID)
	if err != nil {
		return nil, err
	}
	if !poi.Bookable {
		return nil, ErrNotBookable
	}

	res, err := o.reservations.PlaceHold(ctx, key, quantity, guest)
	if err != nil {
		return nil, err
	}

	ref, err := NewBookingReference()
	if err != nil {
		o.compensateHold(ctx, res.ID, "reference generation failed")
		return nil, err
	}
	booking := &model.Booking{
		ID:               uuid.NewString(),
		Reference:        ref,
		ReservationID:    res.ID,
		Slot:             key,
		Quantity:         quantity,
		Guest:            guest,
		TotalAmountCents: poi.BasePriceCents * quantity,
		Currency:         poi.Currency,
		Status:           model.BookingPendingPayment,
	}
	if err := withRetry(ctx, func() error { return o.bookings.CreateBooking(ctx, booking) }); err != nil {
		o.compensateHold(ctx, res.ID, "booking create failed")
		return nil, err
	}

	// The hold's lock is long released; a slow payment module cannot
	// block inventory.
	payRef, err := o.payment.InitiatePayment(ctx, PaymentRequest{
		BookingID:   booking.ID,
		Reference:   booking.Reference,
		AmountCents: booking.TotalAmountCents,
		Currency:    booking.Currency,
		ReturnURL:   o.returnURL,
		Guest:       guest,
	})
	if err != nil {
		o.compensateHold(ctx, res.ID, "payment initiation failed")
		if _, cancelErr := o.bookings.CancelBooking(ctx, booking.ID, false); cancelErr != nil {
			log.Printf("booking: cancel %s after payment init failure: %v", booking.ID, cancelErr)
		}
		return nil, err
	}

	log.Printf("booking: started id=%s ref=%s reservation=%s poi=%d qty=%d", booking.ID, booking.Reference, res.ID, key.POIID, quantity)
	return &BookingStart{Booking: booking, PaymentURL: payRef.PaymentURL, ExpiresAt: res.ExpiresAt}, nil
}

// OnPaymentSucceeded finalises a booking after the payment module
// reports success.  Idempotent: webhooks arrive duplicated and out of
// order, so an already-confirmed booking returns its existing ticket
// set without re-issuing.  A hold that expired before the money
// arrived parks the booking for reversal and fails with
// repository.ErrAlreadyExpired; the caller must trigger a refund,
// there is no inventory left to honour.
func (o *BookingOrchestrator) OnPaymentSucceeded(ctx context.Context, bookingID, paymentTxID string) (*BookingResult, error) {
	b, err := o.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == model.BookingConfirmed {
		tickets, err := o.bookings.TicketsByBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		return &BookingResult{Booking: b, Tickets: tickets}, nil
	}
	if b.Status == model.BookingCancelled {
		// Money arrived for a booking we already gave up on.
		log.Printf("booking: payment for cancelled booking %s tx=%s, flagging reversal", bookingID, paymentTxID)
		if err := o.bookings.FlagReversal(ctx, bookingID); err != nil {
			return nil, err
		}
		o.notifyReversal(ctx, b, paymentTxID)
		return nil, repository.ErrAlreadyExpired
	}

	if _, err := o.reservations.Confirm(ctx, b.ReservationID); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyExpired):
			log.Printf("booking: paid but hold expired id=%s tx=%s, flagging reversal", bookingID, paymentTxID)
			if flagErr := o.bookings.FlagReversal(ctx, bookingID); flagErr != nil {
				return nil, flagErr
			}
			o.notifyReversal(ctx, b, paymentTxID)
			return nil, repository.ErrAlreadyExpired
		case errors.Is(err, repository.ErrAlreadyConfirmed):
			// A concurrent webhook confirmed the reservation; fall
			// through and finalise or fetch whatever it produced.
		default:
			return nil, err
		}
	}

	tickets := o.issuer.Issue(b.ID, b.Quantity)
	var finalized bool
	err = withRetry(ctx, func() error {
		var err error
		finalized, err = o.bookings.FinalizeBooking(ctx, b.ID, paymentTxID, tickets)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !finalized {
		// Lost the finalise race; the winner's tickets are the truth.
		tickets, err = o.bookings.TicketsByBooking(ctx, b.ID)
		if err != nil {
			return nil, err
		}
	}
	confirmed, err := o.bookings.GetBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	if notifyErr := o.notifier.BookingConfirmed(ctx, confirmed, tickets); notifyErr != nil {
		log.Printf("booking: confirmation notify %s: %v", b.ID, notifyErr)
	}
	log.Printf("booking: confirmed id=%s ref=%s tx=%s tickets=%d", confirmed.ID, confirmed.Reference, paymentTxID, len(tickets))
	return &BookingResult{Booking: confirmed, Tickets: tickets}, nil
}

// OnPaymentFailed releases the hold and cancels the booking.  Safe to
// call repeatedly; both halves are idempotent.
func (o *BookingOrchestrator) OnPaymentFailed(ctx context.Context, bookingID, reason string) error {
	b, err := o.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := o.reservations.Release(ctx, b.ReservationID, "payment failed: "+reason); err != nil {
		return err
	}
	cancelled, err := o.bookings.CancelBooking(ctx, bookingID, false)
	if err != nil {
		return err
	}
	if cancelled {
		log.Printf("booking: cancelled id=%s ref=%s (%s)", b.ID, b.Reference, reason)
	}
	return nil
}

// GetBooking returns a booking with whatever tickets it has.
func (o *BookingOrchestrator) GetBooking(ctx context.Context, bookingID string) (*BookingResult, error) {
	b, err := o.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	tickets, err := o.bookings.TicketsByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return &BookingResult{Booking: b, Tickets: tickets}, nil
}

func (o *BookingOrchestrator) compensateHold(ctx context.Context, reservationID, reason string) {
	if err := o.reservations.Release(ctx, reservationID, reason); err != nil {
		// The sweep will catch it once the hold lapses.
		log.Printf("booking: compensating release %s: %v", reservationID, err)
	}
}

func (o *BookingOrchestrator) notifyReversal(ctx context.Context, b *model.Booking, paymentTxID string) {
	if err := o.notifier.ReversalRequired(ctx, b, paymentTxID); err != nil {
		log.Printf("booking: reversal notify %s: %v", b.ID, err)
	}
}
