package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/repository"
)

// ticketSigBytes is how much of the HMAC is embedded in the code.  96
// bits keeps the scannable payload short while making codes
// unguessable.
const ticketSigBytes = 12

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TicketIssuer generates and validates admission tickets.  A ticket's
// code is derived deterministically from the booking id, the ticket id
// and a server-side secret, so a lost ticket can be re-rendered
// without storing the artifact and a forged code fails the signature
// check even if it were smuggled into the table.
type TicketIssuer struct {
	secret  []byte
	tickets TicketStore
	now     func() time.Time
}

// NewTicketIssuer constructs a TicketIssuer.  The secret must be
// non-empty; ticket unforgeability rests on it.
func NewTicketIssuer(secret []byte, tickets TicketStore) *TicketIssuer {
	if len(secret) == 0 {
		panic("ticket secret must not be empty")
	}
	return &TicketIssuer{secret: secret, tickets: tickets, now: time.Now}
}

// Code derives the scannable code for one ticket.  Layout:
// hex ticket id (dashes stripped), a dot, then a base32 HMAC-SHA256
// tag over bookingID and ticketID.
func (i *TicketIssuer) Code(bookingID, ticketID string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(bookingID))
	mac.Write([]byte{0})
	mac.Write([]byte(ticketID))
	sig := mac.Sum(nil)[:ticketSigBytes]
	return strings.ToUpper(strings.ReplaceAll(ticketID, "-", "")) + "." + codeEncoding.EncodeToString(sig)
}

// Issue builds quantity ticket records for a booking.  Generation is
// pure; the orchestrator persists the batch in the same transaction
// that confirms the booking, so "confirmed" and "has its tickets" are
// one fact.
func (i *TicketIssuer) Issue(bookingID string, quantity uint32) []model.Ticket {
	tickets := make([]model.Ticket, 0, quantity)
	for n := uint32(0); n < quantity; n++ {
		id := uuid.NewString()
		tickets = append(tickets, model.Ticket{
			ID:        id,
			BookingID: bookingID,
			Code:      i.Code(bookingID, id),
			Status:    model.TicketValid,
		})
	}
	return tickets
}

// ValidationResult is what the gate sees.  Failures carry a reason
// and never propagate as errors past the validate boundary.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	TicketID  string `json:"ticket_id,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
}

// Validate checks a scanned code against the admission context and,
// when everything matches, burns the ticket.  The VALID -> USED flip
// is atomic per ticket: two gates scanning the same code concurrently
// admit exactly one guest.
func (i *TicketIssuer) Validate(ctx context.Context, bookings BookingStore, code string, poiID uint64, deviceID string) (ValidationResult, error) {
	t, err := i.tickets.GetTicketByCode(ctx, code)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return ValidationResult{Valid: false, Reason: "unknown code"}, nil
	}
	if err != nil {
		return ValidationResult{}, err
	}

	// Recompute the signature; a code that resolves but does not
	// verify means the row was tampered with.
	if !hmac.Equal([]byte(t.Code), []byte(i.Code(t.BookingID, t.ID))) {
		log.Printf("ticket: signature mismatch ticket=%s booking=%s device=%s", t.ID, t.BookingID, deviceID)
		return ValidationResult{Valid: false, Reason: "unknown code"}, nil
	}

	b, err := bookings.GetBooking(ctx, t.BookingID)
	if err != nil {
		return ValidationResult{}, err
	}
	if b.Slot.POIID != poiID {
		log.Printf("ticket: wrong poi ticket=%s want=%d got=%d device=%s", t.ID, b.Slot.POIID, poiID, deviceID)
		return ValidationResult{Valid: false, Reason: "wrong poi", TicketID: t.ID}, nil
	}
	if today := i.now().UTC().Format("2006-01-02"); b.Slot.Date != today {
		return ValidationResult{Valid: false, Reason: "wrong date", TicketID: t.ID}, nil
	}
	switch t.Status {
	case model.TicketUsed:
		return ValidationResult{Valid: false, Reason: "already used", TicketID: t.ID}, nil
	case model.TicketVoided:
		return ValidationResult{Valid: false, Reason: "voided", TicketID: t.ID}, nil
	}

	used, err := i.tickets.MarkTicketUsed(ctx, t.ID, deviceID, i.now().UTC())
	if err != nil {
		return ValidationResult{}, err
	}
	if !used {
		// Lost the race to a concurrent scan.
		return ValidationResult{Valid: false, Reason: "already used", TicketID: t.ID}, nil
	}
	return ValidationResult{Valid: true, TicketID: t.ID, BookingID: t.BookingID}, nil
}
