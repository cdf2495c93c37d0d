package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/store"
)

func TestTicketCodeDeterministic(t *testing.T) {
	mem := store.NewMemory()
	issuer := NewTicketIssuer([]byte("test-secret"), mem)

	bookingID := uuid.NewString()
	ticketID := uuid.NewString()

	c1 := issuer.Code(bookingID, ticketID)
	c2 := issuer.Code(bookingID, ticketID)
	if c1 != c2 {
		t.Fatalf("same inputs produced %q and %q", c1, c2)
	}
	if c1 == issuer.Code(bookingID, uuid.NewString()) {
		t.Fatal("different ticket ids produced the same code")
	}
	if c1 == issuer.Code(uuid.NewString(), ticketID) {
		t.Fatal("different booking ids produced the same code")
	}

	// Different secrets must not produce interchangeable codes.
	other := NewTicketIssuer([]byte("other-secret"), mem)
	if c1 == other.Code(bookingID, ticketID) {
		t.Fatal("different secrets produced the same code")
	}

	parts := strings.SplitN(c1, ".", 2)
	if len(parts) != 2 {
		t.Fatalf("code %q has no tag separator", c1)
	}
	if want := strings.ToUpper(strings.ReplaceAll(ticketID, "-", "")); parts[0] != want {
		t.Fatalf("code prefix = %q, want %q", parts[0], want)
	}
}

func TestIssueProducesValidBatch(t *testing.T) {
	issuer := NewTicketIssuer([]byte("test-secret"), store.NewMemory())
	bookingID := uuid.NewString()

	tickets := issuer.Issue(bookingID, 3)
	if len(tickets) != 3 {
		t.Fatalf("issued %d tickets, want 3", len(tickets))
	}
	seen := map[string]bool{}
	for _, tk := range tickets {
		if tk.BookingID != bookingID || tk.Status != model.TicketValid {
			t.Fatalf("ticket %+v not a VALID member of the booking", tk)
		}
		if tk.Code != issuer.Code(bookingID, tk.ID) {
			t.Fatalf("ticket %s code does not verify", tk.ID)
		}
		if seen[tk.Code] {
			t.Fatalf("duplicate code %q in batch", tk.Code)
		}
		seen[tk.Code] = true
	}
}

// confirmedBooking seeds a confirmed booking with issued tickets and
// returns them together with the store.
func confirmedBooking(t *testing.T, issuer *TicketIssuer, mem *store.Memory, poiID uint64, date string) (*model.Booking, []model.Ticket) {
	t.Helper()
	ctx := context.Background()
	b := &model.Booking{
		ID:            uuid.NewString(),
		Reference:     "TXM-VALTEST1",
		ReservationID: uuid.NewString(),
		Slot:          model.SlotKey{POIID: poiID, Date: date, Timeslot: "10:00-12:00"},
		Quantity:      2,
		Status:        model.BookingPendingPayment,
	}
	if err := mem.CreateBooking(ctx, b); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	tickets := issuer.Issue(b.ID, b.Quantity)
	if _, err := mem.FinalizeBooking(ctx, b.ID, "tx-test", tickets); err != nil {
		t.Fatalf("finalize booking: %v", err)
	}
	return b, tickets
}

func TestValidateAdmitsOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	issuer := NewTicketIssuer([]byte("test-secret"), mem)
	today := time.Now().UTC().Format("2006-01-02")
	_, tickets := confirmedBooking(t, issuer, mem, 42, today)

	res, err := issuer.Validate(ctx, mem, tickets[0].Code, 42, "dev-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Valid || res.TicketID != tickets[0].ID {
		t.Fatalf("result = %+v, want valid for %s", res, tickets[0].ID)
	}

	// Same code again: the gate must turn the guest away.
	res, err = issuer.Validate(ctx, mem, tickets[0].Code, 42, "dev-2")
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if res.Valid || res.Reason != "already used" {
		t.Fatalf("result = %+v, want already used", res)
	}

	// The sibling ticket is unaffected.
	res, err = issuer.Validate(ctx, mem, tickets[1].Code, 42, "dev-1")
	if err != nil || !res.Valid {
		t.Fatalf("sibling = %+v, %v; want valid", res, err)
	}
}

func TestValidateRejectsUnknownCode(t *testing.T) {
	mem := store.NewMemory()
	issuer := NewTicketIssuer([]byte("test-secret"), mem)

	res, err := issuer.Validate(context.Background(), mem, "NOSUCHCODE.AAAA", 42, "dev-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Valid || res.Reason != "unknown code" {
		t.Fatalf("result = %+v, want unknown code", res)
	}
}

func TestValidateRejectsWrongPOI(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	issuer := NewTicketIssuer([]byte("test-secret"), mem)
	today := time.Now().UTC().Format("2006-01-02")
	_, tickets := confirmedBooking(t, issuer, mem, 42, today)

	res, err := issuer.Validate(ctx, mem, tickets[0].Code, 7, "dev-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Valid || res.Reason != "wrong poi" {
		t.Fatalf("result = %+v, want wrong poi", res)
	}
	// The rejection must not burn the ticket.
	res, err = issuer.Validate(ctx, mem, tickets[0].Code, 42, "dev-1")
	if err != nil || !res.Valid {
		t.Fatalf("retry at right poi = %+v, %v; want valid", res, err)
	}
}

func TestValidateRejectsWrongDate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	issuer := NewTicketIssuer([]byte("test-secret"), mem)
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	_, tickets := confirmedBooking(t, issuer, mem, 42, yesterday)

	res, err := issuer.Validate(ctx, mem, tickets[0].Code, 42, "dev-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Valid || res.Reason != "wrong date" {
		t.Fatalf("result = %+v, want wrong date", res)
	}
}
