package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/repository"
)

func testSlot() model.SlotKey {
	return model.SlotKey{POIID: 42, Date: "2026-07-14", Timeslot: "10:00-12:00"}
}

func heldReservation(id string, key model.SlotKey, qty uint32, expiresAt time.Time) *model.Reservation {
	return &model.Reservation{
		ID:        id,
		Slot:      key,
		Quantity:  qty,
		State:     model.ReservationHeld,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
}

func TestPlaceHoldCapacityGuard(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := testSlot()
	m.SeedSlot(key, 5)
	deadline := time.Now().UTC().Add(15 * time.Minute)

	if err := m.PlaceHold(ctx, heldReservation("r1", key, 3, deadline)); err != nil {
		t.Fatalf("first hold: %v", err)
	}
	slot, err := m.Availability(ctx, key)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if got := slot.Available(); got != 2 {
		t.Fatalf("available after hold of 3 = %d, want 2", got)
	}

	err = m.PlaceHold(ctx, heldReservation("r2", key, 3, deadline))
	if !errors.Is(err, repository.ErrInsufficientCapacity) {
		t.Fatalf("oversized hold err = %v, want ErrInsufficientCapacity", err)
	}
	// The failed hold must not have touched the counters.
	slot, _ = m.Availability(ctx, key)
	if got := slot.Available(); got != 2 {
		t.Fatalf("available after rejected hold = %d, want 2", got)
	}

	if err := m.PlaceHold(ctx, heldReservation("r3", key, 2, deadline)); err != nil {
		t.Fatalf("exact-fit hold: %v", err)
	}
	slot, _ = m.Availability(ctx, key)
	if got := slot.Available(); got != 0 {
		t.Fatalf("available after exact fit = %d, want 0", got)
	}
}

func TestPlaceHoldUnknownSlot(t *testing.T) {
	m := NewMemory()
	err := m.PlaceHold(context.Background(), heldReservation("r1", testSlot(), 1, time.Now().Add(time.Minute)))
	if !errors.Is(err, repository.ErrSlotNotFound) {
		t.Fatalf("err = %v, want ErrSlotNotFound", err)
	}
}

// Thirty-two goroutines race for a single unit; exactly one may win.
func TestPlaceHoldConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := testSlot()
	m.SeedSlot(key, 1)
	deadline := time.Now().UTC().Add(15 * time.Minute)

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "r-" + string(rune('a'+n%26)) + string(rune('0'+n/26))
			if err := m.PlaceHold(ctx, heldReservation(id, key, 1, deadline)); err == nil {
				wins <- id
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for id := range wins {
		winners = append(winners, id)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %d, want exactly 1", len(winners))
	}
	slot, _ := m.Availability(ctx, key)
	if slot.ReservedCount != 1 || slot.BookedCount != 0 {
		t.Fatalf("counters = reserved %d booked %d, want 1/0", slot.ReservedCount, slot.BookedCount)
	}
}

func TestConfirmHoldMovesReservedToBooked(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := testSlot()
	m.SeedSlot(key, 10)
	deadline := time.Now().UTC().Add(15 * time.Minute)
	if err := m.PlaceHold(ctx, heldReservation("r1", key, 4, deadline)); err != nil {
		t.Fatalf("hold: %v", err)
	}

	res, err := m.ConfirmHold(ctx, "r1", time.Now().UTC())
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.State != model.ReservationConfirmed {
		t.Fatalf("state = %s, want CONFIRMED", res.State)
	}

	slot, _ := m.Availability(ctx, key)
	if slot.ReservedCount != 0 || slot.BookedCount != 4 {
		t.Fatalf("counters = reserved %d booked %d, want 0/4", slot.ReservedCount, slot.BookedCount)
	}
	if got := slot.Available(); got != 6 {
		t.Fatalf("available = %d, want 6", got)
	}

	// Confirming twice must fail without touching the counters.
	if _, err := m.ConfirmHold(ctx, "r1", time.Now().UTC()); !errors.Is(err, repository.ErrAlreadyConfirmed) {
		t.Fatalf("second confirm err = %v, want ErrAlreadyConfirmed", err)
	}
	slot, _ = m.Availability(ctx, key)
	if slot.BookedCount != 4 {
		t.Fatalf("booked after duplicate confirm = %d, want 4", slot.BookedCount)
	}
}

func TestConfirmHoldPastDeadline(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := testSlot()
	m.SeedSlot(key, 2)
	expired := time.Now().UTC().Add(-time.Minute)
	if err := m.PlaceHold(ctx, heldReservation("r1", key, 2, expired)); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := m.ConfirmHold(ctx, "r1", time.Now().UTC()); !errors.Is(err, repository.ErrAlreadyExpired) {
		t.Fatalf("confirm err = %v, want ErrAlreadyExpired", err)
	}
}

func TestReleaseHoldIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := testSlot()
	m.SeedSlot(key, 3)
	deadline := time.Now().UTC().Add(15 * time.Minute)
	if err := m.PlaceHold(ctx, heldReservation("r1", key, 3, deadline)); err != nil {
		t.Fatalf("hold: %v", err)
	}

	released, err := m.ReleaseHold(ctx, "r1", model.ReservationReleased)
	if err != nil || !released {
		t.Fatalf("release = %v, %v; want true, nil", released, err)
	}
	slot, _ := m.Availability(ctx, key)
	if got := slot.Available(); got != 3 {
		t.Fatalf("available after release = %d, want 3", got)
	}

	// Second release is a no-op, not an error.
	released, err = m.ReleaseHold(ctx, "r1", model.ReservationExpired)
	if err != nil {
		t.Fatalf("double release: %v", err)
	}
	if released {
		t.Fatal("double release reported released = true")
	}
	slot, _ = m.Availability(ctx, key)
	if got := slot.Available(); got != 3 {
		t.Fatalf("available after double release = %d, want 3", got)
	}
}

func TestListExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := testSlot()
	m.SeedSlot(key, 10)
	now := time.Now().UTC()
	_ = m.PlaceHold(ctx, heldReservation("past1", key, 1, now.Add(-2*time.Minute)))
	_ = m.PlaceHold(ctx, heldReservation("past2", key, 1, now.Add(-time.Minute)))
	_ = m.PlaceHold(ctx, heldReservation("future", key, 1, now.Add(time.Hour)))

	expired, err := m.ListExpired(ctx, now, 10)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expired = %d, want 2", len(expired))
	}
	for _, r := range expired {
		if r.ID == "future" {
			t.Fatal("future hold listed as expired")
		}
	}
}

func TestFinalizeBookingIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	b := &model.Booking{
		ID:            "b1",
		Reference:     "TXM-TESTREF1",
		ReservationID: "r1",
		Slot:          testSlot(),
		Quantity:      2,
		Status:        model.BookingPendingPayment,
	}
	if err := m.CreateBooking(ctx, b); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	tickets := []model.Ticket{
		{ID: "t1", BookingID: "b1", Code: "CODE1", Status: model.TicketValid},
		{ID: "t2", BookingID: "b1", Code: "CODE2", Status: model.TicketValid},
	}
	done, err := m.FinalizeBooking(ctx, "b1", "tx-123", tickets)
	if err != nil || !done {
		t.Fatalf("finalize = %v, %v; want true, nil", done, err)
	}

	got, err := m.GetBooking(ctx, "b1")
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if got.Status != model.BookingConfirmed || got.PaymentTxID != "tx-123" {
		t.Fatalf("booking = %s/%s, want CONFIRMED/tx-123", got.Status, got.PaymentTxID)
	}

	// A duplicate webhook must not re-finalize or duplicate tickets.
	done, err = m.FinalizeBooking(ctx, "b1", "tx-456", tickets)
	if err != nil {
		t.Fatalf("duplicate finalize: %v", err)
	}
	if done {
		t.Fatal("duplicate finalize reported done = true")
	}
	stored, _ := m.TicketsByBooking(ctx, "b1")
	if len(stored) != 2 {
		t.Fatalf("tickets = %d, want 2", len(stored))
	}
}

func TestMarkTicketUsedSingleUse(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	b := &model.Booking{ID: "b1", Reference: "TXM-TESTREF2", ReservationID: "r1", Slot: testSlot(), Quantity: 1, Status: model.BookingPendingPayment}
	if err := m.CreateBooking(ctx, b); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	tickets := []model.Ticket{{ID: "t1", BookingID: "b1", Code: "CODE1", Status: model.TicketValid}}
	if _, err := m.FinalizeBooking(ctx, "b1", "tx-1", tickets); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	t1, err := m.GetTicketByCode(ctx, "CODE1")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if t1.ID != "t1" {
		t.Fatalf("ticket id = %s, want t1", t1.ID)
	}
	if _, err := m.GetTicketByCode(ctx, "NOPE"); !errors.Is(err, repository.ErrTicketNotFound) {
		t.Fatalf("unknown code err = %v, want ErrTicketNotFound", err)
	}

	at := time.Now().UTC()
	used, err := m.MarkTicketUsed(ctx, "t1", "dev-1", at)
	if err != nil || !used {
		t.Fatalf("mark used = %v, %v; want true, nil", used, err)
	}
	// Second scan loses.
	used, err = m.MarkTicketUsed(ctx, "t1", "dev-2", at.Add(time.Second))
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if used {
		t.Fatal("second scan reported used = true")
	}

	t1, _ = m.GetTicketByCode(ctx, "CODE1")
	if t1.Status != model.TicketUsed || t1.ValidatorDeviceID != "dev-1" {
		t.Fatalf("ticket after scans = %s by %s, want USED by dev-1", t1.Status, t1.ValidatorDeviceID)
	}
}

func TestCancelBookingAndReversal(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	b := &model.Booking{ID: "b1", Reference: "TXM-TESTREF3", ReservationID: "r1", Slot: testSlot(), Quantity: 1, Status: model.BookingPendingPayment}
	if err := m.CreateBooking(ctx, b); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	cancelled, err := m.CancelBooking(ctx, "b1", false)
	if err != nil || !cancelled {
		t.Fatalf("cancel = %v, %v; want true, nil", cancelled, err)
	}
	cancelled, _ = m.CancelBooking(ctx, "b1", false)
	if cancelled {
		t.Fatal("double cancel reported cancelled = true")
	}

	// FlagReversal works on an already-cancelled booking.
	if err := m.FlagReversal(ctx, "b1"); err != nil {
		t.Fatalf("flag reversal: %v", err)
	}
	got, _ := m.GetBooking(ctx, "b1")
	if !got.ReversalRequired || got.Status != model.BookingCancelled {
		t.Fatalf("booking = %s reversal=%t, want CANCELLED reversal=true", got.Status, got.ReversalRequired)
	}

	parked, err := m.ListReversalRequired(ctx, 10)
	if err != nil {
		t.Fatalf("list reversals: %v", err)
	}
	if len(parked) != 1 || parked[0].ID != "b1" {
		t.Fatalf("reversals = %+v, want just b1", parked)
	}
}

func TestTicketsByBookingOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	b := &model.Booking{
		ID:            "b1",
		Reference:     "TXM-TESTREF2",
		ReservationID: "r1",
		Slot:          testSlot(),
		Quantity:      3,
		Status:        model.BookingPendingPayment,
	}
	if err := m.CreateBooking(ctx, b); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	base := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	tickets := []model.Ticket{
		{ID: "zz", BookingID: "b1", Code: "CODE1", Status: model.TicketValid, CreatedAt: base},
		{ID: "aa", BookingID: "b1", Code: "CODE2", Status: model.TicketValid, CreatedAt: base.Add(time.Second)},
		{ID: "mm", BookingID: "b1", Code: "CODE3", Status: model.TicketValid, CreatedAt: base},
	}
	if done, err := m.FinalizeBooking(ctx, "b1", "tx-123", tickets); err != nil || !done {
		t.Fatalf("finalize = %v, %v; want true, nil", done, err)
	}

	// Creation time first, id breaks the tie, like the SQL listing.
	got, err := m.TicketsByBooking(ctx, "b1")
	if err != nil {
		t.Fatalf("tickets: %v", err)
	}
	want := []string{"mm", "zz", "aa"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}
