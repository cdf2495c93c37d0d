package model

import "time"

// BookingStatus tracks the purchase record through payment.
type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingConfirmed      BookingStatus = "CONFIRMED"
	BookingCancelled      BookingStatus = "CANCELLED"
)

// Booking is the durable record of a purchase, 1:1 with a
// reservation.  It is created in PENDING_PAYMENT together with the
// hold and moves to CONFIRMED only after the reservation itself has
// been confirmed; CONFIRMED implies exactly Quantity ticket rows
// exist for it.
//
// Fields:
//  ID               – UUID primary key.
//  Reference        – short human-shareable code (printed on the
//                     confirmation email, quoted at support desks).
//  ReservationID    – the reservation this booking finalises.
//  TotalAmountCents – price for all units in minor currency units.
//  PaymentTxID      – transaction id reported by the payment module,
//                     set on confirmation.
//  ReversalRequired – set when payment was captured but the hold had
//                     already expired; such bookings are parked for
//                     reconciliation, never silently confirmed.
type Booking struct {
	ID               string        // bookings.id (UUID)
	Reference        string        // bookings.reference
	ReservationID    string        // bookings.reservation_id
	Slot             SlotKey       // denormalised from the reservation
	Quantity         uint32        // denormalised from the reservation
	Guest            GuestInfo     // bookings.guest_* columns
	TotalAmountCents uint32        // bookings.total_amount_cents
	Currency         string        // bookings.currency (ISO 4217)
	PaymentTxID      string        // bookings.payment_tx_id
	Status           BookingStatus // bookings.status
	ReversalRequired bool          // bookings.reversal_required
	CreatedAt        time.Time     // bookings.created_at
	UpdatedAt        time.Time     // bookings.updated_at
}
