// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer that move them.
package queue

// BookingConfirmedEvent is published when a booking is finalised.  It
// carries enough for the notification module to mail the guest and for
// analytics to count the sale without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID        string   `json:"booking_id"`
	Reference        string   `json:"reference"`
	POIID            uint64   `json:"poi_id"`
	Date             string   `json:"date"`
	Timeslot         string   `json:"timeslot,omitempty"`
	Quantity         uint32   `json:"quantity"`
	GuestName        string   `json:"guest_name"`
	GuestEmail       string   `json:"guest_email"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	Currency         string   `json:"currency"`
	TicketCodes      []string `json:"ticket_codes"`
	ConfirmedAt      string   `json:"confirmed_at"`
}

// ReversalRequiredEvent is published when payment landed for a hold
// that no longer exists.  Consumers feed the refund queue; the
// booking row stays flagged until an operator or automation resolves
// it.
type ReversalRequiredEvent struct {
	BookingID        string `json:"booking_id"`
	Reference        string `json:"reference"`
	PaymentTxID      string `json:"payment_tx_id"`
	TotalAmountCents uint32 `json:"total_amount_cents"`
	Currency         string `json:"currency"`
	GuestEmail       string `json:"guest_email"`
	FlaggedAt        string `json:"flagged_at"`
}
