package model

import "time"

// TicketStatus tracks an admission unit from issuance to the gate.
type TicketStatus string

const (
	TicketValid  TicketStatus = "VALID"
	TicketUsed   TicketStatus = "USED"
	TicketVoided TicketStatus = "VOIDED"
)

// Ticket is one admission unit issued when a booking confirms.  The
// Code is derived deterministically from the booking id, the ticket id
// and a server-side secret, so a lost ticket can be re-rendered
// without storing the artifact.  A ticket transitions VALID -> USED
// exactly once and is kept forever for audit.
//
// Fields:
//  ID                – UUID primary key.
//  BookingID         – owning booking.
//  Code              – signed scannable identifier; unique.
//  ValidatedAt       – set when the gate accepts the ticket.
//  ValidatorDeviceID – device that performed the accepting scan.
type Ticket struct {
	ID                string       // tickets.id (UUID)
	BookingID         string       // tickets.booking_id
	Code              string       // tickets.code
	Status            TicketStatus // tickets.status
	ValidatedAt       *time.Time   // tickets.validated_at (nullable)
	ValidatorDeviceID string       // tickets.validator_device_id
	CreatedAt         time.Time    // tickets.created_at
}
