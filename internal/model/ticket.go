package model

import "time"

// Payment lifecycle of an EventTicket. A ticket starts PENDING and moves
// exactly once to PAID or FAILED when the gateway callback is reconciled.
// There is no transition out of a final state.
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

// EventTicket records a single booking and tracks its payment lifecycle.
//
// TotalAmountCents is computed once at creation from the event's unit
// price and the requested quantity; it is immutable afterwards. The
// nullable fields are populated only by the callback reconciler:
// MpesaReceiptNumber and AmountPaidCents on a successful payment,
// TransactionDate with the provider's transaction timestamp.
type EventTicket struct {
	ID                 uint64     // event_tickets.id
	EventID            uint64     // event_tickets.event_id
	CustomerName       string     // event_tickets.customer_name
	EmailAddress       string     // event_tickets.email_address
	PhoneNumber        string     // event_tickets.phone_number
	Quantity           uint32     // event_tickets.quantity
	TotalAmountCents   uint64     // event_tickets.total_amount_cents
	PaymentStatus      string     // event_tickets.payment_status
	MpesaReceiptNumber *string    // event_tickets.mpesa_receipt_number (nullable)
	TransactionDate    *time.Time // event_tickets.transaction_date (nullable, UTC)
	AmountPaidCents    *uint64    // event_tickets.amount_paid_cents (nullable)
	CreatedAt          time.Time  // event_tickets.created_at
	UpdatedAt          time.Time  // event_tickets.updated_at
}

// PushRequest maps a gateway checkout request id back to the ticket it
// pays for. Exactly one row exists per gateway-accepted booking; it is
// written in the same transaction as the ticket and never updated.
type PushRequest struct {
	ID                uint64    // push_requests.id
	EventTicketID     uint64    // push_requests.event_ticket_id
	CheckoutRequestID string    // push_requests.checkout_request_id (unique)
	CreatedAt         time.Time // push_requests.created_at
	UpdatedAt         time.Time // push_requests.updated_at
}
