// Package queue defines message payloads exchanged over the message broker.
package queue

// PaymentResultEvent is published after a callback moves a ticket out of
// PENDING. It carries enough information for downstream consumers to
// log, notify, or feed analytics without querying the primary database.
type PaymentResultEvent struct {
	EventTicketID      uint64 `json:"event_ticket_id"`
	CheckoutRequestID  string `json:"checkout_request_id"`
	Status             string `json:"status"` // PAID or FAILED
	ResultDesc         string `json:"result_desc"`
	MpesaReceiptNumber string `json:"mpesa_receipt_number,omitempty"`
	AmountPaidCents    uint64 `json:"amount_paid_cents,omitempty"`
	TransactionDate    string `json:"transaction_date,omitempty"`
}
