package repository

import (
	"context"
	"database/sql"

	"github.com/eventbooker/eventbooker/internal/model"
)

// PushRequestRepo manages the correlation rows linking a gateway checkout
// request id to the ticket it pays for. Rows are written once, in the
// same transaction as the owning ticket, and only ever read afterwards.
type PushRequestRepo struct {
	db *sql.DB
}

// NewPushRequestRepo constructs a PushRequestRepo with the given DB handle.
func NewPushRequestRepo(db *sql.DB) *PushRequestRepo { return &PushRequestRepo{db: db} }

// CreateTx inserts a correlation row within the caller's transaction and
// populates the generated ID on p. The checkout request id is unique;
// the gateway never issues the same one twice.
func (r *PushRequestRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.PushRequest) error {
	const q = `INSERT INTO push_requests (event_ticket_id, checkout_request_id) VALUES (?, ?)`
	res, err := tx.ExecContext(ctx, q, p.EventTicketID, p.CheckoutRequestID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// TicketIDByCheckoutIDTx resolves a checkout request id to its ticket id
// within the caller's transaction. Returns ErrPushRequestNotFound when
// the provider references a correlation id we never stored.
func (r *PushRequestRepo) TicketIDByCheckoutIDTx(ctx context.Context, tx *sql.Tx, checkoutRequestID string) (uint64, error) {
	const q = `SELECT event_ticket_id FROM push_requests WHERE checkout_request_id = ?`
	var ticketID uint64
	err := tx.QueryRowContext(ctx, q, checkoutRequestID).Scan(&ticketID)
	if err == sql.ErrNoRows {
		return 0, ErrPushRequestNotFound
	}
	return ticketID, err
}
