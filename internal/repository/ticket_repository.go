package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/eventbooker/eventbooker/internal/model"
)

// TicketRepo manages persistence for event tickets. Tickets are always
// created inside the booking orchestrator's transaction together with
// their push request row, and finalized inside the callback reconciler's
// transaction, so the mutating methods are all Tx variants.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo constructs a TicketRepo with the given DB handle.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying sql.DB for callers that begin transactions
// spanning multiple repositories.
func (r *TicketRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a new PENDING ticket within the caller's transaction
// and populates the generated ID on t. The transaction date is left NULL;
// only the callback reconciler ever sets it. The caller must commit or
// roll back.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.EventTicket) error {
	const q = `INSERT INTO event_tickets
	           (event_id, customer_name, email_address, phone_number, quantity, total_amount_cents, payment_status)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		t.EventID, t.CustomerName, t.EmailAddress, t.PhoneNumber,
		t.Quantity, t.TotalAmountCents, model.PaymentStatusPending,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.PaymentStatus = model.PaymentStatusPending
	return nil
}

// PaymentUpdate carries the reconciled outcome of a payment attempt. For
// a FAILED outcome the nullable fields stay nil and the matching columns
// stay NULL.
type PaymentUpdate struct {
	Status             string     // PAID or FAILED
	MpesaReceiptNumber *string    // receipt issued by the provider, PAID only
	TransactionDate    *time.Time // provider transaction timestamp, PAID only
	AmountPaidCents    *uint64    // amount the provider confirmed, PAID only
}

// ApplyPaymentResultTx finalizes a ticket within the caller's transaction.
// The WHERE clause restricts the update to PENDING rows, which is the
// whole state machine: PENDING moves to PAID or FAILED exactly once, and
// a late or duplicated callback for an already finalized ticket matches
// nothing. It returns whether a row transitioned.
func (r *TicketRepo) ApplyPaymentResultTx(ctx context.Context, tx *sql.Tx, ticketID uint64, u PaymentUpdate) (bool, error) {
	const q = `UPDATE event_tickets
	           SET payment_status = ?, mpesa_receipt_number = ?, transaction_date = ?, amount_paid_cents = ?
	           WHERE id = ? AND payment_status = ?`
	res, err := tx.ExecContext(ctx, q,
		u.Status, u.MpesaReceiptNumber, u.TransactionDate, u.AmountPaidCents,
		ticketID, model.PaymentStatusPending,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const ticketColumns = `id, event_id, customer_name, email_address, phone_number, quantity,
	total_amount_cents, payment_status, mpesa_receipt_number, transaction_date, amount_paid_cents,
	created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (model.EventTicket, error) {
	var (
		t       model.EventTicket
		receipt sql.NullString
		txDate  sql.NullTime
		paid    sql.NullInt64
	)
	err := row.Scan(
		&t.ID, &t.EventID, &t.CustomerName, &t.EmailAddress, &t.PhoneNumber, &t.Quantity,
		&t.TotalAmountCents, &t.PaymentStatus, &receipt, &txDate, &paid,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return model.EventTicket{}, err
	}
	if receipt.Valid {
		v := receipt.String
		t.MpesaReceiptNumber = &v
	}
	if txDate.Valid {
		v := txDate.Time
		t.TransactionDate = &v
	}
	if paid.Valid {
		v := uint64(paid.Int64)
		t.AmountPaidCents = &v
	}
	return t, nil
}

// GetByID returns a single ticket or ErrTicketNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (model.EventTicket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM event_tickets WHERE id = ?`
	t, err := scanTicket(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return model.EventTicket{}, ErrTicketNotFound
	}
	return t, err
}

// ListAll returns every ticket, newest first. Used by the bookings
// listing endpoint; volume is small enough that pagination is not worth
// its weight here.
func (r *TicketRepo) ListAll(ctx context.Context) ([]model.EventTicket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM event_tickets ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.EventTicket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
