package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventbooker/eventbooker/internal/model"
	"github.com/eventbooker/eventbooker/internal/mpesa"
	"github.com/eventbooker/eventbooker/internal/repository"
)

// Gateway is the slice of the M-Pesa client the booking flow needs.
// *mpesa.Client satisfies it; tests substitute a fake.
type Gateway interface {
	STKPush(ctx context.Context, in mpesa.PushInput) (*mpesa.PushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (json.RawMessage, error)
}

// EventStore, TicketStore and PushRequestStore are the repository
// slices the booking and callback flows depend on. The concrete
// repositories satisfy them; tests substitute fakes the same way they
// do for Gateway.
type EventStore interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error)
}

type TicketStore interface {
	DB() *sql.DB
	CreateTx(ctx context.Context, tx *sql.Tx, t *model.EventTicket) error
	ApplyPaymentResultTx(ctx context.Context, tx *sql.Tx, ticketID uint64, u repository.PaymentUpdate) (bool, error)
	ListAll(ctx context.Context) ([]model.EventTicket, error)
}

type PushRequestStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, p *model.PushRequest) error
	TicketIDByCheckoutIDTx(ctx context.Context, tx *sql.Tx, checkoutRequestID string) (uint64, error)
}

// Valid customer numbers: country code 254 (leading plus allowed)
// followed by exactly nine digits.
var phoneRe = regexp.MustCompile(`^(?:\+?254)\d{9}$`)

// maxBookingQuantity caps tickets per booking. Keeps one booking within
// a plausible group size and the cents total far from uint64 overflow.
const maxBookingQuantity = 100

// BookingHandler implements the booking orchestration: validate, persist
// a pending ticket, initiate the STK push and store the correlation row,
// all inside one transaction so a rejected or unreachable gateway leaves
// no partial state behind.
type BookingHandler struct {
	Events       EventStore
	Tickets      TicketStore
	PushRequests PushRequestStore
	Gateway      Gateway
}

// NewBookingHandler constructs a BookingHandler. All dependencies must
// be non-nil.
func NewBookingHandler(events EventStore, tickets TicketStore, pushes PushRequestStore, gw Gateway) *BookingHandler {
	if events == nil || tickets == nil || pushes == nil || gw == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Events: events, Tickets: tickets, PushRequests: pushes, Gateway: gw}
}

type createBookingReq struct {
	EventID      uint64 `json:"eventId"`
	CustomerName string `json:"customerName"`
	EmailAddress string `json:"emailAddress"`
	PhoneNumber  string `json:"phoneNumber"`
	Quantity     int    `json:"quantity"`
}

// CreateBooking handles POST /api/bookings. On success exactly one
// ticket and one push request row exist and the response carries the
// checkout request id the provider will echo back in its callback. On
// any failure the transaction is rolled back and zero rows persist; the
// customer simply submits a fresh booking.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request body."})
	}

	// Fail fast before touching the database: nothing below this block
	// runs with partially validated input.
	if req.EventID == 0 || req.CustomerName == "" || req.EmailAddress == "" || req.PhoneNumber == "" || req.Quantity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "All fields are required."})
	}
	if req.Quantity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Quantity must be a positive integer."})
	}
	if req.Quantity > maxBookingQuantity {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": fmt.Sprintf("Quantity must not exceed %d tickets per booking.", maxBookingQuantity),
		})
	}
	if !phoneRe.MatchString(req.PhoneNumber) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "Invalid phone number format. Must be 254xxxxxxxxx or +254xxxxxxxxx (9 digits after 254).",
		})
	}

	ctx := c.Request().Context()
	tx, err := h.Tickets.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to start transaction."})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Price and name are read inside the transaction; the total copied
	// onto the ticket is the unit price at this instant, regardless of
	// later catalog edits.
	ev, err := h.Events.GetByIDTx(ctx, tx, req.EventID)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Event not found."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Database error."})
	}

	total := ev.TicketPriceCents * uint64(req.Quantity)
	ticket := &model.EventTicket{
		EventID:          ev.ID,
		CustomerName:     req.CustomerName,
		EmailAddress:     req.EmailAddress,
		PhoneNumber:      req.PhoneNumber,
		Quantity:         uint32(req.Quantity),
		TotalAmountCents: total,
	}
	if err := h.Tickets.CreateTx(ctx, tx, ticket); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to create ticket."})
	}

	// The transaction stays open across this network call. Acceptable at
	// this booking volume; the client timeout bounds the hold time.
	resp, err := h.Gateway.STKPush(ctx, mpesa.PushInput{
		Amount:           mpesa.AmountUnits(total),
		PhoneNumber:      req.PhoneNumber,
		AccountReference: fmt.Sprintf("EventBooking-%d", ticket.ID),
		TransactionDesc:  fmt.Sprintf("Payment for %s tickets", ev.Name),
	})
	if err != nil {
		var rej *mpesa.RejectedError
		switch {
		case errors.Is(err, mpesa.ErrConfigIncomplete):
			log.Printf("booking: ticket=%d gateway not configured", ticket.ID)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "M-Pesa payment gateway not fully configured."})
		case errors.As(err, &rej):
			log.Printf("booking: ticket=%d stk push rejected: %s", ticket.ID, rej.Description)
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"message": "Failed to initiate M-Pesa STK Push.",
				"error":   rej.Description,
			})
		default:
			log.Printf("booking: ticket=%d stk push failed: %v", ticket.ID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Booking creation failed due to server error."})
		}
	}

	push := &model.PushRequest{EventTicketID: ticket.ID, CheckoutRequestID: resp.CheckoutRequestID}
	if err := h.PushRequests.CreateTx(ctx, tx, push); err != nil {
		log.Printf("booking: ticket=%d checkout=%s failed to store push request: %v", ticket.ID, resp.CheckoutRequestID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Booking creation failed due to server error."})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to commit transaction."})
	}
	committed = true

	msg := resp.CustomerMessage
	if msg == "" {
		msg = "STK Push initiated successfully. Please check your phone."
	}
	log.Printf("booking: ticket=%d checkout=%s initiated", ticket.ID, resp.CheckoutRequestID)
	return c.JSON(http.StatusCreated, echo.Map{
		"message":             msg,
		"eventTicketId":       ticket.ID,
		"checkoutRequestId":   resp.CheckoutRequestID,
		"responseDescription": resp.ResponseDescription,
	})
}

// ticketResp mirrors the columns the old listing exposed, with amounts
// in cents.
type ticketResp struct {
	EventTicketID      uint64  `json:"eventTicketId"`
	EventID            uint64  `json:"eventId"`
	CustomerName       string  `json:"customerName"`
	PhoneNumber        string  `json:"phoneNumber"`
	EmailAddress       string  `json:"emailAddress"`
	Quantity           uint32  `json:"quantity"`
	TotalAmountCents   uint64  `json:"totalAmountCents"`
	PaymentStatus      string  `json:"paymentStatus"`
	MpesaReceiptNumber *string `json:"mpesaReceiptNumber"`
	TransactionDate    *string `json:"transactionDate"`
	AmountPaidCents    *uint64 `json:"amountPaidCents"`
	DateCreated        string  `json:"dateCreated"`
	LastUpdated        string  `json:"lastUpdated"`
}

func toTicketResp(t model.EventTicket) ticketResp {
	out := ticketResp{
		EventTicketID:      t.ID,
		EventID:            t.EventID,
		CustomerName:       t.CustomerName,
		PhoneNumber:        t.PhoneNumber,
		EmailAddress:       t.EmailAddress,
		Quantity:           t.Quantity,
		TotalAmountCents:   t.TotalAmountCents,
		PaymentStatus:      t.PaymentStatus,
		MpesaReceiptNumber: t.MpesaReceiptNumber,
		AmountPaidCents:    t.AmountPaidCents,
		DateCreated:        t.CreatedAt.UTC().Format(time.RFC3339),
		LastUpdated:        t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.TransactionDate != nil {
		s := t.TransactionDate.UTC().Format("2006-01-02 15:04:05")
		out.TransactionDate = &s
	}
	return out
}

// ListBookings handles GET /api/bookings and returns every ticket,
// newest first.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	tickets, err := h.Tickets.ListAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to fetch bookings."})
	}
	out := make([]ticketResp, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, toTicketResp(t))
	}
	return c.JSON(http.StatusOK, out)
}

// QueryPaymentStatus handles POST /api/bookings/query-payment-status.
// It proxies a status query to the gateway and returns the provider's
// response verbatim. Operators use it to reconcile tickets stuck in
// PENDING when a callback never arrived.
func (h *BookingHandler) QueryPaymentStatus(c echo.Context) error {
	var req struct {
		CheckoutRequestID string `json:"checkoutRequestId"`
	}
	if err := c.Bind(&req); err != nil || req.CheckoutRequestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "checkoutRequestId is required."})
	}

	raw, err := h.Gateway.QueryStatus(c.Request().Context(), req.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, mpesa.ErrConfigIncomplete) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "M-Pesa payment gateway not fully configured."})
		}
		log.Printf("booking: checkout=%s status query failed: %v", req.CheckoutRequestID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to query M-Pesa payment status."})
	}
	return c.JSONBlob(http.StatusOK, raw)
}
