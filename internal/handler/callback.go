package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eventbooker/eventbooker/internal/model"
	"github.com/eventbooker/eventbooker/internal/mpesa"
	"github.com/eventbooker/eventbooker/internal/queue"
	"github.com/eventbooker/eventbooker/internal/repository"
)

// CallbackHandler reconciles the provider's asynchronous payment result
// into a final ticket state. The provider is not an interactive client:
// whatever goes wrong with the payload itself is acknowledged with a
// rejection code rather than an HTTP error, so the provider's own
// retry/alerting fires instead of ours.
type CallbackHandler struct {
	Tickets      TicketStore
	PushRequests PushRequestStore

	// PublishResult, when set, is called after a commit that moved a
	// ticket out of PENDING. Failures are logged and ignored; the
	// provider ack never waits on the broker.
	PublishResult func(context.Context, queue.PaymentResultEvent) error
}

// NewCallbackHandler constructs a CallbackHandler.
func NewCallbackHandler(tickets TicketStore, pushes PushRequestStore) *CallbackHandler {
	if tickets == nil || pushes == nil {
		panic("nil repository passed to NewCallbackHandler")
	}
	return &CallbackHandler{Tickets: tickets, PushRequests: pushes}
}

// ack writes the provider's expected acknowledgement shape. ResultCode 0
// accepts the callback, 1 rejects it.
func ack(c echo.Context, code int, desc string) error {
	return c.JSON(http.StatusOK, echo.Map{"ResultCode": code, "ResultDesc": desc})
}

// HandleCallback handles POST /api/bookings/mpesa-callback.
//
// Result code 0 moves the ticket PENDING -> PAID and records the receipt
// number, the provider transaction timestamp and the confirmed amount;
// any other code moves it PENDING -> FAILED. A callback for a ticket
// already out of PENDING matches no row and is acknowledged without
// changing anything, which makes redelivery harmless.
func (h *CallbackHandler) HandleCallback(c echo.Context) error {
	var env mpesa.CallbackEnvelope
	if err := c.Bind(&env); err != nil {
		log.Printf("callback: undecodable payload: %v", err)
		return ack(c, 1, "Invalid callback format")
	}
	cb, err := env.Callback()
	if err != nil {
		log.Printf("callback: malformed payload, ignoring")
		return ack(c, 1, "Invalid callback format")
	}

	res := cb.Result()
	update := repository.PaymentUpdate{Status: model.PaymentStatusFailed}
	if res.Paid {
		update = repository.PaymentUpdate{
			Status:             model.PaymentStatusPaid,
			MpesaReceiptNumber: res.ReceiptNumber,
			TransactionDate:    res.TransactionDate,
			AmountPaidCents:    res.AmountCents,
		}
	} else {
		log.Printf("callback: checkout=%s payment failed: %s", res.CheckoutRequestID, res.ResultDesc)
	}

	ctx := c.Request().Context()
	tx, err := h.Tickets.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"ResultCode": 1, "ResultDesc": "Internal server error processing callback"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ticketID, err := h.PushRequests.TicketIDByCheckoutIDTx(ctx, tx, res.CheckoutRequestID)
	if err != nil {
		if err == repository.ErrPushRequestNotFound {
			// The provider believes it processed a payment we never
			// initiated. Loud log; an operator has to look at this.
			log.Printf("callback: checkout=%s has no matching push request, result=%d desc=%q", res.CheckoutRequestID, res.ResultCode, res.ResultDesc)
			return ack(c, 1, "EventTicket not found")
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"ResultCode": 1, "ResultDesc": "Internal server error processing callback"})
	}

	applied, err := h.Tickets.ApplyPaymentResultTx(ctx, tx, ticketID, update)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"ResultCode": 1, "ResultDesc": "Internal server error processing callback"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"ResultCode": 1, "ResultDesc": "Internal server error processing callback"})
	}
	committed = true

	if !applied {
		// Duplicate or late delivery for a finalized ticket. Acknowledge
		// so the provider stops retrying; the stored outcome stands.
		log.Printf("callback: checkout=%s ticket=%d already finalized, ignoring", res.CheckoutRequestID, ticketID)
		return ack(c, 0, "Callback received and processed successfully")
	}

	log.Printf("callback: checkout=%s ticket=%d updated to %s", res.CheckoutRequestID, ticketID, update.Status)
	if h.PublishResult != nil {
		ev := queue.PaymentResultEvent{
			EventTicketID:     ticketID,
			CheckoutRequestID: res.CheckoutRequestID,
			Status:            update.Status,
			ResultDesc:        res.ResultDesc,
		}
		if res.ReceiptNumber != nil {
			ev.MpesaReceiptNumber = *res.ReceiptNumber
		}
		if res.AmountCents != nil {
			ev.AmountPaidCents = *res.AmountCents
		}
		if res.TransactionDate != nil {
			ev.TransactionDate = res.TransactionDate.Format("2006-01-02 15:04:05")
		}
		if err := h.PublishResult(ctx, ev); err != nil {
			log.Printf("callback: checkout=%s publish failed: %v", res.CheckoutRequestID, err)
		}
	}
	return ack(c, 0, "Callback received and processed successfully")
}
