package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventbooker/eventbooker/internal/model"
	"github.com/eventbooker/eventbooker/internal/queue"
)

// callbackFixture bundles a CallbackHandler with its fakes.
type callbackFixture struct {
	h         *CallbackHandler
	tickets   *fakeTicketStore
	pushes    *fakePushStore
	tx        *txRecorder
	published []queue.PaymentResultEvent
}

func newCallbackFixture() *callbackFixture {
	rec := &txRecorder{}
	tk := &fakeTicketStore{db: stubDB(rec), applied: true}
	ps := &fakePushStore{byCheckout: map[string]uint64{}}
	fx := &callbackFixture{
		h:       NewCallbackHandler(tk, ps),
		tickets: tk,
		pushes:  ps,
		tx:      rec,
	}
	fx.h.PublishResult = func(ctx context.Context, ev queue.PaymentResultEvent) error {
		fx.published = append(fx.published, ev)
		return nil
	}
	return fx
}

func ackOf(t *testing.T, rec *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	var out struct {
		ResultCode int    `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.ResultCode, out.ResultDesc
}

const paidCallbackBody = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_77",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 70.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20250610153045},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

const failedCallbackBody = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_77",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user."
    }
  }
}`

func TestHandleCallbackMarksPaid(t *testing.T) {
	fx := newCallbackFixture()
	fx.pushes.byCheckout["ws_CO_77"] = 5

	rec := postJSON(t, fx.h.HandleCallback, paidCallbackBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	code, desc := ackOf(t, rec)
	assert.Equal(t, 0, code)
	assert.Equal(t, "Callback received and processed successfully", desc)

	// The ticket behind the checkout id moved to PAID with the receipt,
	// confirmed amount and provider timestamp.
	require.Len(t, fx.tickets.applyUpdates, 1)
	assert.Equal(t, uint64(5), fx.tickets.appliedID)
	u := fx.tickets.applyUpdates[0]
	assert.Equal(t, model.PaymentStatusPaid, u.Status)
	require.NotNil(t, u.MpesaReceiptNumber)
	assert.Equal(t, "NLJ7RT61SV", *u.MpesaReceiptNumber)
	require.NotNil(t, u.AmountPaidCents)
	assert.Equal(t, uint64(7000), *u.AmountPaidCents)
	require.NotNil(t, u.TransactionDate)
	assert.Equal(t, time.Date(2025, 6, 10, 15, 30, 45, 0, time.UTC), *u.TransactionDate)

	assert.Equal(t, int32(1), fx.tx.commits.Load())
	assert.Equal(t, int32(0), fx.tx.rollbacks.Load())

	// The result event went out after the commit, timestamp reformatted.
	require.Len(t, fx.published, 1)
	ev := fx.published[0]
	assert.Equal(t, uint64(5), ev.EventTicketID)
	assert.Equal(t, model.PaymentStatusPaid, ev.Status)
	assert.Equal(t, "NLJ7RT61SV", ev.MpesaReceiptNumber)
	assert.Equal(t, uint64(7000), ev.AmountPaidCents)
	assert.Equal(t, "2025-06-10 15:30:45", ev.TransactionDate)
}

func TestHandleCallbackMarksFailed(t *testing.T) {
	fx := newCallbackFixture()
	fx.pushes.byCheckout["ws_CO_77"] = 5

	rec := postJSON(t, fx.h.HandleCallback, failedCallbackBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	code, _ := ackOf(t, rec)
	assert.Equal(t, 0, code)

	// Failure keeps the payment columns empty; only the status flips.
	require.Len(t, fx.tickets.applyUpdates, 1)
	u := fx.tickets.applyUpdates[0]
	assert.Equal(t, model.PaymentStatusFailed, u.Status)
	assert.Nil(t, u.MpesaReceiptNumber)
	assert.Nil(t, u.TransactionDate)
	assert.Nil(t, u.AmountPaidCents)

	assert.Equal(t, int32(1), fx.tx.commits.Load())
}

func TestHandleCallbackDuplicateIgnored(t *testing.T) {
	fx := newCallbackFixture()
	fx.pushes.byCheckout["ws_CO_77"] = 5
	fx.tickets.applied = false // ticket already finalized

	rec := postJSON(t, fx.h.HandleCallback, paidCallbackBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	code, _ := ackOf(t, rec)

	// Redelivery is acknowledged so the provider stops retrying, but the
	// stored outcome stands and no event is republished.
	assert.Equal(t, 0, code)
	assert.Empty(t, fx.published)
	assert.Equal(t, int32(1), fx.tx.commits.Load())
}

func TestHandleCallbackUnknownCheckoutID(t *testing.T) {
	fx := newCallbackFixture()

	rec := postJSON(t, fx.h.HandleCallback, paidCallbackBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	code, desc := ackOf(t, rec)
	assert.Equal(t, 1, code)
	assert.Equal(t, "EventTicket not found", desc)

	assert.Empty(t, fx.tickets.applyUpdates)
	assert.Empty(t, fx.published)
	assert.Equal(t, int32(0), fx.tx.commits.Load())
	assert.Equal(t, int32(1), fx.tx.rollbacks.Load())
}

func TestHandleCallbackMalformedPayloads(t *testing.T) {
	fx := newCallbackFixture()

	cases := []string{
		`{}`,
		`{"Body": {}}`,
		`{"Body": {"stkCallback": {"ResultCode": 0, "ResultDesc": "ok"}}}`,
		`{"Body": {"stkCallback": null}}`,
	}
	for _, body := range cases {
		rec := postJSON(t, fx.h.HandleCallback, body)

		// The provider always gets HTTP 200 with a rejection code; an
		// HTTP error would make it retry a payload that can never parse.
		assert.Equal(t, http.StatusOK, rec.Code, "payload: %s", body)
		code, desc := ackOf(t, rec)
		assert.Equal(t, 1, code, "payload: %s", body)
		assert.Equal(t, "Invalid callback format", desc, "payload: %s", body)
	}
	assert.Empty(t, fx.tickets.applyUpdates)
}

func TestHandleCallbackUndecodableBody(t *testing.T) {
	fx := newCallbackFixture()
	rec := postJSON(t, fx.h.HandleCallback, `{"Body": [1,2,3]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	code, _ := ackOf(t, rec)
	assert.Equal(t, 1, code)
}
