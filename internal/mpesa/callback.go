package mpesa

import (
	"errors"
	"math"
	"strconv"
	"time"
)

// ErrMalformedCallback is returned when the callback payload does not
// carry the nested Body.stkCallback structure. The handler acknowledges
// such payloads to the provider with a rejection code instead of failing.
var ErrMalformedCallback = errors.New("mpesa: malformed callback payload")

// CallbackEnvelope is the outermost shape of the provider's asynchronous
// payment result. The nested pointers are deliberate: absence of any
// level marks the payload malformed, it is never silently defaulted.
type CallbackEnvelope struct {
	Body *CallbackBody `json:"Body"`
}

type CallbackBody struct {
	StkCallback *StkCallback `json:"stkCallback"`
}

// StkCallback is the provider's verdict on one push request, keyed by
// the CheckoutRequestID issued when the push was initiated.
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
}

// CallbackMetadata is a list of named values. The provider documents no
// ordering, so items are always looked up by name.
type CallbackMetadata struct {
	Items []MetadataItem `json:"Item"`
}

// MetadataItem holds one named value. Value is string-or-number typed on
// the wire depending on the item.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// Callback validates the envelope and returns the inner callback, or
// ErrMalformedCallback when the expected structure is absent.
func (e *CallbackEnvelope) Callback() (*StkCallback, error) {
	if e == nil || e.Body == nil || e.Body.StkCallback == nil {
		return nil, ErrMalformedCallback
	}
	cb := e.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, ErrMalformedCallback
	}
	return cb, nil
}

// stringItem returns the named metadata value rendered as a string.
// Numeric values are formatted without an exponent so a numeric
// TransactionDate round-trips to its digit form.
func (m *CallbackMetadata) stringItem(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, it := range m.Items {
		if it.Name != name {
			continue
		}
		switch v := it.Value.(type) {
		case string:
			return v, true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
		return "", false
	}
	return "", false
}

// numberItem returns the named metadata value as a float64.
func (m *CallbackMetadata) numberItem(name string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	for _, it := range m.Items {
		if it.Name != name {
			continue
		}
		switch v := it.Value.(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
		return 0, false
	}
	return 0, false
}

// PaymentResult is the reconciled outcome of a callback, ready for the
// ticket update. The pointer fields are populated only when the payment
// succeeded and the provider included the corresponding metadata item.
type PaymentResult struct {
	CheckoutRequestID string
	Paid              bool
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     *string
	TransactionDate   *time.Time
	AmountCents       *uint64
}

// Result interprets the callback. Result code 0 means paid; the receipt
// number, transaction timestamp and confirmed amount are pulled from the
// metadata by name. Any other code means the payment failed and only the
// provider's description is carried along.
func (cb *StkCallback) Result() PaymentResult {
	res := PaymentResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	if cb.ResultCode != 0 {
		return res
	}
	res.Paid = true
	if v, ok := cb.CallbackMetadata.stringItem("MpesaReceiptNumber"); ok && v != "" {
		res.ReceiptNumber = &v
	}
	if v, ok := cb.CallbackMetadata.stringItem("TransactionDate"); ok {
		if t, err := ParseTransactionDate(v); err == nil {
			res.TransactionDate = &t
		}
	}
	if v, ok := cb.CallbackMetadata.numberItem("Amount"); ok {
		cents := uint64(math.Round(v * 100))
		res.AmountCents = &cents
	}
	return res
}

// ParseTransactionDate parses the provider's YYYYMMDDHHMMSS timestamp
// into a UTC time.
func ParseTransactionDate(s string) (time.Time, error) {
	return time.ParseInLocation("20060102150405", s, time.UTC)
}

// FormatTransactionDate reformats the provider's YYYYMMDDHHMMSS
// timestamp into the standard "2006-01-02 15:04:05" form, e.g.
// 20250610153045 becomes "2025-06-10 15:30:45".
func FormatTransactionDate(s string) (string, error) {
	t, err := ParseTransactionDate(s)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02 15:04:05"), nil
}
