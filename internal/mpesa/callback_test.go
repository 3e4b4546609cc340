package mpesa

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 35.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20250610153045},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

const failureCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user."
    }
  }
}`

func TestCallbackSuccessResult(t *testing.T) {
	var env CallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(successCallback), &env))

	cb, err := env.Callback()
	require.NoError(t, err)

	res := cb.Result()
	assert.True(t, res.Paid)
	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)

	require.NotNil(t, res.ReceiptNumber)
	assert.Equal(t, "NLJ7RT61SV", *res.ReceiptNumber)

	// TransactionDate arrives as a JSON number and must still parse.
	require.NotNil(t, res.TransactionDate)
	assert.Equal(t, time.Date(2025, 6, 10, 15, 30, 45, 0, time.UTC), *res.TransactionDate)

	require.NotNil(t, res.AmountCents)
	assert.Equal(t, uint64(3500), *res.AmountCents)
}

func TestCallbackFailureResult(t *testing.T) {
	var env CallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(failureCallback), &env))

	cb, err := env.Callback()
	require.NoError(t, err)

	res := cb.Result()
	assert.False(t, res.Paid)
	assert.Equal(t, 1032, res.ResultCode)
	assert.Equal(t, "Request cancelled by user.", res.ResultDesc)
	assert.Nil(t, res.ReceiptNumber)
	assert.Nil(t, res.TransactionDate)
	assert.Nil(t, res.AmountCents)
}

func TestCallbackMalformed(t *testing.T) {
	cases := []string{
		`{}`,
		`{"Body": {}}`,
		`{"Body": {"stkCallback": {"ResultCode": 0}}}`, // no CheckoutRequestID
	}
	for _, raw := range cases {
		var env CallbackEnvelope
		require.NoError(t, json.Unmarshal([]byte(raw), &env))
		_, err := env.Callback()
		assert.ErrorIs(t, err, ErrMalformedCallback, "payload: %s", raw)
	}
}

func TestCallbackMissingMetadataItems(t *testing.T) {
	// A success verdict with no metadata still reads as paid; the
	// optional fields just stay nil.
	cb := &StkCallback{CheckoutRequestID: "ws_CO_1", ResultCode: 0, ResultDesc: "ok"}
	res := cb.Result()
	assert.True(t, res.Paid)
	assert.Nil(t, res.ReceiptNumber)
	assert.Nil(t, res.TransactionDate)
	assert.Nil(t, res.AmountCents)
}

func TestParseTransactionDate(t *testing.T) {
	got, err := ParseTransactionDate("20250610153045")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 15, 30, 45, 0, time.UTC), got)

	_, err = ParseTransactionDate("not-a-date")
	assert.Error(t, err)
}

func TestFormatTransactionDate(t *testing.T) {
	got, err := FormatTransactionDate("20250610153045")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10 15:30:45", got)
}
