package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/api/bookings/mpesa-callback",
	}
}

// fakeDaraja serves the token endpoint plus whatever handler the test
// installs for the push/query paths.
func fakeDaraja(t *testing.T, push http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		expect := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		if r.Header.Get("Authorization") != expect {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123", "expires_in": "3599"})
	})
	if push != nil {
		mux.HandleFunc("/mpesa/stkpush/v1/processrequest", push)
	}
	return httptest.NewServer(mux)
}

func TestSTKPushAccepted(t *testing.T) {
	var got map[string]any
	srv := fakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(PushResponse{
			MerchantRequestID:   "mr-1",
			CheckoutRequestID:   "ws_CO_001",
			ResponseCode:        "0",
			ResponseDescription: "Success. Request accepted for processing",
			CustomerMessage:     "Success. Request accepted for processing",
		})
	})
	defer srv.Close()

	cl := NewClient(testConfig(srv.URL), srv.Client())
	resp, err := cl.STKPush(context.Background(), PushInput{
		Amount:           35,
		PhoneNumber:      "+254712345678",
		AccountReference: "EventBooking-7",
		TransactionDesc:  "Payment for Nairobi Jazz Festival tickets",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_001", resp.CheckoutRequestID)

	// The payload carries the normalized phone in both party fields and
	// the configured short code.
	assert.Equal(t, "254712345678", got["PartyA"])
	assert.Equal(t, "254712345678", got["PhoneNumber"])
	assert.Equal(t, "174379", got["BusinessShortCode"])
	assert.Equal(t, "CustomerPayBillOnline", got["TransactionType"])
	assert.Equal(t, float64(35), got["Amount"])

	// Password must be base64(shortcode + passkey + timestamp).
	ts, _ := got["Timestamp"].(string)
	require.Len(t, ts, 14)
	assert.Equal(t, password("174379", "passkey", ts), got["Password"])
}

func TestSTKPushRejected(t *testing.T) {
	srv := fakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PushResponse{
			ResponseCode:        "1032",
			ResponseDescription: "Request cancelled by user",
		})
	})
	defer srv.Close()

	cl := NewClient(testConfig(srv.URL), srv.Client())
	_, err := cl.STKPush(context.Background(), PushInput{Amount: 10, PhoneNumber: "254712345678"})
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "1032", rej.Code)
	assert.Equal(t, "Request cancelled by user", rej.Description)
}

func TestSTKPushUpstreamError(t *testing.T) {
	srv := fakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessage":"Invalid Access Token"}`, http.StatusInternalServerError)
	})
	defer srv.Close()

	cl := NewClient(testConfig(srv.URL), srv.Client())
	_, err := cl.STKPush(context.Background(), PushInput{Amount: 10, PhoneNumber: "254712345678"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestSTKPushIncompleteConfig(t *testing.T) {
	cl := NewClient(Config{BaseURL: "https://sandbox.safaricom.co.ke"}, nil)
	_, err := cl.STKPush(context.Background(), PushInput{Amount: 10, PhoneNumber: "254712345678"})
	assert.ErrorIs(t, err, ErrConfigIncomplete)
}

func TestAuthenticateMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	cl := NewClient(testConfig(srv.URL), srv.Client())
	_, err := cl.Authenticate(context.Background())
	require.Error(t, err)
}

func TestPassword(t *testing.T) {
	got := password("174379", "pk", "20250610153045")
	want := base64.StdEncoding.EncodeToString([]byte("174379pk20250610153045"))
	assert.Equal(t, want, got)
}

func TestTimestamp(t *testing.T) {
	at := time.Date(2025, 6, 10, 15, 30, 45, 0, time.UTC)
	assert.Equal(t, "20250610153045", timestamp(at))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "254712345678", NormalizePhone("+254712345678"))
	assert.Equal(t, "254712345678", NormalizePhone("254712345678"))
}

func TestAmountUnits(t *testing.T) {
	assert.Equal(t, uint64(35), AmountUnits(3500))
	assert.Equal(t, uint64(34), AmountUnits(3449)) // 34.49 rounds down
	assert.Equal(t, uint64(35), AmountUnits(3450)) // half rounds up
	assert.Equal(t, uint64(0), AmountUnits(0))
}
