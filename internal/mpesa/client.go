// Package mpesa implements the outbound Daraja client used to initiate
// STK push payments, plus the types for the asynchronous result callback
// the provider posts back. The booking orchestrator holds the client
// behind a small interface so it can be faked in tests.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config carries the gateway credentials and endpoints. ShortCode,
// Passkey and CallbackURL may legitimately be absent in a partially
// configured deployment; Complete reports whether a push can be built.
type Config struct {
	BaseURL        string // e.g. https://sandbox.safaricom.co.ke
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

// Complete reports whether every value needed to initiate an STK push is
// present.
func (c Config) Complete() bool {
	return c.BaseURL != "" && c.ConsumerKey != "" && c.ConsumerSecret != "" &&
		c.ShortCode != "" && c.Passkey != "" && c.CallbackURL != ""
}

// ErrConfigIncomplete is returned when a push is attempted without the
// short code, passkey or callback URL configured. Handlers surface it as
// an operator-correctable 500.
var ErrConfigIncomplete = errors.New("mpesa: gateway configuration incomplete")

// RejectedError is returned when the gateway answered the push request
// with a non-success response code. Description carries the provider's
// own wording for the caller to relay.
type RejectedError struct {
	Code        string
	Description string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("mpesa: stk push rejected (code %s): %s", e.Code, e.Description)
}

// Client talks to the Daraja API. The zero value is not usable; build
// one with NewClient.
type Client struct {
	cfg Config
	hc  *http.Client
}

// NewClient returns a Client with a sane default timeout. The timeout
// bounds how long a booking transaction can be held open by a slow
// gateway; there is no retry, a timed-out push fails the booking.
func NewClient(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, hc: hc}
}

// PushInput is what the booking orchestrator knows about a payment: the
// rounded whole-currency amount, the customer's phone and the reference
// strings shown on the customer's prompt.
type PushInput struct {
	Amount           uint64 // whole currency units, already rounded
	PhoneNumber      string // 254XXXXXXXXX, leading plus allowed
	AccountReference string
	TransactionDesc  string
}

// PushResponse is the gateway's answer to an accepted push request.
type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// Authenticate fetches a bearer token using the consumer key/secret.
// Tokens are fetched per call; at this volume a token cache buys nothing.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("mpesa: token request: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("mpesa: token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("mpesa: token response missing access_token")
	}
	return tr.AccessToken, nil
}

// STKPush authenticates and submits a payment prompt for in.Amount to
// in.PhoneNumber. It returns the provider's response when the request
// was accepted (ResponseCode "0") and a *RejectedError when the
// provider declined it.
func (c *Client) STKPush(ctx context.Context, in PushInput) (*PushResponse, error) {
	if !c.cfg.Complete() {
		return nil, ErrConfigIncomplete
	}
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	ts := timestamp(time.Now().UTC())
	phone := NormalizePhone(in.PhoneNumber)
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            in.Amount,
		"PartyA":            phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  in.AccountReference,
		"TransactionDesc":   in.TransactionDesc,
	}

	var out PushResponse
	if err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		desc := out.ResponseDescription
		if desc == "" {
			desc = out.CustomerMessage
		}
		return nil, &RejectedError{Code: out.ResponseCode, Description: desc}
	}
	return &out, nil
}

// QueryStatus asks the gateway for the state of a previously initiated
// push. The provider's response is returned verbatim for the caller to
// proxy; no local state is touched.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (json.RawMessage, error) {
	if c.cfg.ShortCode == "" || c.cfg.Passkey == "" {
		return nil, ErrConfigIncomplete
	}
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	ts := timestamp(time.Now().UTC())
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}

	var raw json.RawMessage
	if err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// postJSON performs a bearer-authenticated POST and decodes the JSON
// response into out.
func (c *Client) postJSON(ctx context.Context, path, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("mpesa: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mpesa: %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// timestamp renders t in the YYYYMMDDHHMMSS form the gateway expects.
func timestamp(t time.Time) string {
	return t.Format("20060102150405")
}

// password derives the STK push password: base64 of shortcode, passkey
// and timestamp concatenated.
func password(shortCode, passkey, ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + ts))
}

// NormalizePhone strips a leading plus sign; the gateway wants bare
// 254XXXXXXXXX numbers.
func NormalizePhone(p string) string {
	return strings.TrimPrefix(p, "+")
}

// AmountUnits converts integer cents to the whole-currency amount the
// gateway is charged with, rounding half up.
func AmountUnits(cents uint64) uint64 {
	return (cents + 50) / 100
}
