package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPCharger talks to the payment gateway over its JSON HTTP API.
// The gateway base URL comes from configuration; only the /charges
// endpoint is used here.
type HTTPCharger struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCharger builds a charger for the given gateway base URL.
func NewHTTPCharger(baseURL string) *HTTPCharger {
	return &HTTPCharger{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type chargeRequest struct {
	SessionID   string `json:"session_id"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

// Charge implements Charger.  Non-2xx responses and transport errors
// are infrastructure faults; a 2xx body carries the gateway's own
// success/decline verdict.
func (c *HTTPCharger) Charge(ctx context.Context, sessionID string, amountCents int64, method string) (Receipt, error) {
	body, err := json.Marshal(chargeRequest{SessionID: sessionID, AmountCents: amountCents, Method: method})
	if err != nil {
		return Receipt{}, fmt.Errorf("payment: marshal charge: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("payment: charge request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Receipt{}, fmt.Errorf("payment: gateway returned %d", resp.StatusCode)
	}
	var rec Receipt
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return Receipt{}, fmt.Errorf("payment: decode receipt: %w", err)
	}
	return rec, nil
}
