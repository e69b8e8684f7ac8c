// Package payment implements the HTTP client for the external
// payment-service.  The core never talks to the card processor
// directly; it creates payment intents and requests refunds through
// this internal gateway and learns outcomes from its webhook.
package payment

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "time"
)

// IntentRequest describes the payment intent to create for a
// reservation.  Amount is in cents.
type IntentRequest struct {
    AmountCents   uint32            `json:"amount"`
    Currency      string            `json:"currency"`
    UserID        uint64            `json:"user_id"`
    CustomerEmail string            `json:"customer_email"`
    ReservationID uint64            `json:"order_id"`
    Description   string            `json:"description"`
    Metadata      map[string]string `json:"metadata,omitempty"`
}

// Intent is the gateway's answer to a created payment intent.  The
// client secret goes back to the browser; the payment reference is
// persisted on the reservation so the webhook can be matched later.
type Intent struct {
    PaymentRef   string `json:"payment_ref"`
    ClientSecret string `json:"client_secret"`
}

// Client calls the payment-service REST API.  Every call carries a
// bounded timeout so a slow gateway can never hold a reservation
// lock open; callers translate failures into a retryable error.
type Client struct {
    baseURL string
    http    *http.Client
}

// NewClient returns a Client for the given base URL, e.g.
// "http://payment-service:80/api".
func NewClient(baseURL string) *Client {
    return &Client{
        baseURL: baseURL,
        http:    &http.Client{Timeout: 30 * time.Second},
    }
}

// CreateIntent registers a payment intent for a reservation.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
    if req.Currency == "" {
        req.Currency = "eur"
    }
    if req.Description == "" {
        req.Description = "TicketTheatre reservation"
    }
    var out struct {
        Data Intent `json:"data"`
    }
    if err := c.post(ctx, "/payments", req, &out); err != nil {
        return nil, err
    }
    if out.Data.PaymentRef == "" {
        return nil, fmt.Errorf("payment-service returned no payment reference")
    }
    return &out.Data, nil
}

// Refund asks the gateway to refund a payment.  A zero amount refunds
// the full charge.
func (c *Client) Refund(ctx context.Context, paymentRef string, amountCents uint32) error {
    body := map[string]interface{}{}
    if amountCents > 0 {
        body["amount"] = amountCents
    }
    return c.post(ctx, "/payments/"+paymentRef+"/refund", body, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
    payload, err := json.Marshal(body)
    if err != nil {
        return err
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
    if err != nil {
        return err
    }
    req.Header.Set("Content-Type", "application/json")

    resp, err := c.http.Do(req)
    if err != nil {
        return fmt.Errorf("payment-service request: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
        return fmt.Errorf("payment-service returned %d: %s", resp.StatusCode, string(b))
    }
    if out == nil {
        return nil
    }
    if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
        return fmt.Errorf("payment-service response: %w", err)
    }
    return nil
}
