package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
)

// PaymentRequest is what the orchestrator hands to the payment module
// when starting a checkout.  Protocol details (provider selection,
// HMAC webhook signing) live entirely on the payment module's side.
type PaymentRequest struct {
	BookingID   string          `json:"booking_id"`
	Reference   string          `json:"booking_reference"`
	AmountCents uint32          `json:"amount_cents"`
	Currency    string          `json:"currency"`
	ReturnURL   string          `json:"return_url"`
	Guest       model.GuestInfo `json:"guest"`
}

// PaymentReference is the payment module's answer: where to send the
// guest and how the provider knows this checkout.
type PaymentReference struct {
	PaymentURL  string `json:"payment_url"`
	ProviderRef string `json:"provider_ref"`
}

// PaymentCollaborator initiates checkouts with the external payment
// module.  Success and failure come back later as callbacks on the
// orchestrator, delivered by the payment module after it has verified
// the provider's webhook.
type PaymentCollaborator interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentReference, error)
}

// HTTPPaymentClient talks to the platform's payment module over REST.
type HTTPPaymentClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPPaymentClient constructs a client for the payment module at
// baseURL.  The api key authenticates this service to the module.
func NewHTTPPaymentClient(baseURL, apiKey string) *HTTPPaymentClient {
	return &HTTPPaymentClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// InitiatePayment posts the checkout request and decodes the payment
// reference.  Called only after the hold is placed and its lock
// released; a slow payment module can never stall inventory.
func (c *HTTPPaymentClient) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentReference, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment module: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment module: unexpected status %d", resp.StatusCode)
	}
	var ref PaymentReference
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return nil, fmt.Errorf("payment module: decode response: %w", err)
	}
	if ref.PaymentURL == "" {
		return nil, fmt.Errorf("payment module: empty payment url")
	}
	return &ref, nil
}

// StubPaymentCollaborator answers locally without any payment module.
// Used in development mode and by tests; the returned URL points at
// nothing.
type StubPaymentCollaborator struct{}

func (StubPaymentCollaborator) InitiatePayment(_ context.Context, req PaymentRequest) (*PaymentReference, error) {
	return &PaymentReference{
		PaymentURL:  "https://pay.invalid/checkout/" + req.BookingID,
		ProviderRef: "stub-" + req.Reference,
	}, nil
}
