// Package processor is the boundary to the external payment
// processor's API. Webhook delivery is handled elsewhere; this package
// covers the outbound direction: resolving a per-workspace client from
// stored credentials and querying payment state on demand.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ledgerkit/paytrack/internal/models"
)

// Client is one workspace's view of the processor API.
type Client interface {
	// PaymentStatus fetches the processor-side state of a payment by its
	// external id and reports it in ledger terms (pending, completed,
	// refunded, disputed).
	PaymentStatus(ctx context.Context, externalID string) (string, error)
}

// Credentials identify one workspace's processor account.
type Credentials struct {
	AccountID string
	APIKey    string
}

// HTTPClient talks to the processor REST API.
type HTTPClient struct {
	baseURL string
	creds   Credentials
	httpc   *http.Client
}

func NewHTTPClient(baseURL string, creds Credentials) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		creds:   creds,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// processor-side states and their ledger equivalents
var statusByProcessorState = map[string]string{
	"processing": models.PaymentStatusPending,
	"succeeded":  models.PaymentStatusCompleted,
	"refunded":   models.PaymentStatusRefunded,
	"disputed":   models.PaymentStatusDisputed,
}

func (c *HTTPClient) PaymentStatus(ctx context.Context, externalID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+externalID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.APIKey)
	req.Header.Set("Processor-Account", c.creds.AccountID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("processor request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("processor returned %d for payment %s", resp.StatusCode, externalID)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode processor response: %w", err)
	}
	status, ok := statusByProcessorState[body.Status]
	if !ok {
		return "", fmt.Errorf("unknown processor status %q for payment %s", body.Status, externalID)
	}
	return status, nil
}
