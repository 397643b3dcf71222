package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerkit/paytrack/internal/httpx"
	"github.com/ledgerkit/paytrack/internal/services"
)

// WebhookHandler normalizes the processor's loosely-typed payload into
// the adapter's event shape. Signature verification happens in
// middleware upstream; by this point the payload is authentic.
type WebhookHandler struct {
	Ingestor *services.Ingestor
	Log      zerolog.Logger
}

func NewWebhookHandler(ingestor *services.Ingestor, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{Ingestor: ingestor, Log: log}
}

// processorPayload mirrors the processor's notification format: a type
// discriminator plus a data object with optional correlation metadata.
type processorPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Amount     float64   `json:"amount"`
		Fee        float64   `json:"fee"`
		Currency   string    `json:"currency"`
		OccurredAt time.Time `json:"occurred_at"`
		Metadata   struct {
			WorkspaceID *uint `json:"workspace_id,omitempty"`
			InvoiceID   *uint `json:"invoice_id,omitempty"`
		} `json:"metadata"`
	} `json:"data"`
}

var kindByEventType = map[string]string{
	"payment.succeeded": services.EventKindSucceeded,
	"payment.failed":    services.EventKindFailed,
	"payment.refunded":  services.EventKindRefunded,
}

// Handle: POST /webhooks/payments
//
// The processor delivers at least once and retries on non-2xx. Dropped
// events (unattributable, unknown kind) are acknowledged with 200 so
// the processor does not retry them forever; only transient internal
// failures return 5xx to request redelivery.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var payload processorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	kind, ok := kindByEventType[payload.Type]
	if !ok {
		// Unrecognized event families are acknowledged and ignored, like
		// any processor integration that subscribes to a subset of events.
		h.Log.Debug().Str("type", payload.Type).Msg("ignoring unhandled event type")
		httpx.JSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	ev := services.PaymentEvent{
		ExternalID:  payload.ID,
		Kind:        kind,
		Amount:      payload.Data.Amount,
		Fee:         payload.Data.Fee,
		Currency:    payload.Data.Currency,
		OccurredAt:  payload.Data.OccurredAt,
		WorkspaceID: payload.Data.Metadata.WorkspaceID,
		InvoiceID:   payload.Data.Metadata.InvoiceID,
	}
	if err := h.Ingestor.Ingest(r.Context(), ev); err != nil {
		var ingErr *services.IngestionError
		if errors.As(err, &ingErr) {
			// Already logged and counted by the ingestor. Acknowledge so
			// one bad event does not block the delivery pipeline.
			httpx.JSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "ingestion_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
