package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerkit/paytrack/internal/httpx"
	"github.com/ledgerkit/paytrack/internal/models"
	"github.com/ledgerkit/paytrack/internal/processor"
	"github.com/ledgerkit/paytrack/internal/services"
)

type PaymentHandler struct {
	Store   services.Store
	Rec     *services.Reconciler
	Clients *processor.Factory
	Log     zerolog.Logger
}

func NewPaymentHandler(store services.Store, rec *services.Reconciler, clients *processor.Factory, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{Store: store, Rec: rec, Clients: clients, Log: log}
}

// List: GET /payments?workspace_id=
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := uintParam(r, "workspace_id")
	if workspaceID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "missing_workspace_id", nil)
		return
	}
	payments, err := h.Store.ListPayments(r.Context(), workspaceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": payments, "total": len(payments)})
}

// Create: POST /payments – manual entry only; processor payments come
// in through the webhook pipeline.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	type createReq struct {
		WorkspaceID uint      `json:"workspace_id"`
		Amount      float64   `json:"amount"`
		Fee         float64   `json:"fee"`
		Currency    string    `json:"currency"`
		Direction   string    `json:"direction"`
		Status      string    `json:"status"`
		ReceivedAt  time.Time `json:"received_at"`
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	details := map[string]string{}
	if req.WorkspaceID == 0 {
		details["workspace_id"] = "required"
	}
	if req.Amount <= 0 {
		details["amount"] = "must be positive"
	}
	if req.Currency == "" {
		details["currency"] = "required"
	}
	if req.Direction != models.PaymentDirectionReceived && req.Direction != models.PaymentDirectionPaid {
		details["direction"] = "must be received or paid"
	}
	if len(details) > 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", details)
		return
	}
	status := req.Status
	if status == "" {
		status = models.PaymentStatusCompleted
	}
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}
	p := models.Payment{
		WorkspaceID: req.WorkspaceID,
		Source:      models.PaymentSourceManual,
		Amount:      req.Amount,
		Fee:         req.Fee,
		Currency:    req.Currency,
		Direction:   req.Direction,
		Status:      status,
		ReceivedAt:  req.ReceivedAt,
	}
	if err := h.Store.InsertPayment(r.Context(), &p); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

// Delete: POST /payments/delete?workspace_id=&id=
// Cascades through the reconciler so no match survives its payment.
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, id := uintParam(r, "workspace_id"), uintParam(r, "id")
	if workspaceID == 0 || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	if err := h.Rec.DeletePayment(r.Context(), workspaceID, id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Refresh: POST /payments/refresh?workspace_id=&id=
// Re-reads a processor payment's state through the workspace's client
// and applies it. Manual payments have nothing to refresh against.
func (h *PaymentHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	workspaceID, id := uintParam(r, "workspace_id"), uintParam(r, "id")
	if workspaceID == 0 || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	p, err := h.Store.GetPayment(r.Context(), workspaceID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if p.Source != models.PaymentSourceProcessor || p.ExternalID == nil {
		httpx.JSONError(w, http.StatusBadRequest, "not_a_processor_payment", nil)
		return
	}
	client, err := h.Clients.ClientFor(r.Context(), workspaceID)
	if err != nil {
		if errors.Is(err, processor.ErrNoCredentials) {
			httpx.JSONError(w, http.StatusBadRequest, "processor_not_configured", nil)
			return
		}
		writeServiceError(w, err)
		return
	}
	status, err := client.PaymentStatus(r.Context(), *p.ExternalID)
	if err != nil {
		h.Log.Warn().Err(err).Uint("payment_id", id).Msg("processor refresh failed")
		httpx.JSONError(w, http.StatusBadGateway, "processor_unavailable", nil)
		return
	}
	// Applied through the reconciler so a matched invoice's status is
	// recomputed alongside the payment in one transaction.
	if err := h.Rec.ApplyPaymentStatus(r.Context(), workspaceID, id, status); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": status})
}
