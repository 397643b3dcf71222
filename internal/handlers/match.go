package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ledgerkit/paytrack/internal/httpx"
	"github.com/ledgerkit/paytrack/internal/models"
	"github.com/ledgerkit/paytrack/internal/services"
)

type MatchHandler struct {
	Rec       *services.Reconciler
	Suggester *services.Suggester
}

func NewMatchHandler(rec *services.Reconciler, suggester *services.Suggester) *MatchHandler {
	return &MatchHandler{Rec: rec, Suggester: suggester}
}

// Create: POST /matches
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	type createReq struct {
		WorkspaceID uint    `json:"workspace_id"`
		InvoiceID   uint    `json:"invoice_id"`
		PaymentID   uint    `json:"payment_id"`
		Score       float64 `json:"score"`
		Method      string  `json:"method"`
		Reason      string  `json:"reason"`
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.WorkspaceID == 0 || req.InvoiceID == 0 || req.PaymentID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"workspace_id": "required", "invoice_id": "required", "payment_id": "required"})
		return
	}
	method := req.Method
	if method == "" {
		method = models.MatchMethodManual
	}
	m, err := h.Rec.CreateMatch(r.Context(), req.WorkspaceID, req.InvoiceID, req.PaymentID, req.Score, method, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

// Update: POST /matches/update – re-points a match, typically to fix a
// wrong auto-match.
func (h *MatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	type updateReq struct {
		WorkspaceID  uint     `json:"workspace_id"`
		MatchID      uint     `json:"match_id"`
		NewInvoiceID *uint    `json:"new_invoice_id,omitempty"`
		NewScore     *float64 `json:"new_score,omitempty"`
		NewReason    *string  `json:"new_reason,omitempty"`
	}
	var req updateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.WorkspaceID == 0 || req.MatchID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"workspace_id": "required", "match_id": "required"})
		return
	}
	m, err := h.Rec.UpdateMatch(r.Context(), req.WorkspaceID, req.MatchID, services.UpdateMatchParams{
		NewInvoiceID: req.NewInvoiceID,
		NewScore:     req.NewScore,
		NewReason:    req.NewReason,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

// Delete: POST /matches/delete?workspace_id=&id= ("unmatch")
func (h *MatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, id := uintParam(r, "workspace_id"), uintParam(r, "id")
	if workspaceID == 0 || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	if err := h.Rec.DeleteMatch(r.Context(), workspaceID, id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Suggest: GET /matches/suggest?workspace_id=&payment_id=
func (h *MatchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	workspaceID, paymentID := uintParam(r, "workspace_id"), uintParam(r, "payment_id")
	if workspaceID == 0 || paymentID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "missing_payment_id", nil)
		return
	}
	suggestions, err := h.Suggester.SuggestForPayment(r.Context(), workspaceID, paymentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	type suggestionView struct {
		InvoiceID uint    `json:"invoice_id"`
		Score     float64 `json:"score"` // normalized 0.0-1.0
		Reason    string  `json:"reason"`
	}
	views := make([]suggestionView, 0, len(suggestions))
	for _, s := range suggestions {
		views = append(views, suggestionView{
			InvoiceID: s.Invoice.ID,
			Score:     s.NormalizedScore(),
			Reason:    s.Reason,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": views})
}
