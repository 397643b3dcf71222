package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ledgerkit/paytrack/internal/httpx"
	"github.com/ledgerkit/paytrack/internal/models"
	"github.com/ledgerkit/paytrack/internal/services"
)

// ExtractionHandler records the output of the upstream AI document
// extractor. Promotion to a draft invoice is a separate, explicit step
// (see InvoiceHandler.FromExtraction).
type ExtractionHandler struct {
	Store services.Store
}

func NewExtractionHandler(store services.Store) *ExtractionHandler {
	return &ExtractionHandler{Store: store}
}

// Create: POST /extractions
func (h *ExtractionHandler) Create(w http.ResponseWriter, r *http.Request) {
	type createReq struct {
		WorkspaceID uint            `json:"workspace_id"`
		VendorName  string          `json:"vendor_name"`
		Type        string          `json:"type"`
		Total       float64         `json:"total"`
		Currency    string          `json:"currency"`
		IssueDate   time.Time       `json:"issue_date"`
		DueDate     time.Time       `json:"due_date"`
		Confidence  float64         `json:"confidence"`
		Raw         json.RawMessage `json:"raw,omitempty"`
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.WorkspaceID == 0 || req.Currency == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"workspace_id": "required", "currency": "required"})
		return
	}
	exType := req.Type
	if exType == "" {
		exType = models.InvoiceTypePayable
	}
	ex := models.InvoiceExtraction{
		WorkspaceID: req.WorkspaceID,
		VendorName:  req.VendorName,
		Type:        exType,
		Total:       req.Total,
		Currency:    req.Currency,
		IssueDate:   req.IssueDate,
		DueDate:     req.DueDate,
		Confidence:  req.Confidence,
		RawJSON:     string(req.Raw),
	}
	if err := h.Store.InsertExtraction(r.Context(), &ex); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ex)
}
