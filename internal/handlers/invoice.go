package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ledgerkit/paytrack/internal/httpx"
	"github.com/ledgerkit/paytrack/internal/models"
	"github.com/ledgerkit/paytrack/internal/services"
)

type InvoiceHandler struct {
	Store services.Store
	Rec   *services.Reconciler
}

func NewInvoiceHandler(store services.Store, rec *services.Reconciler) *InvoiceHandler {
	return &InvoiceHandler{Store: store, Rec: rec}
}

// invoiceView is an invoice plus its derived values, always in the
// invoice's own currency.
type invoiceView struct {
	models.Invoice
	Paid      float64 `json:"paid"`
	Remaining float64 `json:"remaining"`
	IsOverdue bool    `json:"is_overdue"`
}

// List: GET /invoices?workspace_id=
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := uintParam(r, "workspace_id")
	if workspaceID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "missing_workspace_id", nil)
		return
	}
	invs, err := h.Store.ListInvoices(r.Context(), workspaceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	now := time.Now()
	views := make([]invoiceView, 0, len(invs))
	for i := range invs {
		inv := invs[i]
		bal := services.ComputeBalance(&inv, inv.Matches)
		views = append(views, invoiceView{
			Invoice:   inv,
			Paid:      bal.Paid,
			Remaining: bal.Remaining,
			IsOverdue: inv.Overdue(now),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": views, "total": len(views)})
}

// Create: POST /invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	type createReq struct {
		WorkspaceID uint      `json:"workspace_id"`
		Type        string    `json:"type"`
		Total       float64   `json:"total"`
		Currency    string    `json:"currency"`
		IssueDate   time.Time `json:"issue_date"`
		DueDate     time.Time `json:"due_date"`
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
	if req.Type != models.InvoiceTypeReceivable && req.Type != models.InvoiceTypePayable {
		details["type"] = "must be receivable or payable"
	}
	if req.Total <= 0 {
		details["total"] = "must be positive"
	}
	if req.Currency == "" {
		details["currency"] = "required"
	}
	if len(details) > 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", details)
		return
	}
	inv := models.Invoice{
		WorkspaceID: req.WorkspaceID,
		Type:        req.Type,
		Status:      models.InvoiceStatusDraft,
		Total:       req.Total,
		Currency:    req.Currency,
		IssueDate:   req.IssueDate,
		DueDate:     req.DueDate,
	}
	if err := h.Store.InsertInvoice(r.Context(), &inv); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

// Approve: POST /invoices/approve?workspace_id=&id=
// The explicit draft -> approved user action; payment-derived
// transitions stay with the reconciler.
func (h *InvoiceHandler) Approve(w http.ResponseWriter, r *http.Request) {
	workspaceID, id := uintParam(r, "workspace_id"), uintParam(r, "id")
	if workspaceID == 0 || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	inv, err := h.Store.GetInvoice(r.Context(), workspaceID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if inv.Status != models.InvoiceStatusDraft {
		httpx.JSONError(w, http.StatusConflict, "not_draft", map[string]string{"status": inv.Status})
		return
	}
	if err := h.Store.UpdateInvoiceStatus(r.Context(), workspaceID, id, models.InvoiceStatusApproved); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": models.InvoiceStatusApproved})
}

// FromExtraction: POST /invoices/from-extraction
// Promotes a stored AI extraction into a draft invoice.
func (h *InvoiceHandler) FromExtraction(w http.ResponseWriter, r *http.Request) {
	type promoteReq struct {
		WorkspaceID  uint `json:"workspace_id"`
		ExtractionID uint `json:"extraction_id"`
	}
	var req promoteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.WorkspaceID == 0 || req.ExtractionID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"workspace_id": "required", "extraction_id": "required"})
		return
	}
	ex, err := h.Store.GetExtraction(r.Context(), req.WorkspaceID, req.ExtractionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ex.InvoiceID != nil {
		httpx.JSONError(w, http.StatusConflict, "already_promoted", map[string]uint{"invoice_id": *ex.InvoiceID})
		return
	}
	inv := models.Invoice{
		WorkspaceID: ex.WorkspaceID,
		Type:        ex.Type,
		Status:      models.InvoiceStatusDraft,
		Total:       ex.Total,
		Currency:    ex.Currency,
		IssueDate:   ex.IssueDate,
		DueDate:     ex.DueDate,
	}
	if err := h.Store.InsertInvoice(r.Context(), &inv); err != nil {
		writeServiceError(w, err)
		return
	}
	ex.InvoiceID = &inv.ID
	if err := h.Store.UpdateExtraction(r.Context(), ex); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}
