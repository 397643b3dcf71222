package handlers

import (
	"net/http"
	"time"

	"github.com/ledgerkit/paytrack/internal/httpx"
	"github.com/ledgerkit/paytrack/internal/services"
)

type DashboardHandler struct {
	Dashboard *services.Dashboard
}

func NewDashboardHandler(dashboard *services.Dashboard) *DashboardHandler {
	return &DashboardHandler{Dashboard: dashboard}
}

// Show: GET /dashboard?workspace_id=
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	workspaceID := uintParam(r, "workspace_id")
	if workspaceID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "missing_workspace_id", nil)
		return
	}
	kpis, err := h.Dashboard.Compute(r.Context(), workspaceID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, kpis)
}
