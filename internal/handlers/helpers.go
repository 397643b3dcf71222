package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ledgerkit/paytrack/internal/httpx"
	"github.com/ledgerkit/paytrack/internal/services"
)

// uintParam parses a positive integer query parameter, returning 0
// when absent or malformed.
func uintParam(r *http.Request, name string) uint {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return uint(n)
}

// writeServiceError maps the core's error taxonomy onto HTTP statuses:
// NotFound -> 404, PaymentAlreadyMatched -> 409, validation -> 400,
// everything else -> 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrPaymentAlreadyMatched):
		httpx.JSONError(w, http.StatusConflict, "payment_already_matched", nil)
	case errors.Is(err, services.ErrInvalidScore):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_score", nil)
	case errors.Is(err, services.ErrCurrencyMismatch):
		httpx.JSONError(w, http.StatusBadRequest, "currency_mismatch", nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
