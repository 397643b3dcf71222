package services

import "github.com/ledgerkit/paytrack/internal/models"

// Balance is the derived payment state of an invoice, always in the
// invoice's own currency.
type Balance struct {
	Paid      float64 `json:"paid"`
	Remaining float64 `json:"remaining"`
}

// ComputeBalance derives paid/remaining amounts for an invoice from
// its match records. Only completed payments count toward paid;
// pending, refunded and disputed payments do not. Remaining is clamped
// at zero, so an overpaid invoice reports remaining 0 rather than a
// negative value.
//
// Pure and re-derivable at any time from the current set of matches;
// nothing here is cached on the invoice row beyond the status field.
func ComputeBalance(inv *models.Invoice, matches []models.Match) Balance {
	var paid float64
	for _, m := range matches {
		if m.Payment.Status == models.PaymentStatusCompleted {
			paid += m.Payment.Amount
		}
	}
	remaining := inv.Total - paid
	if remaining < 0 {
		remaining = 0
	}
	return Balance{Paid: paid, Remaining: remaining}
}
