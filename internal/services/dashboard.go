package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerkit/paytrack/internal/fx"
	"github.com/ledgerkit/paytrack/internal/models"
)

// KPIs are the dashboard aggregates for one workspace, expressed in
// the workspace base currency where conversion succeeded and in the
// source currency where it did not.
type KPIs struct {
	Currency       string  `json:"currency"`
	ExpectedIn     float64 `json:"expected_in"`     // remaining on receivables
	ExpectedOut    float64 `json:"expected_out"`    // remaining on payables
	AmountReceived float64 `json:"amount_received"` // completed incoming payments
	AmountPaid     float64 `json:"amount_paid"`     // completed outgoing payments
	OverdueCount   int     `json:"overdue_count"`
}

// Dashboard is a read-only consumer of the balance calculator. Slow or
// failing currency conversion degrades a single figure to its
// unconverted amount instead of blocking the whole computation.
type Dashboard struct {
	store     Store
	rates     fx.RateProvider
	fxTimeout time.Duration
	log       zerolog.Logger
}

func NewDashboard(store Store, rates fx.RateProvider, fxTimeout time.Duration, log zerolog.Logger) *Dashboard {
	if fxTimeout <= 0 {
		fxTimeout = 500 * time.Millisecond
	}
	return &Dashboard{store: store, rates: rates, fxTimeout: fxTimeout, log: log}
}

// Compute iterates the workspace ledger and derives the KPI set as of
// now.
func (d *Dashboard) Compute(ctx context.Context, workspaceID uint, now time.Time) (KPIs, error) {
	ws, err := d.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return KPIs{}, err
	}
	kpis := KPIs{Currency: ws.BaseCurrency}

	invoices, err := d.store.ListInvoices(ctx, workspaceID)
	if err != nil {
		return KPIs{}, err
	}
	for i := range invoices {
		inv := &invoices[i]
		bal := ComputeBalance(inv, inv.Matches)
		if inv.Overdue(now) {
			kpis.OverdueCount++
		}
		remaining := d.convert(ctx, bal.Remaining, inv.Currency, ws.BaseCurrency)
		switch inv.Type {
		case models.InvoiceTypeReceivable:
			if inv.Status != models.InvoiceStatusDraft {
				kpis.ExpectedIn += remaining
			}
		case models.InvoiceTypePayable:
			kpis.ExpectedOut += remaining
		}
	}

	payments, err := d.store.ListPayments(ctx, workspaceID)
	if err != nil {
		return KPIs{}, err
	}
	for _, p := range payments {
		if p.Status != models.PaymentStatusCompleted {
			continue
		}
		amount := d.convert(ctx, p.Amount, p.Currency, ws.BaseCurrency)
		if p.Direction == models.PaymentDirectionPaid {
			kpis.AmountPaid += amount
		} else {
			kpis.AmountReceived += amount
		}
	}
	return kpis, nil
}

// convert applies the workspace base-currency rate under a short
// timeout, falling back to the same-currency amount on any failure.
func (d *Dashboard) convert(ctx context.Context, amount float64, from, to string) float64 {
	if amount == 0 || from == to {
		return amount
	}
	ctx, cancel := context.WithTimeout(ctx, d.fxTimeout)
	defer cancel()
	rate, err := d.rates.Rate(ctx, from, to)
	if err != nil {
		d.log.Debug().Err(err).Str("from", from).Str("to", to).Msg("fx conversion degraded")
		return amount
	}
	return amount * rate
}
