package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ledgerkit/paytrack/internal/models"
)

// amountTolerance is the candidate filter window: only invoices whose
// total is within ±10% of the payment amount are considered.
const amountTolerance = 0.10

// Suggestion is a scored candidate invoice for an unmatched payment.
// Score is on a 0-100 scale here; it is normalized to 0.0-1.0 when
// persisted as a match confidence.
type Suggestion struct {
	Invoice models.Invoice `json:"invoice"`
	Score   float64        `json:"score"`
	Reason  string         `json:"reason"`
}

// NormalizedScore returns the score on the 0.0-1.0 scale used by match
// records.
func (s Suggestion) NormalizedScore() float64 { return s.Score / 100 }

// SuggestMatches scores and ranks candidate invoices for a payment.
// Candidates must share the payment's currency, be approved or
// partially paid, and have a total within the tolerance window.
// Ordering is by descending score, ties broken by earlier due date.
//
// The engine only suggests; it never mutates state.
func SuggestMatches(p *models.Payment, candidates []models.Invoice) []Suggestion {
	if p.Amount <= 0 {
		return nil
	}
	out := make([]Suggestion, 0, len(candidates))
	for _, inv := range candidates {
		if inv.Currency != p.Currency {
			continue
		}
		if inv.Status != models.InvoiceStatusApproved && inv.Status != models.InvoiceStatusPartiallyPaid {
			continue
		}
		deviation := math.Abs(inv.Total-p.Amount) / p.Amount
		if deviation > amountTolerance {
			continue
		}
		score := 100 - deviation*100
		if score < 0 {
			score = 0
		}
		out = append(out, Suggestion{
			Invoice: inv,
			Score:   score,
			Reason:  fmt.Sprintf("invoice total %.2f %s is within %.2f%% of payment amount %.2f", inv.Total, inv.Currency, deviation*100, p.Amount),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Invoice.DueDate.Before(out[j].Invoice.DueDate)
	})
	return out
}

// Suggester runs the suggestion engine against the store's candidate
// query.
type Suggester struct {
	store Store
}

func NewSuggester(store Store) *Suggester { return &Suggester{store: store} }

// SuggestForPayment looks up the payment and returns ranked candidate
// invoices from the workspace ledger.
func (s *Suggester) SuggestForPayment(ctx context.Context, workspaceID, paymentID uint) ([]Suggestion, error) {
	p, err := s.store.GetPayment(ctx, workspaceID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Amount <= 0 {
		return nil, nil
	}
	candidates, err := s.store.ListInvoicesForMatching(ctx, workspaceID, p.Currency,
		[]string{models.InvoiceStatusApproved, models.InvoiceStatusPartiallyPaid},
		AmountRange{Min: p.Amount * (1 - amountTolerance), Max: p.Amount * (1 + amountTolerance)})
	if err != nil {
		return nil, err
	}
	return SuggestMatches(p, candidates), nil
}
