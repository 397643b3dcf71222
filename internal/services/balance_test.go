package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerkit/paytrack/internal/models"
	"github.com/ledgerkit/paytrack/internal/services"
)

func matchWithPayment(amount float64, status string) models.Match {
	return models.Match{Payment: models.Payment{Amount: amount, Status: status}}
}

func TestComputeBalance(t *testing.T) {
	inv := &models.Invoice{Total: 1000, Currency: "USD"}

	tests := []struct {
		name          string
		matches       []models.Match
		wantPaid      float64
		wantRemaining float64
	}{
		{
			name:          "no matches",
			matches:       nil,
			wantPaid:      0,
			wantRemaining: 1000,
		},
		{
			name:          "single completed payment",
			matches:       []models.Match{matchWithPayment(400, models.PaymentStatusCompleted)},
			wantPaid:      400,
			wantRemaining: 600,
		},
		{
			name: "multiple completed payments",
			matches: []models.Match{
				matchWithPayment(400, models.PaymentStatusCompleted),
				matchWithPayment(600, models.PaymentStatusCompleted),
			},
			wantPaid:      1000,
			wantRemaining: 0,
		},
		{
			name: "pending refunded and disputed do not count",
			matches: []models.Match{
				matchWithPayment(400, models.PaymentStatusCompleted),
				matchWithPayment(100, models.PaymentStatusPending),
				matchWithPayment(200, models.PaymentStatusRefunded),
				matchWithPayment(300, models.PaymentStatusDisputed),
			},
			wantPaid:      400,
			wantRemaining: 600,
		},
		{
			name:          "overpayment clamps remaining to zero",
			matches:       []models.Match{matchWithPayment(1500, models.PaymentStatusCompleted)},
			wantPaid:      1500,
			wantRemaining: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bal := services.ComputeBalance(inv, tt.matches)
			assert.Equal(t, tt.wantPaid, bal.Paid)
			assert.Equal(t, tt.wantRemaining, bal.Remaining)
		})
	}
}

// paid + remaining == total whenever paid <= total.
func TestBalanceInvariant(t *testing.T) {
	inv := &models.Invoice{Total: 1000}
	for _, paid := range []float64{0, 0.01, 250, 999.99, 1000} {
		bal := services.ComputeBalance(inv, []models.Match{matchWithPayment(paid, models.PaymentStatusCompleted)})
		assert.InDelta(t, inv.Total, bal.Paid+bal.Remaining, 1e-9, "paid=%v", paid)
	}
}
