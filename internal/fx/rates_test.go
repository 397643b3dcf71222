package fx

import (
	"context"
	"errors"
	"testing"
)

func TestStaticRates(t *testing.T) {
	rates := NewStaticRates(map[string]float64{"eur/usd": 1.1})
	ctx := context.Background()

	got, err := rates.Rate(ctx, "EUR", "USD")
	if err != nil || got != 1.1 {
		t.Fatalf("EUR/USD: got %v, %v", got, err)
	}

	// Inverse pairs are derived.
	got, err = rates.Rate(ctx, "USD", "EUR")
	if err != nil {
		t.Fatalf("USD/EUR: %v", err)
	}
	if want := 1 / 1.1; got != want {
		t.Fatalf("USD/EUR: got %v want %v", got, want)
	}

	// Identity is always available.
	got, err = rates.Rate(ctx, "usd", "USD")
	if err != nil || got != 1 {
		t.Fatalf("identity: got %v, %v", got, err)
	}

	if _, err := rates.Rate(ctx, "USD", "GBP"); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestStaticRatesHonorsContext(t *testing.T) {
	rates := NewStaticRates(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rates.Rate(ctx, "USD", "USD"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
