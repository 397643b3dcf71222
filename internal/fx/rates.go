// Package fx abstracts the external currency conversion collaborator
// consumed by dashboard aggregation. The core never owns exchange
// rates; it only asks for one and degrades gracefully when the answer
// is slow or missing.
package fx

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrRateUnavailable is returned when no rate is known for a currency
// pair.
var ErrRateUnavailable = errors.New("fx: rate unavailable")

// RateProvider resolves a multiplier converting one unit of `from`
// into `to`. Implementations are expected to honor ctx cancellation;
// callers bound each lookup with a short timeout.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// StaticRates is an in-memory rate table keyed by "FROM/TO". Identity
// pairs always resolve to 1.
type StaticRates struct {
	rates map[string]float64
}

func NewStaticRates(rates map[string]float64) *StaticRates {
	normalized := make(map[string]float64, len(rates))
	for pair, rate := range rates {
		normalized[strings.ToUpper(pair)] = rate
	}
	return &StaticRates{rates: normalized}
}

func (s *StaticRates) Rate(ctx context.Context, from, to string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, nil
	}
	if rate, ok := s.rates[from+"/"+to]; ok {
		return rate, nil
	}
	// Derive the inverse when only the opposite direction is configured.
	if rate, ok := s.rates[to+"/"+from]; ok && rate != 0 {
		return 1 / rate, nil
	}
	return 0, fmt.Errorf("%w: %s/%s", ErrRateUnavailable, from, to)
}
