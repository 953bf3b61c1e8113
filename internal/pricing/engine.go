// Package pricing implements the strategy engine: pure functions mapping
// (current price, floor, listing age, market signal) to a next price. The
// engine never touches the network or the store, and never returns a price
// below the listing's floor.
package pricing

import (
	"fmt"
	"time"

	"repricer-api/internal/model"
)

// LowConfidenceCompetitors is the competitor-count threshold below which a
// market signal is surfaced as a warning without blocking the computation.
const LowConfidenceCompetitors = 5

// maxTimeScaledPercent caps the single-step cut of time_based strategies,
// matching the upper bound of percentage magnitudes.
const maxTimeScaledPercent = 50

// Result is the outcome of one strategy computation. NewPrice is meaningful
// only when Applied is true; Reason explains a skip, Warning flags a
// low-confidence input that did not block the computation.
type Result struct {
	NewPrice int64  `json:"new_price_cents"`
	Applied  bool   `json:"applied"`
	Reason   string `json:"reason,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

// Skip reasons.
const (
	ReasonAtFloor       = "already at minimum price"
	ReasonNoSignal      = "no market signal available"
	ReasonAboveMarket   = "market average not below current price"
	ReasonNoChange      = "computed price equals current price"
	ReasonNotYetElapsed = "no interval elapsed since creation"
)

// ComputeNextPrice evaluates strategy s against listing l at time now.
// It returns an error only for malformed strategy configuration; every
// normal input is absorbed by floor clamping or a skipped Result.
func ComputeNextPrice(l *model.Listing, s *model.Strategy, now time.Time) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid strategy %s: %w", s.ID, err)
	}

	if l.CurrentPrice <= l.MinimumPrice {
		return Result{Reason: ReasonAtFloor}, nil
	}

	var (
		computed int64
		warning  string
	)

	switch s.Kind {
	case model.KindFixedPercentage:
		computed = applyPercent(l.CurrentPrice, s.Magnitude)

	case model.KindFixedAmount:
		computed = l.CurrentPrice - s.Magnitude

	case model.KindMarketBased:
		sig := l.Signal()
		if sig == nil {
			return Result{Reason: ReasonNoSignal}, nil
		}
		if sig.CompetitorCount < LowConfidenceCompetitors {
			warning = fmt.Sprintf("low-confidence signal: only %d competitors", sig.CompetitorCount)
		}
		if sig.AveragePrice >= l.CurrentPrice {
			return Result{Reason: ReasonAboveMarket, Warning: warning}, nil
		}
		computed = sig.AveragePrice

	case model.KindTimeBased:
		intervals := elapsedIntervals(l.CreatedAt, now, s.IntervalDays)
		if intervals < 1 {
			return Result{Reason: ReasonNotYetElapsed}, nil
		}
		pct := s.Magnitude * intervals
		if pct > maxTimeScaledPercent {
			pct = maxTimeScaledPercent
		}
		computed = applyPercent(l.CurrentPrice, pct)
	}

	if computed < l.MinimumPrice {
		computed = l.MinimumPrice
	}
	if computed >= l.CurrentPrice {
		return Result{Reason: ReasonNoChange, Warning: warning}, nil
	}

	return Result{NewPrice: computed, Applied: true, Warning: warning}, nil
}

// applyPercent reduces cents by pct percent, rounding half-up to whole cents.
func applyPercent(cents, pct int64) int64 {
	product := cents * (100 - pct)
	return (product + 50) / 100
}

// elapsedIntervals counts whole reduction intervals between created and now.
func elapsedIntervals(created, now time.Time, intervalDays int) int64 {
	if intervalDays <= 0 || !now.After(created) {
		return 0
	}
	interval := time.Duration(intervalDays) * 24 * time.Hour
	return int64(now.Sub(created) / interval)
}
