package model

import (
	"fmt"
	"time"
)

// StrategyKind selects the price computation rule.
type StrategyKind string

const (
	// KindFixedPercentage cuts a fixed percentage of the current price.
	KindFixedPercentage StrategyKind = "fixed_percentage"
	// KindFixedAmount subtracts a fixed currency amount.
	KindFixedAmount StrategyKind = "fixed_amount"
	// KindMarketBased moves toward the market average price.
	KindMarketBased StrategyKind = "market_based"
	// KindTimeBased scales the percentage cut with listing age.
	KindTimeBased StrategyKind = "time_based"
)

// Strategy is a named, reusable reduction rule owned by a user. It is
// read-only to the scheduler. Magnitude is a percentage (1-50) for the
// percentage kinds and cents (100-99900, i.e. $1-$999) for fixed_amount;
// market_based ignores it.
type Strategy struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Name         string       `json:"name"`
	Kind         StrategyKind `json:"kind"`
	Magnitude    int64        `json:"magnitude"`
	IntervalDays int          `json:"interval_days"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Validate rejects malformed strategy configuration before it reaches the
// store or the pricing engine.
func (s *Strategy) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if s.IntervalDays < 1 || s.IntervalDays > 365 {
		return fmt.Errorf("interval_days %d out of range 1-365", s.IntervalDays)
	}
	switch s.Kind {
	case KindFixedPercentage, KindTimeBased:
		if s.Magnitude < 1 || s.Magnitude > 50 {
			return fmt.Errorf("percentage magnitude %d out of range 1-50", s.Magnitude)
		}
	case KindFixedAmount:
		if s.Magnitude < 100 || s.Magnitude > 99900 {
			return fmt.Errorf("fixed amount %d out of range 100-99900 cents", s.Magnitude)
		}
	case KindMarketBased:
		// Magnitude unused.
	default:
		return fmt.Errorf("unknown strategy kind %q", s.Kind)
	}
	return nil
}
