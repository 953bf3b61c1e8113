package model

import "time"

// ReductionTrigger distinguishes user-initiated reductions from scheduled
// cycles.
type ReductionTrigger string

const (
	TriggerManual    ReductionTrigger = "manual"
	TriggerScheduled ReductionTrigger = "scheduled"
)

// PriceReductionEvent is an immutable, append-only history record of one
// committed price change. Rows are never deleted, even after the listing is
// soft-closed.
type PriceReductionEvent struct {
	ID         string           `json:"id"`
	ListingID  string           `json:"listing_id"`
	UserID     string           `json:"user_id"`
	OldPrice   int64            `json:"old_price_cents"`
	NewPrice   int64            `json:"new_price_cents"`
	StrategyID string           `json:"strategy_id,omitempty"`
	Trigger    ReductionTrigger `json:"trigger"`
	Reason     string           `json:"reason,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
