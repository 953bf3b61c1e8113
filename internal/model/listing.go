package model

import (
	"fmt"
	"time"
)

// ListingStatus tracks the marketplace lifecycle of a listing.
type ListingStatus string

const (
	ListingActive ListingStatus = "active"
	ListingEnded  ListingStatus = "ended"
)

// SyncStatus reflects the outcome of the last marketplace write for a listing.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncPending SyncStatus = "pending"
	SyncError   SyncStatus = "error"
)

// Listing is one marketplace item under monitoring. All money values are
// integer cents. MarketplaceItemID is owned by the marketplace and immutable
// once assigned; strategy assignment, floor and the enable flag are owned by
// the user and never touched by reconciliation.
type Listing struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	MarketplaceItemID string        `json:"marketplace_item_id"`
	SKU               string        `json:"sku,omitempty"`
	Title             string        `json:"title"`

	CurrentPrice  int64 `json:"current_price_cents"`
	OriginalPrice int64 `json:"original_price_cents"`
	MinimumPrice  int64 `json:"minimum_price_cents"`

	StrategyID          string        `json:"strategy_id,omitempty"`
	EnableAutoReduction bool          `json:"enable_auto_reduction"`
	Status              ListingStatus `json:"listing_status"`
	QuantityAvailable   int           `json:"quantity_available"`

	// Market signal, populated by external analysis. A competitor count of
	// zero means no usable signal.
	MarketAveragePrice    int64 `json:"market_average_price_cents,omitempty"`
	MarketLowestPrice     int64 `json:"market_lowest_price_cents,omitempty"`
	MarketCompetitorCount int   `json:"market_competitor_count,omitempty"`

	LastPriceReduction *time.Time `json:"last_price_reduction,omitempty"`
	LastSyncedAt       *time.Time `json:"last_synced_at,omitempty"`
	SyncStatus         SyncStatus `json:"sync_status"`

	// Version guards optimistic-concurrency writes: reconciliation and
	// reduction both read-then-conditionally-write against it.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarketSignal is the optional competitive-pricing input to market_based
// strategies.
type MarketSignal struct {
	AveragePrice    int64
	LowestPrice     int64
	CompetitorCount int
}

// Signal returns the listing's market signal, or nil when none is available.
func (l *Listing) Signal() *MarketSignal {
	if l.MarketCompetitorCount <= 0 || l.MarketAveragePrice <= 0 {
		return nil
	}
	return &MarketSignal{
		AveragePrice:    l.MarketAveragePrice,
		LowestPrice:     l.MarketLowestPrice,
		CompetitorCount: l.MarketCompetitorCount,
	}
}

// NextPriceReduction derives the earliest time the next reduction may run
// given the strategy interval. Listings never reduced before become due one
// interval after creation.
func (l *Listing) NextPriceReduction(intervalDays int) time.Time {
	base := l.CreatedAt
	if l.LastPriceReduction != nil {
		base = *l.LastPriceReduction
	}
	return base.AddDate(0, 0, intervalDays)
}

// ValidateMonitoringConfig enforces the monitoring invariants before a config
// write is accepted: auto-reduction requires a positive floor, and the floor
// may not exceed the original price.
func (l *Listing) ValidateMonitoringConfig() error {
	if l.EnableAutoReduction && l.MinimumPrice <= 0 {
		return fmt.Errorf("auto reduction requires a minimum price above zero")
	}
	if l.OriginalPrice > 0 && l.MinimumPrice > l.OriginalPrice {
		return fmt.Errorf("minimum price %d exceeds original price %d", l.MinimumPrice, l.OriginalPrice)
	}
	if l.EnableAutoReduction && l.StrategyID == "" {
		return fmt.Errorf("auto reduction requires an assigned strategy")
	}
	return nil
}
