package repository

import (
	"context"
	"time"

	"repricer-api/internal/model"
)

// RepoError is a sentinel error type for store-level failures the services
// branch on.
type RepoError string

func (e RepoError) Error() string { return string(e) }

const (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound RepoError = "not found"

	// ErrConflict indicates an optimistic-concurrency version mismatch:
	// another writer changed the row between read and write.
	ErrConflict RepoError = "version conflict"
)

// ListingRepository defines listing data access. All conditional writes are
// guarded by the listing's version column; a mismatch returns ErrConflict.
type ListingRepository interface {
	// Create inserts a new listing row.
	Create(ctx context.Context, l *model.Listing) error

	// GetByID retrieves a listing by internal id.
	GetByID(ctx context.Context, id string) (*model.Listing, error)

	// GetByMarketplaceItemID retrieves a user's listing by marketplace item id.
	GetByMarketplaceItemID(ctx context.Context, userID, itemID string) (*model.Listing, error)

	// GetBySKU retrieves a user's listing by SKU. Returns nil, nil when absent.
	GetBySKU(ctx context.Context, userID, sku string) (*model.Listing, error)

	// ListByUser returns all of a user's listings.
	ListByUser(ctx context.Context, userID string) ([]model.Listing, error)

	// ListAutoReductionCandidates returns active listings with auto reduction
	// enabled, a positive floor and an assigned strategy. Due-ness, vacation
	// and strategy-active filtering happen in the scheduler.
	ListAutoReductionCandidates(ctx context.Context) ([]model.Listing, error)

	// UpdateMarketplaceFields writes the marketplace-sourced fields (price,
	// quantity, title, sync metadata) guarded by l.Version. User-owned fields
	// are never touched.
	UpdateMarketplaceFields(ctx context.Context, l *model.Listing) error

	// UpdateMonitoringConfig writes the user-owned fields (floor, strategy
	// assignment, enable flag) guarded by l.Version.
	UpdateMonitoringConfig(ctx context.Context, l *model.Listing) error

	// ClaimReduction bumps the version from the observed value, fencing out
	// concurrent reducers. Returns the new version, or ErrConflict.
	ClaimReduction(ctx context.Context, id string, version int64) (int64, error)

	// CommitReduction finalizes a reduction claimed at version: writes the new
	// price, stamps last_price_reduction and marks the listing synced.
	CommitReduction(ctx context.Context, id string, newPrice int64, version int64, at time.Time) error

	// SetSyncStatus records the outcome of the last marketplace write.
	SetSyncStatus(ctx context.Context, id string, status model.SyncStatus) error

	// MarkEnded soft-closes a listing the marketplace no longer reports.
	// Price history is never deleted.
	MarkEnded(ctx context.Context, id string) error

	// CountByStrategy counts listings referencing a strategy, used to reject
	// deletion of strategies still in use.
	CountByStrategy(ctx context.Context, strategyID string) (int64, error)

	// Stats returns store statistics for the admin surface.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}

// StrategyRepository defines strategy data access.
type StrategyRepository interface {
	Create(ctx context.Context, s *model.Strategy) error
	GetByID(ctx context.Context, id string) (*model.Strategy, error)
	ListByUser(ctx context.Context, userID string) ([]model.Strategy, error)
	Update(ctx context.Context, s *model.Strategy) error
	Delete(ctx context.Context, userID, id string) error
}

// CredentialRepository stores encrypted credential records. Only the vault
// reads or writes these rows.
type CredentialRepository interface {
	// Get returns the record for userID, or nil, nil when absent.
	Get(ctx context.Context, userID string) (*model.CredentialRecord, error)
	Upsert(ctx context.Context, rec *model.CredentialRecord) error
	UpdateStatus(ctx context.Context, userID string, status model.ConnectionStatus) error
}

// EventRepository stores the append-only price reduction history.
type EventRepository interface {
	Append(ctx context.Context, e *model.PriceReductionEvent) error
	ListByListing(ctx context.Context, listingID string, limit, offset int) ([]model.PriceReductionEvent, int64, error)
}

// SettingsRepository stores per-user flags consulted at selection time.
type SettingsRepository interface {
	// Get returns settings for userID; absent users get zero-value defaults.
	Get(ctx context.Context, userID string) (*model.UserSettings, error)
	SetVacation(ctx context.Context, userID string, vacation bool) error
	SetLastReconciled(ctx context.Context, userID string, at time.Time) error
}
