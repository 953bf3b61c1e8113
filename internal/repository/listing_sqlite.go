package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"repricer-api/internal/model"
)

// listingColumns is the canonical select list shared by every listing query.
const listingColumns = `id, user_id, marketplace_item_id, sku, title,
	current_price, original_price, minimum_price, strategy_id,
	enable_auto_reduction, status, quantity_available,
	market_average_price, market_lowest_price, market_competitor_count,
	last_price_reduction, last_synced_at, sync_status, version,
	created_at, updated_at`

// SQLiteListingRepository implements ListingRepository on SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteListingRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteListingRepository creates a listing repository on an open handle
// from OpenSQLite.
func NewSQLiteListingRepository(db *sql.DB) *SQLiteListingRepository {
	log.Printf("[SQLiteListingRepository] initialized")
	return &SQLiteListingRepository{db: db}
}

// Create inserts a new listing row.
func (r *SQLiteListingRepository) Create(ctx context.Context, l *model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.UserID, l.MarketplaceItemID, l.SKU, l.Title,
		l.CurrentPrice, l.OriginalPrice, l.MinimumPrice, l.StrategyID,
		boolToInt(l.EnableAutoReduction), string(l.Status), l.QuantityAvailable,
		l.MarketAveragePrice, l.MarketLowestPrice, l.MarketCompetitorCount,
		nullTime(l.LastPriceReduction), nullTime(l.LastSyncedAt), string(l.SyncStatus), l.Version,
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// GetByID retrieves a listing by internal id.
func (r *SQLiteListingRepository) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	return scanListing(row)
}

// GetByMarketplaceItemID retrieves a user's listing by marketplace item id.
func (r *SQLiteListingRepository) GetByMarketplaceItemID(ctx context.Context, userID, itemID string) (*model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = ? AND marketplace_item_id = ?`,
		userID, itemID)
	return scanListing(row)
}

// GetBySKU retrieves a user's listing by SKU. Returns nil, nil when absent so
// idempotent creation can branch without error juggling.
func (r *SQLiteListingRepository) GetBySKU(ctx context.Context, userID, sku string) (*model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = ? AND sku = ?`,
		userID, sku)
	l, err := scanListing(row)
	if err == ErrNotFound {
		return nil, nil
	}
	return l, err
}

// ListByUser returns all of a user's listings.
func (r *SQLiteListingRepository) ListByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// ListAutoReductionCandidates returns active listings eligible for the
// scheduler's selection pass.
func (r *SQLiteListingRepository) ListAutoReductionCandidates(ctx context.Context) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE enable_auto_reduction = 1
		  AND status = 'active'
		  AND minimum_price > 0
		  AND strategy_id != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// UpdateMarketplaceFields writes marketplace-sourced fields with a version
// check. User-owned fields are deliberately absent from the statement.
func (r *SQLiteListingRepository) UpdateMarketplaceFields(ctx context.Context, l *model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET
			title = ?, current_price = ?, quantity_available = ?,
			market_average_price = ?, market_lowest_price = ?, market_competitor_count = ?,
			last_synced_at = ?, sync_status = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		l.Title, l.CurrentPrice, l.QuantityAvailable,
		l.MarketAveragePrice, l.MarketLowestPrice, l.MarketCompetitorCount,
		nullTime(l.LastSyncedAt), string(l.SyncStatus),
		time.Now().UTC(), l.ID, l.Version)
	if err != nil {
		return fmt.Errorf("failed to update marketplace fields: %w", err)
	}
	return casOutcome(res)
}

// UpdateMonitoringConfig writes user-owned monitoring fields with a version
// check.
func (r *SQLiteListingRepository) UpdateMonitoringConfig(ctx context.Context, l *model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET
			minimum_price = ?, strategy_id = ?, enable_auto_reduction = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		l.MinimumPrice, l.StrategyID, boolToInt(l.EnableAutoReduction),
		time.Now().UTC(), l.ID, l.Version)
	if err != nil {
		return fmt.Errorf("failed to update monitoring config: %w", err)
	}
	return casOutcome(res)
}

// ClaimReduction fences out concurrent reducers by bumping the version from
// the observed value. Exactly one claimant wins per observed version.
func (r *SQLiteListingRepository) ClaimReduction(ctx context.Context, id string, version int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET version = version + 1, sync_status = 'pending', updated_at = ?
		WHERE id = ? AND version = ?`,
		time.Now().UTC(), id, version)
	if err != nil {
		return 0, fmt.Errorf("failed to claim reduction: %w", err)
	}
	if err := casOutcome(res); err != nil {
		return 0, err
	}
	return version + 1, nil
}

// CommitReduction finalizes a claimed reduction.
func (r *SQLiteListingRepository) CommitReduction(ctx context.Context, id string, newPrice int64, version int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET
			current_price = ?, last_price_reduction = ?, sync_status = 'synced',
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		newPrice, at, at, id, version)
	if err != nil {
		return fmt.Errorf("failed to commit reduction: %w", err)
	}
	return casOutcome(res)
}

// SetSyncStatus records the outcome of the last marketplace write.
func (r *SQLiteListingRepository) SetSyncStatus(ctx context.Context, id string, status model.SyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET sync_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	return nil
}

// MarkEnded soft-closes a listing. The row and its price history remain.
func (r *SQLiteListingRepository) MarkEnded(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = 'ended', version = version + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark listing ended: %w", err)
	}
	return nil
}

// CountByStrategy counts listings referencing a strategy.
func (r *SQLiteListingRepository) CountByStrategy(ctx context.Context, strategyID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE strategy_id = ?`, strategyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count by strategy: %w", err)
	}
	return count, nil
}

// Stats returns statistics about the listing store.
func (r *SQLiteListingRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]interface{})

	var total, active, monitored int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&total); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE status = 'active'`).Scan(&active); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE enable_auto_reduction = 1`).Scan(&monitored); err != nil {
		return nil, err
	}
	stats["total_listings"] = total
	stats["active_listings"] = active
	stats["monitored_listings"] = monitored

	var lastSync sql.NullTime
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(last_synced_at) FROM listings`).Scan(&lastSync); err == nil && lastSync.Valid {
		stats["last_sync"] = lastSync.Time
	}

	return stats, nil
}

// Close closes the database connection.
func (r *SQLiteListingRepository) Close() error {
	return r.db.Close()
}

// casOutcome converts a zero-row UPDATE into ErrConflict.
func casOutcome(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanListing maps one row in listingColumns order.
func scanListing(row rowScanner) (*model.Listing, error) {
	var (
		l         model.Listing
		enable    int
		status    string
		syncState string
		lastRed   sql.NullTime
		lastSync  sql.NullTime
	)
	err := row.Scan(
		&l.ID, &l.UserID, &l.MarketplaceItemID, &l.SKU, &l.Title,
		&l.CurrentPrice, &l.OriginalPrice, &l.MinimumPrice, &l.StrategyID,
		&enable, &status, &l.QuantityAvailable,
		&l.MarketAveragePrice, &l.MarketLowestPrice, &l.MarketCompetitorCount,
		&lastRed, &lastSync, &syncState, &l.Version,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan listing: %w", err)
	}

	l.EnableAutoReduction = enable != 0
	l.Status = model.ListingStatus(status)
	l.SyncStatus = model.SyncStatus(syncState)
	if lastRed.Valid {
		t := lastRed.Time
		l.LastPriceReduction = &t
	}
	if lastSync.Valid {
		t := lastSync.Time
		l.LastSyncedAt = &t
	}
	return &l, nil
}

func scanListings(rows *sql.Rows) ([]model.Listing, error) {
	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Ensure SQLiteListingRepository implements ListingRepository
var _ ListingRepository = (*SQLiteListingRepository)(nil)
