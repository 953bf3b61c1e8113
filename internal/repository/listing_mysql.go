package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"repricer-api/internal/model"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLListingRepository implements ListingRepository using MySQL.
type MySQLListingRepository struct {
	db *sql.DB
}

// NewMySQLListingRepository connects to MySQL and ensures the schema. The DSN
// must include parseTime=true so DATETIME columns scan into time.Time.
func NewMySQLListingRepository(dsn string) (*MySQLListingRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLListingTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLListingRepository] initialized")
	return &MySQLListingRepository{db: db}, nil
}

func createMySQLListingTable(db *sql.DB) error {
	// MySQL has no partial unique index, so the (user_id, marketplace_item_id)
	// uniqueness for imported rows is enforced in the sync service instead.
	query := `
	CREATE TABLE IF NOT EXISTS listings (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		marketplace_item_id VARCHAR(128) NOT NULL DEFAULT '',
		sku VARCHAR(128) NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		current_price BIGINT NOT NULL,
		original_price BIGINT NOT NULL,
		minimum_price BIGINT NOT NULL DEFAULT 0,
		strategy_id VARCHAR(64) NOT NULL DEFAULT '',
		enable_auto_reduction TINYINT NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		quantity_available INT NOT NULL DEFAULT 0,
		market_average_price BIGINT NOT NULL DEFAULT 0,
		market_lowest_price BIGINT NOT NULL DEFAULT 0,
		market_competitor_count INT NOT NULL DEFAULT 0,
		last_price_reduction DATETIME NULL,
		last_synced_at DATETIME NULL,
		sync_status VARCHAR(16) NOT NULL DEFAULT 'synced',
		version BIGINT NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		INDEX idx_listings_user (user_id),
		INDEX idx_listings_item (user_id, marketplace_item_id),
		INDEX idx_listings_sku (user_id, sku)
	)`
	_, err := db.Exec(query)
	return err
}

func (r *MySQLListingRepository) Create(ctx context.Context, l *model.Listing) error {
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

func (r *MySQLListingRepository) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	return scanListing(row)
}

func (r *MySQLListingRepository) GetByMarketplaceItemID(ctx context.Context, userID, itemID string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = ? AND marketplace_item_id = ?`,
		userID, itemID)
	return scanListing(row)
}

func (r *MySQLListingRepository) GetBySKU(ctx context.Context, userID, sku string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = ? AND sku = ?`,
		userID, sku)
	l, err := scanListing(row)
	if err == ErrNotFound {
		return nil, nil
	}
	return l, err
}

func (r *MySQLListingRepository) ListByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

func (r *MySQLListingRepository) ListAutoReductionCandidates(ctx context.Context) ([]model.Listing, error) {
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

func (r *MySQLListingRepository) UpdateMarketplaceFields(ctx context.Context, l *model.Listing) error {
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

func (r *MySQLListingRepository) UpdateMonitoringConfig(ctx context.Context, l *model.Listing) error {
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

func (r *MySQLListingRepository) ClaimReduction(ctx context.Context, id string, version int64) (int64, error) {
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

func (r *MySQLListingRepository) CommitReduction(ctx context.Context, id string, newPrice int64, version int64, at time.Time) error {
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

func (r *MySQLListingRepository) SetSyncStatus(ctx context.Context, id string, status model.SyncStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET sync_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	return nil
}

func (r *MySQLListingRepository) MarkEnded(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = 'ended', version = version + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark listing ended: %w", err)
	}
	return nil
}

func (r *MySQLListingRepository) CountByStrategy(ctx context.Context, strategyID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE strategy_id = ?`, strategyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count by strategy: %w", err)
	}
	return count, nil
}

func (r *MySQLListingRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
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

func (r *MySQLListingRepository) Close() error {
	return r.db.Close()
}

// Ensure MySQLListingRepository implements ListingRepository
var _ ListingRepository = (*MySQLListingRepository)(nil)
