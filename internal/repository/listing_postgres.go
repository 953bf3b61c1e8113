package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"repricer-api/internal/model"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresListingRepository implements ListingRepository using PostgreSQL.
// Preferred for multi-instance deployments where SQLite's single writer is a
// bottleneck.
type PostgresListingRepository struct {
	db *sql.DB
}

// NewPostgresListingRepository connects to PostgreSQL and ensures the schema.
func NewPostgresListingRepository(dsn string) (*PostgresListingRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if err := createPostgresListingTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[PostgresListingRepository] initialized")
	return &PostgresListingRepository{db: db}, nil
}

func createPostgresListingTable(db *sql.DB) error {
	// Flag columns are SMALLINT rather than BOOLEAN so row scanning is
	// identical across the three backends.
	query := `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		marketplace_item_id TEXT NOT NULL DEFAULT '',
		sku TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		current_price BIGINT NOT NULL,
		original_price BIGINT NOT NULL,
		minimum_price BIGINT NOT NULL DEFAULT 0,
		strategy_id TEXT NOT NULL DEFAULT '',
		enable_auto_reduction SMALLINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		quantity_available INTEGER NOT NULL DEFAULT 0,
		market_average_price BIGINT NOT NULL DEFAULT 0,
		market_lowest_price BIGINT NOT NULL DEFAULT 0,
		market_competitor_count INTEGER NOT NULL DEFAULT 0,
		last_price_reduction TIMESTAMPTZ,
		last_synced_at TIMESTAMPTZ,
		sync_status TEXT NOT NULL DEFAULT 'synced',
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_listings_user ON listings(user_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_item ON listings(user_id, marketplace_item_id)
		WHERE marketplace_item_id != '';
	CREATE INDEX IF NOT EXISTS idx_listings_sku ON listings(user_id, sku);
	`
	_, err := db.Exec(query)
	return err
}

func (r *PostgresListingRepository) Create(ctx context.Context, l *model.Listing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

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

func (r *PostgresListingRepository) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	return scanListing(row)
}

func (r *PostgresListingRepository) GetByMarketplaceItemID(ctx context.Context, userID, itemID string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = $1 AND marketplace_item_id = $2`,
		userID, itemID)
	return scanListing(row)
}

func (r *PostgresListingRepository) GetBySKU(ctx context.Context, userID, sku string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = $1 AND sku = $2`,
		userID, sku)
	l, err := scanListing(row)
	if err == ErrNotFound {
		return nil, nil
	}
	return l, err
}

func (r *PostgresListingRepository) ListByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

func (r *PostgresListingRepository) ListAutoReductionCandidates(ctx context.Context) ([]model.Listing, error) {
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

func (r *PostgresListingRepository) UpdateMarketplaceFields(ctx context.Context, l *model.Listing) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET
			title = $1, current_price = $2, quantity_available = $3,
			market_average_price = $4, market_lowest_price = $5, market_competitor_count = $6,
			last_synced_at = $7, sync_status = $8,
			version = version + 1, updated_at = $9
		WHERE id = $10 AND version = $11`,
		l.Title, l.CurrentPrice, l.QuantityAvailable,
		l.MarketAveragePrice, l.MarketLowestPrice, l.MarketCompetitorCount,
		nullTime(l.LastSyncedAt), string(l.SyncStatus),
		time.Now().UTC(), l.ID, l.Version)
	if err != nil {
		return fmt.Errorf("failed to update marketplace fields: %w", err)
	}
	return casOutcome(res)
}

func (r *PostgresListingRepository) UpdateMonitoringConfig(ctx context.Context, l *model.Listing) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET
			minimum_price = $1, strategy_id = $2, enable_auto_reduction = $3,
			version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`,
		l.MinimumPrice, l.StrategyID, boolToInt(l.EnableAutoReduction),
		time.Now().UTC(), l.ID, l.Version)
	if err != nil {
		return fmt.Errorf("failed to update monitoring config: %w", err)
	}
	return casOutcome(res)
}

func (r *PostgresListingRepository) ClaimReduction(ctx context.Context, id string, version int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET version = version + 1, sync_status = 'pending', updated_at = $1
		WHERE id = $2 AND version = $3`,
		time.Now().UTC(), id, version)
	if err != nil {
		return 0, fmt.Errorf("failed to claim reduction: %w", err)
	}
	if err := casOutcome(res); err != nil {
		return 0, err
	}
	return version + 1, nil
}

func (r *PostgresListingRepository) CommitReduction(ctx context.Context, id string, newPrice int64, version int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET
			current_price = $1, last_price_reduction = $2, sync_status = 'synced',
			version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`,
		newPrice, at, at, id, version)
	if err != nil {
		return fmt.Errorf("failed to commit reduction: %w", err)
	}
	return casOutcome(res)
}

func (r *PostgresListingRepository) SetSyncStatus(ctx context.Context, id string, status model.SyncStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET sync_status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	return nil
}

func (r *PostgresListingRepository) MarkEnded(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = 'ended', version = version + 1, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark listing ended: %w", err)
	}
	return nil
}

func (r *PostgresListingRepository) CountByStrategy(ctx context.Context, strategyID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE strategy_id = $1`, strategyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count by strategy: %w", err)
	}
	return count, nil
}

func (r *PostgresListingRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
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

func (r *PostgresListingRepository) Close() error {
	return r.db.Close()
}

// Ensure PostgresListingRepository implements ListingRepository
var _ ListingRepository = (*PostgresListingRepository)(nil)
