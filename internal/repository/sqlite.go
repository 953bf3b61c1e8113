package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// OpenSQLite opens the SQLite database at dbPath with WAL mode and creates
// the schema. The returned handle is shared by all SQLite-backed repositories.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createSQLiteTables creates the full schema.
func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		marketplace_item_id TEXT NOT NULL DEFAULT '',
		sku TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		current_price INTEGER NOT NULL,
		original_price INTEGER NOT NULL,
		minimum_price INTEGER NOT NULL DEFAULT 0,
		strategy_id TEXT NOT NULL DEFAULT '',
		enable_auto_reduction INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		quantity_available INTEGER NOT NULL DEFAULT 0,
		market_average_price INTEGER NOT NULL DEFAULT 0,
		market_lowest_price INTEGER NOT NULL DEFAULT 0,
		market_competitor_count INTEGER NOT NULL DEFAULT 0,
		last_price_reduction DATETIME,
		last_synced_at DATETIME,
		sync_status TEXT NOT NULL DEFAULT 'synced',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_listings_user ON listings(user_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_item ON listings(user_id, marketplace_item_id)
		WHERE marketplace_item_id != '';
	CREATE INDEX IF NOT EXISTS idx_listings_sku ON listings(user_id, sku);
	CREATE INDEX IF NOT EXISTS idx_listings_candidates ON listings(enable_auto_reduction, status);

	CREATE TABLE IF NOT EXISTS strategies (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		magnitude INTEGER NOT NULL,
		interval_days INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_strategies_user ON strategies(user_id);

	CREATE TABLE IF NOT EXISTS credentials (
		user_id TEXT PRIMARY KEY,
		app_id TEXT NOT NULL DEFAULT '',
		encrypted_secret BLOB,
		dev_id TEXT NOT NULL DEFAULT '',
		encrypted_refresh_token BLOB,
		encrypted_access_token BLOB,
		access_token_expiry DATETIME,
		marketplace_user_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'disconnected',
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS price_reduction_events (
		id TEXT PRIMARY KEY,
		listing_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		old_price INTEGER NOT NULL,
		new_price INTEGER NOT NULL,
		strategy_id TEXT NOT NULL DEFAULT '',
		trigger_kind TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_listing ON price_reduction_events(listing_id, created_at);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		vacation_mode INTEGER NOT NULL DEFAULT 0,
		last_reconciled_at DATETIME,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}
