package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"repricer-api/internal/model"
)

// SQLiteEventRepository implements EventRepository on SQLite. The table is
// append-only: there is deliberately no update or delete statement here.
type SQLiteEventRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteEventRepository creates an event repository on an open handle.
func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

// Append records one committed price change.
func (r *SQLiteEventRepository) Append(ctx context.Context, e *model.PriceReductionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_reduction_events
			(id, listing_id, user_id, old_price, new_price, strategy_id, trigger_kind, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ListingID, e.UserID, e.OldPrice, e.NewPrice, e.StrategyID,
		string(e.Trigger), e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListByListing pages through a listing's history, newest first, with the
// total count for pagination metadata.
func (r *SQLiteEventRepository) ListByListing(ctx context.Context, listingID string, limit, offset int) ([]model.PriceReductionEvent, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM price_reduction_events WHERE listing_id = ?`, listingID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, listing_id, user_id, old_price, new_price, strategy_id, trigger_kind, reason, created_at
		FROM price_reduction_events
		WHERE listing_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, listingID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []model.PriceReductionEvent
	for rows.Next() {
		var (
			e       model.PriceReductionEvent
			trigger string
		)
		if err := rows.Scan(&e.ID, &e.ListingID, &e.UserID, &e.OldPrice, &e.NewPrice,
			&e.StrategyID, &trigger, &e.Reason, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Trigger = model.ReductionTrigger(trigger)
		out = append(out, e)
	}
	return out, total, rows.Err()
}

var _ EventRepository = (*SQLiteEventRepository)(nil)
