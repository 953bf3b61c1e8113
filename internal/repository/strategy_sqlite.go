package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"repricer-api/internal/model"
)

// SQLiteStrategyRepository implements StrategyRepository on SQLite.
type SQLiteStrategyRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStrategyRepository creates a strategy repository on an open handle.
func NewSQLiteStrategyRepository(db *sql.DB) *SQLiteStrategyRepository {
	return &SQLiteStrategyRepository{db: db}
}

const strategyColumns = `id, user_id, name, kind, magnitude, interval_days, active, created_at, updated_at`

// Create inserts a new strategy.
func (r *SQLiteStrategyRepository) Create(ctx context.Context, s *model.Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO strategies (`+strategyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Name, string(s.Kind), s.Magnitude, s.IntervalDays,
		boolToInt(s.Active), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create strategy: %w", err)
	}
	return nil
}

// GetByID retrieves a strategy by id.
func (r *SQLiteStrategyRepository) GetByID(ctx context.Context, id string) (*model.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+strategyColumns+` FROM strategies WHERE id = ?`, id)
	return scanStrategy(row)
}

// ListByUser returns a user's strategies.
func (r *SQLiteStrategyRepository) ListByUser(ctx context.Context, userID string) ([]model.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+strategyColumns+` FROM strategies WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var out []model.Strategy
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Update rewrites a strategy's mutable fields.
func (r *SQLiteStrategyRepository) Update(ctx context.Context, s *model.Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `
		UPDATE strategies SET name = ?, kind = ?, magnitude = ?, interval_days = ?, active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		s.Name, string(s.Kind), s.Magnitude, s.IntervalDays, boolToInt(s.Active), s.UpdatedAt,
		s.ID, s.UserID)
	if err != nil {
		return fmt.Errorf("failed to update strategy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a strategy. Referential protection (no delete while listings
// reference it) is enforced by the service layer before calling this.
func (r *SQLiteStrategyRepository) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM strategies WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete strategy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanStrategy(row rowScanner) (*model.Strategy, error) {
	var (
		s      model.Strategy
		kind   string
		active int
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &kind, &s.Magnitude, &s.IntervalDays,
		&active, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan strategy: %w", err)
	}
	s.Kind = model.StrategyKind(kind)
	s.Active = active != 0
	return &s, nil
}

var _ StrategyRepository = (*SQLiteStrategyRepository)(nil)
