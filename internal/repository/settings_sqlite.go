package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"repricer-api/internal/model"
)

// SQLiteSettingsRepository implements SettingsRepository on SQLite.
type SQLiteSettingsRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteSettingsRepository creates a settings repository on an open handle.
func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

// Get returns settings for userID; absent users get zero-value defaults so
// the vacation gate is off by default.
func (r *SQLiteSettingsRepository) Get(ctx context.Context, userID string) (*model.UserSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		s          model.UserSettings
		vacation   int
		reconciled sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, vacation_mode, last_reconciled_at, updated_at
		FROM user_settings WHERE user_id = ?`, userID).Scan(
		&s.UserID, &vacation, &reconciled, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return &model.UserSettings{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	s.VacationMode = vacation != 0
	if reconciled.Valid {
		t := reconciled.Time
		s.LastReconciled = &t
	}
	return &s, nil
}

// SetVacation flips the per-user vacation gate. Listing-level configuration
// is untouched so the pause is reversible.
func (r *SQLiteSettingsRepository) SetVacation(ctx context.Context, userID string, vacation bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, vacation_mode, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			vacation_mode = excluded.vacation_mode,
			updated_at = excluded.updated_at`,
		userID, boolToInt(vacation), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set vacation mode: %w", err)
	}
	return nil
}

// SetLastReconciled stamps the freshness marker consulted before triggering
// another reconciliation for the user.
func (r *SQLiteSettingsRepository) SetLastReconciled(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, last_reconciled_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_reconciled_at = excluded.last_reconciled_at,
			updated_at = excluded.updated_at`,
		userID, at, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set last reconciled: %w", err)
	}
	return nil
}

var _ SettingsRepository = (*SQLiteSettingsRepository)(nil)
