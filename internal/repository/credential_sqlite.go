package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"repricer-api/internal/model"
)

// SQLiteCredentialRepository implements CredentialRepository on SQLite. Rows
// hold only encrypted secrets; encryption and decryption happen in the vault.
type SQLiteCredentialRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteCredentialRepository creates a credential repository on an open handle.
func NewSQLiteCredentialRepository(db *sql.DB) *SQLiteCredentialRepository {
	return &SQLiteCredentialRepository{db: db}
}

// Get returns the record for userID, or nil, nil when absent.
func (r *SQLiteCredentialRepository) Get(ctx context.Context, userID string) (*model.CredentialRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		rec    model.CredentialRecord
		status string
		expiry sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, app_id, encrypted_secret, dev_id, encrypted_refresh_token,
		       encrypted_access_token, access_token_expiry, marketplace_user_id, status, updated_at
		FROM credentials WHERE user_id = ?`, userID).Scan(
		&rec.UserID, &rec.AppID, &rec.EncryptedSecret, &rec.DevID, &rec.EncryptedRefreshTok,
		&rec.EncryptedAccessTok, &expiry, &rec.MarketplaceUserID, &status, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	rec.Status = model.ConnectionStatus(status)
	if expiry.Valid {
		rec.AccessTokenExpiry = expiry.Time
	}
	return &rec, nil
}

// Upsert inserts or replaces the record for rec.UserID.
func (r *SQLiteCredentialRepository) Upsert(ctx context.Context, rec *model.CredentialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, app_id, encrypted_secret, dev_id, encrypted_refresh_token,
			encrypted_access_token, access_token_expiry, marketplace_user_id, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			app_id = excluded.app_id,
			encrypted_secret = excluded.encrypted_secret,
			dev_id = excluded.dev_id,
			encrypted_refresh_token = excluded.encrypted_refresh_token,
			encrypted_access_token = excluded.encrypted_access_token,
			access_token_expiry = excluded.access_token_expiry,
			marketplace_user_id = excluded.marketplace_user_id,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		rec.UserID, rec.AppID, rec.EncryptedSecret, rec.DevID, rec.EncryptedRefreshTok,
		rec.EncryptedAccessTok, nullableTime(rec.AccessTokenExpiry), rec.MarketplaceUserID,
		string(rec.Status), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert credentials: %w", err)
	}
	return nil
}

// UpdateStatus transitions the connection state without touching secrets.
func (r *SQLiteCredentialRepository) UpdateStatus(ctx context.Context, userID string, status model.ConnectionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET status = ?, updated_at = ? WHERE user_id = ?`,
		string(status), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
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

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ CredentialRepository = (*SQLiteCredentialRepository)(nil)
