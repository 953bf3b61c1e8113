// Package vault encrypts marketplace credentials at rest. Secrets cross the
// vault boundary in plaintext only toward the token lifecycle manager; every
// other caller gets the public ConnectionInfo projection.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	"repricer-api/internal/model"
	"repricer-api/internal/repository"
)

// ErrNoCredentials is returned when a user has no stored credentials.
var ErrNoCredentials = errors.New("vault: no credentials stored")

// Vault wraps a credential repository with AES-GCM encryption. The data key is
// derived from the master key with HKDF so rotating the master key only
// requires re-deriving, not re-implementing.
type Vault struct {
	repo repository.CredentialRepository
	aead cipher.AEAD
}

// New derives the data key from masterKey and constructs the vault.
func New(repo repository.CredentialRepository, masterKey string) (*Vault, error) {
	if masterKey == "" {
		return nil, errors.New("vault: master key is required")
	}

	kdf := hkdf.New(sha256.New, []byte(masterKey), nil, []byte("repricer-credential-vault-v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("vault: key derivation: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: gcm init: %w", err)
	}

	return &Vault{repo: repo, aead: aead}, nil
}

// Put encrypts and stores the full credential set for cred.UserID.
func (v *Vault) Put(ctx context.Context, cred *model.Credential) error {
	rec, err := v.seal(cred)
	if err != nil {
		return err
	}
	return v.repo.Upsert(ctx, rec)
}

// Get decrypts and returns the credential set for userID.
func (v *Vault) Get(ctx context.Context, userID string) (*model.Credential, error) {
	rec, err := v.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNoCredentials
	}
	return v.open(rec)
}

// RotateRefreshToken replaces the stored refresh token. Called after an OAuth
// exchange or when the marketplace issues a rotated token on refresh.
func (v *Vault) RotateRefreshToken(ctx context.Context, userID, refreshToken string) error {
	cred, err := v.Get(ctx, userID)
	if err != nil {
		return err
	}
	cred.RefreshToken = refreshToken
	cred.UpdatedAt = time.Now().UTC()
	return v.Put(ctx, cred)
}

// RotateAccessToken replaces the cached access token and its expiry.
func (v *Vault) RotateAccessToken(ctx context.Context, userID, accessToken string, expiry time.Time) error {
	cred, err := v.Get(ctx, userID)
	if err != nil {
		return err
	}
	cred.AccessToken = accessToken
	cred.AccessTokenExpiry = expiry
	cred.UpdatedAt = time.Now().UTC()
	return v.Put(ctx, cred)
}

// SetStatus transitions the connection state without touching secrets.
func (v *Vault) SetStatus(ctx context.Context, userID string, status model.ConnectionStatus) error {
	return v.repo.UpdateStatus(ctx, userID, status)
}

// Status returns the public projection for userID. Users with no record are
// reported as disconnected rather than an error.
func (v *Vault) Status(ctx context.Context, userID string) (*model.ConnectionInfo, error) {
	rec, err := v.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &model.ConnectionInfo{UserID: userID, Status: model.ConnDisconnected}, nil
	}
	return &model.ConnectionInfo{
		UserID:            rec.UserID,
		Status:            rec.Status,
		AppID:             rec.AppID,
		MarketplaceUserID: rec.MarketplaceUserID,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}

func (v *Vault) seal(cred *model.Credential) (*model.CredentialRecord, error) {
	secret, err := v.encrypt(cred.ClientSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := v.encrypt(cred.RefreshToken)
	if err != nil {
		return nil, err
	}
	access, err := v.encrypt(cred.AccessToken)
	if err != nil {
		return nil, err
	}
	return &model.CredentialRecord{
		UserID:              cred.UserID,
		AppID:               cred.AppID,
		EncryptedSecret:     secret,
		DevID:               cred.DevID,
		EncryptedRefreshTok: refresh,
		EncryptedAccessTok:  access,
		AccessTokenExpiry:   cred.AccessTokenExpiry,
		MarketplaceUserID:   cred.MarketplaceUserID,
		Status:              cred.Status,
		UpdatedAt:           cred.UpdatedAt,
	}, nil
}

func (v *Vault) open(rec *model.CredentialRecord) (*model.Credential, error) {
	secret, err := v.decrypt(rec.EncryptedSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := v.decrypt(rec.EncryptedRefreshTok)
	if err != nil {
		return nil, err
	}
	access, err := v.decrypt(rec.EncryptedAccessTok)
	if err != nil {
		return nil, err
	}
	return &model.Credential{
		UserID:            rec.UserID,
		AppID:             rec.AppID,
		ClientSecret:      secret,
		DevID:             rec.DevID,
		RefreshToken:      refresh,
		AccessToken:       access,
		AccessTokenExpiry: rec.AccessTokenExpiry,
		MarketplaceUserID: rec.MarketplaceUserID,
		Status:            rec.Status,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}

// encrypt produces nonce || ciphertext. Empty plaintext maps to an empty blob
// so absent tokens stay distinguishable from encrypted empty strings.
func (v *Vault) encrypt(plaintext string) ([]byte, error) {
	if plaintext == "" {
		return nil, nil
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("vault: nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (v *Vault) decrypt(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	if len(blob) < v.aead.NonceSize() {
		return "", errors.New("vault: ciphertext too short")
	}
	nonce, ciphertext := blob[:v.aead.NonceSize()], blob[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("vault: decrypt: %w", err)
	}
	return string(plaintext), nil
}
