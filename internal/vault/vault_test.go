package vault

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"repricer-api/internal/model"
	"repricer-api/internal/repository"
)

func testVault(t *testing.T) (*Vault, repository.CredentialRepository) {
	t.Helper()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := repository.NewSQLiteCredentialRepository(db)
	v, err := New(repo, "test-master-key")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v, repo
}

func TestVaultRoundTrip(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	expiry := time.Now().UTC().Truncate(time.Second).Add(2 * time.Hour)
	in := &model.Credential{
		UserID:            "u1",
		AppID:             "app-123",
		ClientSecret:      "super-secret",
		DevID:             "dev-456",
		RefreshToken:      "refresh-token-value",
		AccessToken:       "access-token-value",
		AccessTokenExpiry: expiry,
		MarketplaceUserID: "seller-99",
		Status:            model.ConnConnected,
		UpdatedAt:         time.Now().UTC().Truncate(time.Second),
	}
	if err := v.Put(ctx, in); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := v.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ClientSecret != in.ClientSecret || got.RefreshToken != in.RefreshToken || got.AccessToken != in.AccessToken {
		t.Errorf("decrypted secrets do not match input")
	}
	if !got.AccessTokenExpiry.Equal(expiry) {
		t.Errorf("expiry = %v, want %v", got.AccessTokenExpiry, expiry)
	}
	if got.Status != model.ConnConnected {
		t.Errorf("status = %q, want connected", got.Status)
	}
}

func TestVaultStoresNoPlaintext(t *testing.T) {
	v, repo := testVault(t)
	ctx := context.Background()

	if err := v.Put(ctx, &model.Credential{
		UserID:       "u1",
		AppID:        "app-123",
		ClientSecret: "super-secret",
		RefreshToken: "refresh-token-value",
		AccessToken:  "access-token-value",
		Status:       model.ConnConnected,
		UpdatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	for name, blob := range map[string][]byte{
		"secret":        rec.EncryptedSecret,
		"refresh token": rec.EncryptedRefreshTok,
		"access token":  rec.EncryptedAccessTok,
	} {
		if bytes.Contains(blob, []byte("secret")) || bytes.Contains(blob, []byte("token-value")) {
			t.Errorf("%s blob contains plaintext", name)
		}
		if len(blob) == 0 {
			t.Errorf("%s blob is empty", name)
		}
	}
}

func TestVaultEmptyTokensStayEmpty(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	// Developer credentials arrive before any OAuth exchange has happened.
	if err := v.Put(ctx, &model.Credential{
		UserID:       "u1",
		AppID:        "app-123",
		ClientSecret: "super-secret",
		Status:       model.ConnDisconnected,
		UpdatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := v.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RefreshToken != "" || got.AccessToken != "" {
		t.Errorf("absent tokens round-tripped as %q/%q", got.RefreshToken, got.AccessToken)
	}
}

func TestVaultRotation(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	if err := v.Put(ctx, &model.Credential{
		UserID:       "u1",
		ClientSecret: "super-secret",
		RefreshToken: "old-refresh",
		Status:       model.ConnConnected,
		UpdatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := v.RotateRefreshToken(ctx, "u1", "new-refresh"); err != nil {
		t.Fatalf("rotate refresh: %v", err)
	}
	expiry := time.Now().UTC().Truncate(time.Second).Add(time.Hour)
	if err := v.RotateAccessToken(ctx, "u1", "new-access", expiry); err != nil {
		t.Fatalf("rotate access: %v", err)
	}

	got, err := v.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RefreshToken != "new-refresh" || got.AccessToken != "new-access" {
		t.Errorf("rotation not persisted: %q/%q", got.RefreshToken, got.AccessToken)
	}
	if got.ClientSecret != "super-secret" {
		t.Errorf("rotation clobbered client secret")
	}
}

func TestVaultStatusProjection(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	info, err := v.Status(ctx, "nobody")
	if err != nil {
		t.Fatalf("status absent: %v", err)
	}
	if info.Status != model.ConnDisconnected {
		t.Errorf("absent user status = %q, want disconnected", info.Status)
	}

	if err := v.Put(ctx, &model.Credential{
		UserID:            "u1",
		AppID:             "app-123",
		ClientSecret:      "super-secret",
		MarketplaceUserID: "seller-99",
		Status:            model.ConnConnected,
		UpdatedAt:         time.Now().UTC(),
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	info, err = v.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if info.Status != model.ConnConnected || info.AppID != "app-123" || info.MarketplaceUserID != "seller-99" {
		t.Errorf("projection = %+v", info)
	}

	if _, err := v.Get(ctx, "nobody"); err != ErrNoCredentials {
		t.Errorf("Get absent = %v, want ErrNoCredentials", err)
	}
}

func TestVaultWrongKeyFails(t *testing.T) {
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := repository.NewSQLiteCredentialRepository(db)

	v1, err := New(repo, "key-one")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	if err := v1.Put(context.Background(), &model.Credential{
		UserID:       "u1",
		ClientSecret: "super-secret",
		Status:       model.ConnConnected,
		UpdatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	v2, err := New(repo, "key-two")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	if _, err := v2.Get(context.Background(), "u1"); err == nil {
		t.Error("decrypt with wrong key succeeded")
	}
}
