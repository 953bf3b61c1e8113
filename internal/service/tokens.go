package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"repricer-api/internal/cache"
	"repricer-api/internal/config"
	"repricer-api/internal/metrics"
	"repricer-api/internal/model"
	"repricer-api/internal/vault"
	"repricer-api/pkg/apierror"
	"repricer-api/pkg/uid"
)

// TokenRevoker invalidates a refresh token at the authorization server.
// Satisfied by the marketplace client.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, refreshToken string) error
}

// TokenManager owns the marketplace OAuth lifecycle: developer credential
// storage, the PKCE authorization flow, access token caching and refresh, and
// disconnect. It is the only component that sees plaintext secrets, via the
// vault.
type TokenManager struct {
	vault   *vault.Vault
	states  cache.StateStore
	revoker TokenRevoker
	logger  *slog.Logger

	authURL     string
	tokenURL    string
	redirectURL string
	scopes      []string

	stateTTL      time.Duration
	refreshMargin time.Duration
}

// NewTokenManager constructs the token lifecycle manager.
func NewTokenManager(v *vault.Vault, states cache.StateStore, mc config.MarketplaceConfig, sc config.SchedulerConfig, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		vault:         v,
		states:        states,
		logger:        logger,
		authURL:       mc.AuthURL,
		tokenURL:      mc.TokenURL,
		redirectURL:   mc.RedirectURL,
		scopes:        splitScopes(mc.Scopes),
		stateTTL:      sc.StateTTL,
		refreshMargin: sc.RefreshMargin,
	}
}

// SetRevoker wires the revocation endpoint client. Set after construction
// because the marketplace client itself depends on this manager for tokens.
func (m *TokenManager) SetRevoker(r TokenRevoker) {
	m.revoker = r
}

// authState is the payload parked in the state store between the redirect to
// the marketplace and the callback.
type authState struct {
	State    string `json:"state"`
	UserID   string `json:"user_id"`
	Verifier string `json:"verifier"`
}

// oauthConfig builds the per-user OAuth client configuration. Each user brings
// their own marketplace application credentials.
func (m *TokenManager) oauthConfig(cred *model.Credential) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cred.AppID,
		ClientSecret: cred.ClientSecret,
		RedirectURL:  m.redirectURL,
		Scopes:       m.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.authURL,
			TokenURL: m.tokenURL,
		},
	}
}

// SetDeveloperCredentials stores a user's marketplace application credentials.
// Replacing credentials drops any tokens obtained under the old application,
// so the user returns to disconnected until they re-authorize.
func (m *TokenManager) SetDeveloperCredentials(ctx context.Context, userID, appID, clientSecret, devID string) error {
	if appID == "" || clientSecret == "" {
		return apierror.Validation("app_id and client_secret are required")
	}

	return m.vault.Put(ctx, &model.Credential{
		UserID:       userID,
		AppID:        appID,
		ClientSecret: clientSecret,
		DevID:        devID,
		Status:       model.ConnDisconnected,
		UpdatedAt:    time.Now().UTC(),
	})
}

// BeginAuthorization starts the PKCE flow and returns the marketplace URL the
// user must visit. The state token and verifier are parked in the state store
// until the callback arrives.
func (m *TokenManager) BeginAuthorization(ctx context.Context, userID string) (string, error) {
	cred, err := m.vault.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, vault.ErrNoCredentials) {
			return "", apierror.Validation("store developer credentials before connecting")
		}
		return "", err
	}

	state := uid.New()
	verifier := oauth2.GenerateVerifier()

	payload, err := json.Marshal(authState{State: state, UserID: userID, Verifier: verifier})
	if err != nil {
		return "", fmt.Errorf("marshal auth state: %w", err)
	}
	if err := m.states.Put(ctx, state, payload, m.stateTTL); err != nil {
		return "", fmt.Errorf("store auth state: %w", err)
	}

	url := m.oauthConfig(cred).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)
	return url, nil
}

// HandleCallback consumes the single-use state, exchanges the authorization
// code, and stores the resulting tokens. Returns the user the grant belongs to.
func (m *TokenManager) HandleCallback(ctx context.Context, state, code string) (string, error) {
	if state == "" || code == "" {
		return "", apierror.Validation("state and code are required")
	}

	payload, err := m.states.Take(ctx, state)
	if err != nil {
		if errors.Is(err, cache.ErrStateNotFound) {
			return "", apierror.Validation("unknown or already used authorization state")
		}
		return "", err
	}

	var st authState
	if err := json.Unmarshal(payload, &st); err != nil {
		return "", fmt.Errorf("unmarshal auth state: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(st.State), []byte(state)) != 1 {
		return "", apierror.Validation("authorization state mismatch")
	}

	cred, err := m.vault.Get(ctx, st.UserID)
	if err != nil {
		return "", err
	}

	tok, err := m.oauthConfig(cred).Exchange(ctx, code, oauth2.VerifierOption(st.Verifier))
	if err != nil {
		m.logger.Warn("authorization code exchange failed", "user_id", st.UserID, "error", err)
		return "", apierror.Validation("authorization code exchange failed")
	}

	cred.RefreshToken = tok.RefreshToken
	cred.AccessToken = tok.AccessToken
	cred.AccessTokenExpiry = tok.Expiry
	cred.Status = model.ConnConnected
	cred.UpdatedAt = time.Now().UTC()
	if err := m.vault.Put(ctx, cred); err != nil {
		return "", err
	}

	m.logger.Info("marketplace connected", "user_id", st.UserID)
	return st.UserID, nil
}

// Token returns a valid access token for userID, refreshing when the cached
// token is inside the refresh margin of its expiry.
func (m *TokenManager) Token(ctx context.Context, userID string) (string, error) {
	cred, err := m.loadConnected(ctx, userID)
	if err != nil {
		return "", err
	}

	if cred.AccessToken != "" && time.Until(cred.AccessTokenExpiry) > m.refreshMargin {
		return cred.AccessToken, nil
	}
	return m.refresh(ctx, cred)
}

// ForceRefresh discards the cached access token and obtains a fresh one.
// Used when the marketplace rejected a token that looked valid locally.
func (m *TokenManager) ForceRefresh(ctx context.Context, userID string) (string, error) {
	cred, err := m.loadConnected(ctx, userID)
	if err != nil {
		return "", err
	}
	return m.refresh(ctx, cred)
}

func (m *TokenManager) loadConnected(ctx context.Context, userID string) (*model.Credential, error) {
	cred, err := m.vault.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, vault.ErrNoCredentials) {
			return nil, apierror.AuthExpired("marketplace is not connected")
		}
		return nil, err
	}
	if cred.Status != model.ConnConnected || cred.RefreshToken == "" {
		return nil, apierror.AuthExpired("marketplace connection is not active")
	}
	return cred, nil
}

// refresh redeems the refresh token for a new access token. A rejected
// refresh token moves the connection to expired; it stays there until the
// user re-authorizes.
func (m *TokenManager) refresh(ctx context.Context, cred *model.Credential) (string, error) {
	src := m.oauthConfig(cred).TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
			metrics.TokenRefreshTotal.WithLabelValues("expired").Inc()
			m.logger.Warn("refresh token rejected", "user_id", cred.UserID, "status", rerr.Response.StatusCode)
			if serr := m.vault.SetStatus(ctx, cred.UserID, model.ConnExpired); serr != nil {
				m.logger.Error("failed to mark connection expired", "user_id", cred.UserID, "error", serr)
			}
			return "", apierror.AuthExpired("marketplace authorization expired, reconnect required")
		}
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	cred.AccessToken = tok.AccessToken
	cred.AccessTokenExpiry = tok.Expiry
	// Some authorization servers rotate the refresh token on every use.
	if tok.RefreshToken != "" && tok.RefreshToken != cred.RefreshToken {
		cred.RefreshToken = tok.RefreshToken
	}
	cred.UpdatedAt = time.Now().UTC()
	if err := m.vault.Put(ctx, cred); err != nil {
		return "", err
	}

	metrics.TokenRefreshTotal.WithLabelValues("ok").Inc()
	return tok.AccessToken, nil
}

// Disconnect revokes the refresh token (best effort) and clears stored
// tokens. Developer credentials are kept so the user can reconnect without
// re-entering them.
func (m *TokenManager) Disconnect(ctx context.Context, userID string) error {
	cred, err := m.vault.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, vault.ErrNoCredentials) {
			return nil
		}
		return err
	}

	if m.revoker != nil && cred.RefreshToken != "" {
		if err := m.revoker.RevokeToken(ctx, cred.RefreshToken); err != nil {
			m.logger.Warn("token revocation failed", "user_id", userID, "error", err)
		}
	}

	cred.RefreshToken = ""
	cred.AccessToken = ""
	cred.AccessTokenExpiry = time.Time{}
	cred.Status = model.ConnDisconnected
	cred.UpdatedAt = time.Now().UTC()
	return m.vault.Put(ctx, cred)
}

// Status returns the public connection projection for userID.
func (m *TokenManager) Status(ctx context.Context, userID string) (*model.ConnectionInfo, error) {
	return m.vault.Status(ctx, userID)
}

func splitScopes(s string) []string {
	return strings.Fields(s)
}
