package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"repricer-api/pkg/apierror"
)

// UserIDKey is the context key for the authenticated user id.
const UserIDKey contextKey = "user_id"

// AuthConfig holds configuration for the auth middleware. APIKeys is the
// parsed API_KEYS setting: comma-separated user:key pairs, each key
// authenticating exactly one user.
type AuthConfig struct {
	APIKeys map[string]string // key -> user id
}

// ParseAPIKeys parses the comma-separated "user:key" list from configuration.
func ParseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		user, key, ok := strings.Cut(pair, ":")
		if !ok || user == "" || key == "" {
			continue
		}
		keys[key] = user
	}
	return keys
}

// publicPaths never require authentication. The OAuth callback is hit by the
// user's browser redirect, which carries no API key.
var publicPaths = map[string]bool{
	"/api/v1/health":               true,
	"/api/v1/ready":                true,
	"/api/status":                  true,
	"/metrics":                     true,
	"/api/v1/marketplace/callback": true,
}

// NewAuthMiddleware creates an authentication middleware with injected
// dependencies. NO GLOBAL STATE - keys are passed via closure.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if apiKey == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-API-Key header."))
				return
			}

			userID := matchKey(apiKey, cfg.APIKeys)
			if userID == "" {
				writeError(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// matchKey resolves an API key to its user with constant-time comparison.
func matchKey(key string, keys map[string]string) string {
	for valid, user := range keys {
		if len(valid) == len(key) && subtle.ConstantTimeCompare([]byte(valid), []byte(key)) == 1 {
			return user
		}
	}
	return ""
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetUserID retrieves the authenticated user id from request context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}
