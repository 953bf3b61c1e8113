// Package marketplace is the HTTP client for the marketplace seller API and
// its product catalog. All prices on the wire are integer cents.
package marketplace

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// TokenSource supplies a valid access token for a user. ForceRefresh is used
// after the marketplace rejects a token that looked valid locally.
type TokenSource interface {
	Token(ctx context.Context, userID string) (string, error)
	ForceRefresh(ctx context.Context, userID string) (string, error)
}

// Client provides access to the marketplace seller REST API.
type Client struct {
	baseURL    string
	revokeURL  string
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	// Outbound requests are spaced at least minInterval apart to stay under
	// the marketplace rate limit.
	minInterval time.Duration
	paceMu      sync.Mutex
	lastRequest time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new seller API client.
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit spaces outbound requests to at most one per interval.
func WithRateLimit(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.minInterval = interval
	}
}

// WithRevokeURL sets the token revocation endpoint.
func WithRevokeURL(u string) ClientOption {
	return func(c *Client) {
		c.revokeURL = u
	}
}

// pace blocks until the rate limit allows another request.
func (c *Client) pace(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}

	c.paceMu.Lock()
	wait := c.minInterval - time.Since(c.lastRequest)
	if wait <= 0 {
		c.lastRequest = time.Now()
		c.paceMu.Unlock()
		return nil
	}
	c.lastRequest = time.Now().Add(wait)
	c.paceMu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
