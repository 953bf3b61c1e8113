package cache

import (
	"context"
	"time"
)

// StateStore holds short-lived, single-use OAuth authorization state: the
// opaque state token and its PKCE verifier, pending the callback. The
// abstraction allows swapping between a memory store (development, single
// instance) and Redis (production, multiple instances) without changing the
// token lifecycle manager.
type StateStore interface {
	// Put stores a value under key for at most ttl.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Take retrieves and deletes a value atomically. A state token can be
	// consumed exactly once; a second Take returns ErrStateNotFound.
	Take(ctx context.Context, key string) ([]byte, error)
}

// StoreError is a sentinel error type for state store failures.
type StoreError string

func (e StoreError) Error() string { return string(e) }

const (
	// ErrStateNotFound indicates the key was never stored, expired, or was
	// already consumed.
	ErrStateNotFound StoreError = "state not found"
)
