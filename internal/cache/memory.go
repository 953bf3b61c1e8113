package cache

import (
	"context"
	"sync"
	"time"
)

// stateEntry represents a stored state value with expiration.
type stateEntry struct {
	value     []byte
	expiresAt time.Time
}

// isExpired checks if the entry has expired.
func (e *stateEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// MemoryStateStore is an in-memory implementation of StateStore.
// Use this for development/testing or single-instance deployments.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]*stateEntry

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// NewMemoryStateStore creates a new in-memory state store with automatic
// cleanup of expired entries.
func NewMemoryStateStore() *MemoryStateStore {
	s := &MemoryStateStore{
		entries:         make(map[string]*stateEntry),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go s.cleanup()

	return s
}

// Put stores a value under key for at most ttl.
func (s *MemoryStateStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s.entries[key] = &stateEntry{
		value:     valueCopy,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

// Take retrieves and deletes a value in one critical section.
func (s *MemoryStateStore) Take(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists || entry.isExpired() {
		return nil, ErrStateNotFound
	}
	delete(s.entries, key)

	return entry.value, nil
}

// Close stops the background cleanup goroutine.
func (s *MemoryStateStore) Close() error {
	close(s.stopCleanup)
	return nil
}

// cleanup periodically removes expired entries.
func (s *MemoryStateStore) cleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

// removeExpired removes all expired entries.
func (s *MemoryStateStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if entry.isExpired() {
			delete(s.entries, key)
		}
	}
}

var _ StateStore = (*MemoryStateStore)(nil)
