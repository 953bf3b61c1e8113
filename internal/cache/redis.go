package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// stateKeyPrefix namespaces OAuth state keys in Redis.
const stateKeyPrefix = "repricer:oauth_state:"

// RedisStateStore is a Redis-backed implementation of StateStore. It is the
// production choice when multiple API instances may serve the OAuth callback.
type RedisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore creates a state store on an existing Redis client.
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

// Put stores a value under key for at most ttl.
func (s *RedisStateStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, stateKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store state: %w", err)
	}
	return nil
}

// Take retrieves and deletes a value atomically via GETDEL, guaranteeing a
// state token is consumed exactly once even across instances.
func (s *RedisStateStore) Take(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.GetDel(ctx, stateKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take state: %w", err)
	}
	return value, nil
}

var _ StateStore = (*RedisStateStore)(nil)
