// Package cache holds Redis-backed stores used by the sign-in flows.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OAuthState is the short-lived payload bound to one OAuth round trip.
type OAuthState struct {
	Provider    string    `json:"provider"`
	RedirectURI string    `json:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at"`
}

// StateStore persists OAuth state between the start and callback legs.
type StateStore interface {
	SaveState(ctx context.Context, key string, data OAuthState, ttl time.Duration) error
	GetState(ctx context.Context, key string) (*OAuthState, error)
	DeleteState(ctx context.Context, key string) error
}

// RedisStateStore implements StateStore backed by Redis.
type RedisStateStore struct {
	client redis.UniversalClient
}

var _ StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore constructs a Redis-backed state store.
func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{client: client}
}

// SaveState stores the encoded OAuth state payload with TTL.
func (s *RedisStateStore) SaveState(ctx context.Context, key string, data OAuthState, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, "oauth:state:"+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// GetState loads and decodes the state payload. A missing key returns
// (nil, nil).
func (s *RedisStateStore) GetState(ctx context.Context, key string) (*OAuthState, error) {
	bytes, err := s.client.Get(ctx, "oauth:state:"+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	var state OAuthState
	if err := json.Unmarshal(bytes, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// DeleteState removes the persisted state key.
func (s *RedisStateStore) DeleteState(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, "oauth:state:"+key).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}
