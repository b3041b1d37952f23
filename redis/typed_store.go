package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TypedStore stores JSON-encoded values of type V under a key namespace.
type TypedStore[V any] struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewTypedStore creates a store writing keys "<client prefix>:<name>:<key>"
// that expire after ttl (0 keeps them forever).
func NewTypedStore[V any](client *Client, name string, ttl time.Duration) *TypedStore[V] {
	return &TypedStore[V]{client: client, prefix: client.Key(name), ttl: ttl}
}

func (s *TypedStore[V]) key(k string) string { return s.prefix + ":" + k }

// Load returns (nil, nil) when the key does not exist.
func (s *TypedStore[V]) Load(ctx context.Context, key string) (*V, error) {
	raw, err := s.client.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("typed store load %q: %w", key, err)
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("typed store unmarshal %q: %w", key, err)
	}
	return &v, nil
}

// Save stores v, resetting the TTL.
func (s *TypedStore[V]) Save(ctx context.Context, key string, v *V) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("typed store marshal %q: %w", key, err)
	}
	if err := s.client.rdb.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("typed store save %q: %w", key, err)
	}
	return nil
}

// Delete removes the key.
func (s *TypedStore[V]) Delete(ctx context.Context, key string) error {
	if err := s.client.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("typed store delete %q: %w", key, err)
	}
	return nil
}
