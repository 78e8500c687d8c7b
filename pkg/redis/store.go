package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSONStore keeps values of type T as JSON documents under a common key
// prefix.
type JSONStore[T any] struct {
	db     redis.UniversalClient
	prefix string
}

// NewJSONStore returns a store writing keys as prefix+key.
func NewJSONStore[T any](db redis.UniversalClient, prefix string) *JSONStore[T] {
	return &JSONStore[T]{db: db, prefix: prefix}
}

// Get returns ErrKeyNotFound when the key is absent or expired.
func (s *JSONStore[T]) Get(ctx context.Context, key string) (*T, error) {
	raw, err := s.db.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Join(ErrDecode, err)
	}
	return &v, nil
}

// Set stores v. A ttl of zero keeps the key until it is deleted.
func (s *JSONStore[T]) Set(ctx context.Context, key string, v *T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Join(ErrEncode, err)
	}
	return s.db.Set(ctx, s.prefix+key, raw, ttl).Err()
}

// Delete is a no-op for missing keys.
func (s *JSONStore[T]) Delete(ctx context.Context, key string) error {
	return s.db.Del(ctx, s.prefix+key).Err()
}
