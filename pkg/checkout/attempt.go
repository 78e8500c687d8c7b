package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/fintrack/pkg/redis"
)

// Attempt marks a checkout the client left for. It lives in session-scoped
// storage only.
type Attempt struct {
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at"`
}

// AttemptStore keeps at most one Attempt per key.
type AttemptStore interface {
	// Load returns ErrNoAttempt when nothing is stored under key.
	Load(ctx context.Context, key string) (*Attempt, error)
	Save(ctx context.Context, key string, a Attempt, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryAttemptStore ignores ttl; attempts end with the client runtime.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]Attempt
}

// NewMemoryAttemptStore creates an empty store.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{attempts: make(map[string]Attempt)}
}

func (m *MemoryAttemptStore) Load(_ context.Context, key string) (*Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[key]
	if !ok {
		return nil, ErrNoAttempt
	}
	return &a, nil
}

func (m *MemoryAttemptStore) Save(_ context.Context, key string, a Attempt, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[key] = a
	return nil
}

func (m *MemoryAttemptStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, key)
	return nil
}

// RedisAttemptStore keeps attempts in Redis so a reload served by another
// instance still detects the return from checkout.
type RedisAttemptStore struct {
	store *redis.JSONStore[Attempt]
}

// NewRedisAttemptStore stores attempts as JSON under prefix+key.
func NewRedisAttemptStore(client goredis.UniversalClient, prefix string) *RedisAttemptStore {
	return &RedisAttemptStore{store: redis.NewJSONStore[Attempt](client, prefix)}
}

func (r *RedisAttemptStore) Load(ctx context.Context, key string) (*Attempt, error) {
	a, err := r.store.Get(ctx, key)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return nil, ErrNoAttempt
	}
	return a, err
}

func (r *RedisAttemptStore) Save(ctx context.Context, key string, a Attempt, ttl time.Duration) error {
	return r.store.Set(ctx, key, &a, ttl)
}

func (r *RedisAttemptStore) Delete(ctx context.Context, key string) error {
	return r.store.Delete(ctx, key)
}
