package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/fintrack/pkg/redis"
)

// SessionStore persists the session of one client between process
// restarts, keyed by client id.
type SessionStore interface {
	// Load returns ErrSessionNotFound when nothing is stored under key.
	Load(ctx context.Context, key string) (*Session, error)
	Save(ctx context.Context, key string, s *Session) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is a SessionStore for tests and single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, s *Session) error {
	if s == nil {
		return ErrNoSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = *s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// RedisStore keeps sessions in Redis for ttl after the last save.
type RedisStore struct {
	store *redis.JSONStore[Session]
	ttl   time.Duration
}

func NewRedisStore(client goredis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		store: redis.NewJSONStore[Session](client, prefix),
		ttl:   ttl,
	}
}

func (r *RedisStore) Load(ctx context.Context, key string) (*Session, error) {
	s, err := r.store.Get(ctx, key)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

func (r *RedisStore) Save(ctx context.Context, key string, s *Session) error {
	if s == nil {
		return ErrNoSession
	}
	return r.store.Set(ctx, key, s, r.ttl)
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.store.Delete(ctx, key)
}
