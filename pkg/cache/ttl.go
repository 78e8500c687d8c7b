package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TTLValue caches the result of a loader for a fixed duration. Concurrent
// callers that miss share a single load.
type TTLValue[V any] struct {
	ttl   time.Duration
	clock clockwork.Clock
	load  func(ctx context.Context) (V, error)

	mu      sync.Mutex
	value   V
	expires time.Time
	loaded  bool
	wait    chan struct{}
	lastErr error
}

// NewTTLValue returns a cache around load. A nil clock means the real one.
func NewTTLValue[V any](ttl time.Duration, clock clockwork.Clock, load func(ctx context.Context) (V, error)) *TTLValue[V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TTLValue[V]{ttl: ttl, clock: clock, load: load}
}

// Get returns the cached value while fresh and loads it otherwise. Failed
// loads are not cached.
func (t *TTLValue[V]) Get(ctx context.Context) (V, error) {
	for {
		t.mu.Lock()
		if t.loaded && t.clock.Now().Before(t.expires) {
			v := t.value
			t.mu.Unlock()
			return v, nil
		}
		if t.wait != nil {
			wait := t.wait
			t.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				var zero V
				return zero, ctx.Err()
			}

			t.mu.Lock()
			err := t.lastErr
			t.mu.Unlock()
			if err != nil {
				var zero V
				return zero, err
			}
			continue
		}

		wait := make(chan struct{})
		t.wait = wait
		t.mu.Unlock()

		v, err := t.load(ctx)

		t.mu.Lock()
		t.lastErr = err
		if err == nil {
			t.value = v
			t.loaded = true
			t.expires = t.clock.Now().Add(t.ttl)
		}
		t.wait = nil
		close(wait)
		t.mu.Unlock()

		return v, err
	}
}

// Invalidate forces the next Get to load.
func (t *TTLValue[V]) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loaded = false
}
