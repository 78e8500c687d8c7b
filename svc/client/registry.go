package client

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/fintrack/pkg/cache"
	"github.com/dmitrymomot/fintrack/pkg/logger"
)

var ErrEmptyClientID = errors.New("client id is required")

const acquireAttempts = 3

// Registry keeps one Runtime per client id, bounded by Config.MaxRuntimes.
// Evicted runtimes are closed as soon as no request holds them; their
// persisted session survives in the session store and is reloaded when the
// client comes back.
type Registry struct {
	ctx      context.Context
	cfg      Config
	deps     Deps
	runtimes *cache.LRUCache[string, *Runtime]
	logger   *slog.Logger
}

// NewRegistry creates runtimes bound to ctx: cancelling it stops them all.
func NewRegistry(ctx context.Context, cfg Config, deps Deps) *Registry {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := &Registry{
		ctx:      ctx,
		cfg:      cfg,
		deps:     deps,
		runtimes: cache.NewLRUCache[string, *Runtime](max(cfg.MaxRuntimes, 1)),
		logger:   log.With(logger.Component("client.registry")),
	}
	r.runtimes.SetEvictCallback(func(id string, rt *Runtime) {
		rt.retire()
		if deps.Metrics != nil {
			deps.Metrics.RuntimeClosed()
		}
	})
	return r
}

// Get returns the runtime of id, creating and starting it on first use.
func (r *Registry) Get(id string) (*Runtime, error) {
	if id == "" {
		return nil, ErrEmptyClientID
	}

	rt, created, err := r.runtimes.GetOrCreate(id, func() (*Runtime, error) {
		return NewRuntime(id, r.cfg, r.deps)
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return rt, nil
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.RuntimeOpened()
	}
	if err := rt.Start(r.ctx); err != nil {
		r.runtimes.Remove(id)
		return nil, err
	}
	return rt, nil
}

// Acquire is Get for request handlers: the runtime stays open until
// release is called, even if it is evicted in the meantime. A runtime
// retired between lookup and acquisition is replaced by a fresh one.
func (r *Registry) Acquire(id string) (rt *Runtime, release func(), err error) {
	for range acquireAttempts {
		rt, err = r.Get(id)
		if err != nil {
			return nil, nil, err
		}
		if rt.acquire() {
			return rt, rt.release, nil
		}
		r.removeIfSame(id, rt)
	}
	return nil, nil, ErrRuntimeClosed
}

func (r *Registry) removeIfSame(id string, rt *Runtime) {
	if cur, ok := r.runtimes.Get(id); ok && cur == rt {
		r.runtimes.Remove(id)
	}
}

// Lookup returns the runtime of id without creating one.
func (r *Registry) Lookup(id string) (*Runtime, bool) {
	return r.runtimes.Get(id)
}

// Remove closes the runtime of id, if any.
func (r *Registry) Remove(id string) {
	r.runtimes.Remove(id)
}

func (r *Registry) Len() int {
	return r.runtimes.Len()
}

// Close closes every runtime.
func (r *Registry) Close() error {
	r.runtimes.Clear()
	return nil
}
