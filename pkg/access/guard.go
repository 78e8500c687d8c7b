package access

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/subscription"
)

// SessionSource is the read side of the session store.
type SessionSource interface {
	Session() *auth.Session
	Loading() bool
}

// StatusSource is the read side of the subscription cache. The guard never
// triggers a check.
type StatusSource interface {
	Status() subscription.Status
}

// Observer is notified of every decision.
type Observer interface {
	AccessDecision(state string)
}

// Guard evaluates access decisions for one client.
type Guard struct {
	cfg      Config
	routes   Routes
	sessions SessionSource
	statuses StatusSource
	clock    clockwork.Clock
	observer Observer
	logger   *slog.Logger

	mu        sync.RWMutex
	loadStart time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(g *Guard) { g.cfg = cfg }
}

// WithRoutes sets the route table the guard classifies paths with.
func WithRoutes(r Routes) Option {
	return func(g *Guard) { g.routes = r }
}

// WithClock sets the clock used for the loading timeout and trial countdown.
// A nil clock keeps the real one.
func WithClock(c clockwork.Clock) Option {
	return func(g *Guard) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithObserver receives one call per decision.
func WithObserver(o Observer) Option {
	return func(g *Guard) { g.observer = o }
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGuard creates a guard whose loading timeout starts now.
func NewGuard(sessions SessionSource, statuses StatusSource, opts ...Option) *Guard {
	g := &Guard{
		cfg:      DefaultConfig(),
		routes:   DefaultRoutes(),
		sessions: sessions,
		statuses: statuses,
		clock:    clockwork.NewRealClock(),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(logger.Component("access"))
	g.loadStart = g.clock.Now()
	return g
}

// Routes returns the guard's route table.
func (g *Guard) Routes() Routes {
	return g.routes
}

// Reset restarts the loading timeout.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loadStart = g.clock.Now()
}

// Evaluate decides access to route. The clock is sampled once.
func (g *Guard) Evaluate(route string, v Variant) Decision {
	now := g.clock.Now()

	g.mu.RLock()
	elapsed := now.Sub(g.loadStart)
	g.mu.RUnlock()

	in := Input{
		Route:          route,
		Variant:        v,
		Routes:         g.routes,
		Loading:        g.sessions.Loading(),
		Elapsed:        elapsed,
		LoadingTimeout: g.cfg.LoadingTimeout,
		Status:         g.statuses.Status(),
		Now:            now,
	}
	if s := g.sessions.Session(); s != nil {
		id := s.Identity
		in.Identity = &id
	}

	d := Decide(in)
	if g.observer != nil {
		g.observer.AccessDecision(string(d.State))
	}
	g.logger.Debug("access decided",
		logger.Route(route),
		logger.Decision(string(d.State)),
		slog.String("variant", v.String()),
	)
	return d
}

// Watch calls fn with a fresh decision immediately, on every value received
// from changes, and every PollInterval. It returns when ctx is done or
// changes is closed.
func (g *Guard) Watch(ctx context.Context, route string, v Variant, changes <-chan struct{}, fn func(Decision)) error {
	ticker := g.clock.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	fn(g.Evaluate(route, v))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			fn(g.Evaluate(route, v))
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			fn(g.Evaluate(route, v))
		}
	}
}
