package subscription

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/scheduler"
)

const retryTimer = "subscription.retry"

// Check outcomes reported to the Observer.
const (
	OutcomeSubscribed   = "subscribed"
	OutcomeUnsubscribed = "unsubscribed"
	OutcomeAdmin        = "admin"
	OutcomeFailed       = "failed"
	OutcomeTimeout      = "timeout"
)

// Checker asks the backend whether the bearer of token is entitled.
type Checker interface {
	CheckSubscription(ctx context.Context, token string) (Status, error)
}

// SessionSource exposes the current session; nil means signed out.
type SessionSource interface {
	Session() *auth.Session
}

// Observer receives one call per completed check.
type Observer interface {
	SubscriptionCheck(outcome string, d time.Duration)
}

// Cache holds the latest known Status of the current identity.
//
// Check is the only writer besides Reset. At most one remote check runs at a
// time; concurrent calls return immediately. Failures schedule a single
// retry each, up to Config.MaxConsecutiveFailures, after which the cache
// reports Stale until the next successful check.
type Cache struct {
	cfg      Config
	checker  Checker
	sessions SessionSource
	sched    *scheduler.Scheduler
	observer Observer
	logger   *slog.Logger

	inFlight atomic.Bool

	mu          sync.RWMutex
	gen         uint64
	status      Status
	failures    int
	stale       bool
	lastChecked time.Time
	listeners   []func(Status)
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) CacheOption {
	return func(c *Cache) { c.cfg = cfg }
}

// WithScheduler sets the scheduler that runs retry timers. Nil keeps the
// cache's own.
func WithScheduler(s *scheduler.Scheduler) CacheOption {
	return func(c *Cache) {
		if s != nil {
			c.sched = s
		}
	}
}

// WithObserver receives the outcome of every check.
func WithObserver(o Observer) CacheOption {
	return func(c *Cache) { c.observer = o }
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache creates an empty cache for the identity exposed by sessions.
func NewCache(checker Checker, sessions SessionSource, opts ...CacheOption) *Cache {
	c := &Cache{
		cfg:      DefaultConfig(),
		checker:  checker,
		sessions: sessions,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sched == nil {
		c.sched = scheduler.New(nil)
	}
	c.logger = c.logger.With(logger.Component("subscription"))
	return c
}

// Status returns the last stored status; the zero Status before any check.
func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Failures is the number of consecutive failed checks.
func (c *Cache) Failures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures
}

// Stale reports that automatic retries stopped after repeated failures.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// LastChecked is the time of the last successful remote check.
func (c *Cache) LastChecked() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastChecked
}

// InFlight reports whether a remote check is running.
func (c *Cache) InFlight() bool {
	return c.inFlight.Load()
}

// OnChange registers fn to run after every status change. fn must not
// block.
func (c *Cache) OnChange(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Check refreshes the status. It is a no-op while another check is in
// flight and when there is no live session.
func (c *Cache) Check(ctx context.Context) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return
	}
	retry := c.check(ctx)
	c.inFlight.Store(false)

	if retry {
		c.sched.Schedule(retryTimer, c.cfg.RetryDelay, func() {
			c.Check(context.Background())
		})
	}
}

// Refresh starts a check in the background.
func (c *Cache) Refresh() {
	go c.Check(context.Background())
}

// Reset clears the status, the failure counter and any pending retry.
// A check that was in flight when Reset ran does not store its result.
func (c *Cache) Reset() {
	c.sched.Cancel(retryTimer)

	c.mu.Lock()
	c.gen++
	c.status = Status{}
	c.failures = 0
	c.stale = false
	c.lastChecked = time.Time{}
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, Status{})
}

// check reports whether a retry should be scheduled.
func (c *Cache) check(ctx context.Context) bool {
	s := c.sessions.Session()
	if s == nil || s.Expired(c.sched.Now()) {
		return false
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	if s.Identity.IsAdministrative() {
		c.store(gen, AdminStatus(), false)
		c.observe(OutcomeAdmin, 0)
		return false
	}

	started := c.sched.Now()
	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	status, err := c.checker.CheckSubscription(cctx, s.AccessToken)
	timedOut := errors.Is(cctx.Err(), context.DeadlineExceeded)
	cancel()
	elapsed := c.sched.Now().Sub(started)

	if err != nil {
		if timedOut {
			err = errors.Join(ErrCheckTimeout, err)
			c.observe(OutcomeTimeout, elapsed)
		} else {
			err = errors.Join(ErrCheckFailed, err)
			c.observe(OutcomeFailed, elapsed)
		}
		return c.fail(ctx, gen, s, err)
	}

	c.store(gen, status, true)
	if status.Subscribed {
		c.observe(OutcomeSubscribed, elapsed)
	} else {
		c.observe(OutcomeUnsubscribed, elapsed)
	}
	return false
}

func (c *Cache) store(gen uint64, status Status, remote bool) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.failures = 0
	c.stale = false
	if remote {
		c.lastChecked = c.sched.Now()
	}
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, status)
}

func (c *Cache) fail(ctx context.Context, gen uint64, s *auth.Session, err error) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.failures++
	failures := c.failures
	if failures >= c.cfg.MaxConsecutiveFailures {
		c.stale = true
	}
	stale := c.stale
	c.mu.Unlock()

	log := c.logger.With(logger.UserID(s.Identity.ID), logger.RetryCount(failures), logger.Error(err))
	if stale {
		log.WarnContext(ctx, "subscription check keeps failing, keeping last known status")
		return false
	}
	log.InfoContext(ctx, "subscription check failed, retry scheduled", logger.Duration(c.cfg.RetryDelay))
	return true
}

func (c *Cache) observe(outcome string, d time.Duration) {
	if c.observer != nil {
		c.observer.SubscriptionCheck(outcome, d)
	}
}

func notify(listeners []func(Status), s Status) {
	for _, fn := range listeners {
		fn(s)
	}
}
