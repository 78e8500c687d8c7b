package checkout

import (
	"cmp"
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/functions"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/scheduler"
)

const refreshTimer = "checkout.refresh"

// Call outcomes reported to the Observer.
const (
	OpCheckout = "checkout"
	OpPortal   = "portal"
	OpCancel   = "cancel"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Functions are the payment endpoints of the backend.
type Functions interface {
	CreateCheckout(ctx context.Context, token string) (string, error)
	CustomerPortal(ctx context.Context, token string, cancel bool) (functions.PortalResponse, error)
}

// SessionSource exposes the current session, nil when signed out.
type SessionSource interface {
	Session() *auth.Session
}

// Refresher starts a subscription check in the background.
type Refresher interface {
	Refresh()
}

// Observer records the outcome of each checkout and portal call.
type Observer interface {
	CheckoutCall(op, outcome string)
}

// Target tells the client how to open a URL.
type Target string

const (
	TargetSameWindow Target = "same_window"
	TargetNewTab     Target = "new_tab"
)

// Navigation is a URL the client must open.
type Navigation struct {
	URL    string `json:"url"`
	Target Target `json:"target"`
}

// PortalResult is either a portal link or a cancellation confirmation.
type PortalResult struct {
	Navigation *Navigation `json:"navigation,omitempty"`
	Cancelled  bool        `json:"cancelled"`
	Message    string      `json:"message,omitempty"`
}

// Bridge runs the one-shot checkout and portal calls of one client.
// Failures are returned to the caller and never retried.
type Bridge struct {
	cfg       Config
	fns       Functions
	sessions  SessionSource
	attempts  AttemptStore
	key       string
	refresher Refresher
	sched     *scheduler.Scheduler
	observer  Observer
	logger    *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(b *Bridge) { b.cfg = cfg }
}

// WithAttemptStore stores this client's attempt under key.
func WithAttemptStore(s AttemptStore, key string) Option {
	return func(b *Bridge) {
		if s != nil {
			b.attempts = s
			b.key = key
		}
	}
}

// WithRefresher is told to recheck the subscription after a return from
// checkout or a cancellation.
func WithRefresher(r Refresher) Option {
	return func(b *Bridge) { b.refresher = r }
}

// WithScheduler sets the scheduler that runs the post-cancel refresh.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(b *Bridge) {
		if s != nil {
			b.sched = s
		}
	}
}

// WithObserver receives the outcome of every checkout and portal call.
func WithObserver(o Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBridge creates a bridge that keeps attempts in memory unless
// WithAttemptStore says otherwise.
func NewBridge(fns Functions, sessions SessionSource, opts ...Option) *Bridge {
	b := &Bridge{
		cfg:      DefaultConfig(),
		fns:      fns,
		sessions: sessions,
		attempts: NewMemoryAttemptStore(),
		key:      "checkout",
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.sched == nil {
		b.sched = scheduler.New(nil)
	}
	b.logger = b.logger.With(logger.Component("checkout"))
	return b
}

// StartCheckout creates a checkout session and returns the page the client
// must navigate to in the same window.
func (b *Bridge) StartCheckout(ctx context.Context) (Navigation, error) {
	s, err := b.session()
	if err != nil {
		return Navigation{}, err
	}

	url, err := b.fns.CreateCheckout(ctx, s.AccessToken)
	if err != nil {
		b.observe(OpCheckout, OutcomeError)
		b.logger.WarnContext(ctx, "checkout creation failed", logger.UserID(s.Identity.ID), logger.Error(err))
		return Navigation{}, errors.Join(ErrCheckoutFailed, err)
	}
	b.observe(OpCheckout, OutcomeOK)

	attempt := Attempt{Active: true, StartedAt: b.sched.Now()}
	if err := b.attempts.Save(ctx, b.key, attempt, b.cfg.AttemptTTL); err != nil {
		b.logger.WarnContext(ctx, "checkout attempt not recorded", logger.Error(err))
	}

	return Navigation{URL: url, Target: TargetSameWindow}, nil
}

// OpenBillingPortal returns the portal link to open in a new tab, or, when
// cancel is set and the backend cancels directly, the confirmation. A
// cancellation schedules a subscription refresh after PostCancelDelay.
func (b *Bridge) OpenBillingPortal(ctx context.Context, cancel bool) (PortalResult, error) {
	op := OpPortal
	if cancel {
		op = OpCancel
	}

	s, err := b.session()
	if err != nil {
		return PortalResult{}, err
	}

	resp, err := b.fns.CustomerPortal(ctx, s.AccessToken, cancel)
	if err == nil && resp.IsCancellation() && !resp.Success {
		err = errors.New(cmp.Or(resp.Message, "empty portal response"))
	}
	if err != nil {
		b.observe(op, OutcomeError)
		b.logger.WarnContext(ctx, "billing portal failed", logger.UserID(s.Identity.ID), logger.Error(err))
		return PortalResult{}, errors.Join(ErrPortalFailed, err)
	}
	b.observe(op, OutcomeOK)

	if !resp.IsCancellation() {
		return PortalResult{Navigation: &Navigation{URL: resp.URL, Target: TargetNewTab}}, nil
	}

	if b.refresher != nil {
		b.sched.Schedule(refreshTimer, b.cfg.PostCancelDelay, b.refresher.Refresh)
	}
	b.logger.InfoContext(ctx, "subscription cancelled", logger.UserID(s.Identity.ID))
	return PortalResult{Cancelled: true, Message: resp.Message}, nil
}

// ReturningFromCheckout reports an active attempt and clears it. A return
// triggers a subscription refresh.
func (b *Bridge) ReturningFromCheckout(ctx context.Context) (Attempt, bool) {
	a, err := b.attempts.Load(ctx, b.key)
	if err != nil {
		if !errors.Is(err, ErrNoAttempt) {
			b.logger.WarnContext(ctx, "checkout attempt lookup failed", logger.Error(err))
		}
		return Attempt{}, false
	}
	if err := b.attempts.Delete(ctx, b.key); err != nil {
		b.logger.WarnContext(ctx, "checkout attempt not cleared", logger.Error(err))
	}
	if !a.Active {
		return Attempt{}, false
	}

	if b.refresher != nil {
		b.refresher.Refresh()
	}
	return *a, true
}

// Reset drops the pending refresh and the stored attempt. It runs on
// sign-out.
func (b *Bridge) Reset() {
	b.sched.Cancel(refreshTimer)
	if err := b.attempts.Delete(context.Background(), b.key); err != nil {
		b.logger.Warn("checkout attempt not cleared", logger.Error(err))
	}
}

func (b *Bridge) session() (*auth.Session, error) {
	s := b.sessions.Session()
	if s.Expired(b.sched.Now()) {
		return nil, ErrNoSession
	}
	return s, nil
}

func (b *Bridge) observe(op, outcome string) {
	if b.observer != nil {
		b.observer.CheckoutCall(op, outcome)
	}
}
