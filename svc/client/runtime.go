package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/fintrack/pkg/access"
	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/broadcast"
	"github.com/dmitrymomot/fintrack/pkg/checkout"
	"github.com/dmitrymomot/fintrack/pkg/connectivity"
	"github.com/dmitrymomot/fintrack/pkg/functions"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/metrics"
	"github.com/dmitrymomot/fintrack/pkg/pricing"
	"github.com/dmitrymomot/fintrack/pkg/profile"
	"github.com/dmitrymomot/fintrack/pkg/requestid"
	"github.com/dmitrymomot/fintrack/pkg/scheduler"
	"github.com/dmitrymomot/fintrack/pkg/session"
	"github.com/dmitrymomot/fintrack/pkg/subscription"
)

var (
	ErrRuntimeClosed    = errors.New("client runtime closed")
	ErrMissingFunctions = errors.New("functions client is required")
)

// Deps are the process-wide collaborators shared by every runtime.
type Deps struct {
	Functions *functions.Client
	Pricing   *pricing.Client
	Profiles  *profile.Resolver
	Sessions  auth.SessionStore
	Attempts  checkout.AttemptStore
	// Metrics is optional.
	Metrics *metrics.Collector
	// Clock defaults to the real clock.
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Runtime is the gating core of one client: its auth session, subscription
// cache, access guard, connectivity monitor and checkout bridge, sharing one
// scheduler.
type Runtime struct {
	ID string

	Auth         *auth.Client
	Store        *session.Manager
	Subscription *subscription.Cache
	Guard        *access.Guard
	Network      *connectivity.NetworkState
	Connectivity *connectivity.Monitor
	Checkout     *checkout.Bridge
	Pricing      *pricing.Client

	sched   *scheduler.Scheduler
	metrics *metrics.Collector
	changes *broadcast.MemoryBroadcaster[struct{}]
	logger  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	closed  bool
	retired bool
	users   int
	wg      sync.WaitGroup
}

// NewRuntime wires the components of client id. Nothing runs until Start.
func NewRuntime(id string, cfg Config, deps Deps) (*Runtime, error) {
	if deps.Functions == nil {
		return nil, ErrMissingFunctions
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.ClientID(id))

	r := &Runtime{
		ID:      id,
		Network: &connectivity.NetworkState{},
		Pricing: deps.Pricing,
		sched:   scheduler.New(deps.Clock),
		metrics: deps.Metrics,
		changes: broadcast.NewMemoryBroadcaster[struct{}](1, broadcast.WithLatestWins()),
		logger:  log,
	}
	r.Network.Set(true)

	timeout := cfg.Auth.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	authOpts := []auth.Option{
		auth.WithHTTPClient(&http.Client{Transport: requestid.Transport(nil), Timeout: timeout}),
		auth.WithScheduler(r.sched),
		auth.WithLogger(log),
	}
	if deps.Sessions != nil {
		authOpts = append(authOpts, auth.WithSessionStore(deps.Sessions, id))
	}
	ac, err := auth.NewClient(cfg.Auth, authOpts...)
	if err != nil {
		return nil, err
	}
	r.Auth = ac

	cacheOpts := []subscription.CacheOption{
		subscription.WithConfig(cfg.Subscription),
		subscription.WithScheduler(r.sched),
		subscription.WithLogger(log),
	}
	if r.metrics != nil {
		cacheOpts = append(cacheOpts, subscription.WithObserver(r.metrics))
	}
	r.Subscription = subscription.NewCache(deps.Functions, r, cacheOpts...)

	sessOpts := []session.Option{
		session.WithConfig(cfg.Session),
		session.WithRefresher(r.Subscription),
		session.WithScheduler(r.sched),
		session.WithLogger(log),
	}
	if deps.Profiles != nil {
		sessOpts = append(sessOpts, session.WithProfiles(deps.Profiles))
	}
	r.Store = session.New(ac, sessOpts...)

	guardOpts := []access.Option{
		access.WithConfig(cfg.Access),
		access.WithClock(r.sched.Clock()),
		access.WithLogger(log),
	}
	if r.metrics != nil {
		guardOpts = append(guardOpts, access.WithObserver(r.metrics))
	}
	r.Guard = access.NewGuard(r.Store, r.Subscription, guardOpts...)

	r.Connectivity = connectivity.NewMonitor(r.Network,
		connectivity.NewHTTPProbe(auth.HealthURL(cfg.Auth.URL), cfg.Auth.AnonKey, cfg.Connectivity.ProbeTimeout),
		connectivity.WithConfig(cfg.Connectivity),
		connectivity.WithLock(&connectivity.PointerLock{}),
		connectivity.WithScheduler(r.sched),
		connectivity.WithObserver(r),
		connectivity.WithLogger(log),
	)

	bridgeOpts := []checkout.Option{
		checkout.WithConfig(cfg.Checkout),
		checkout.WithRefresher(r.Subscription),
		checkout.WithScheduler(r.sched),
		checkout.WithLogger(log),
	}
	if deps.Attempts != nil {
		bridgeOpts = append(bridgeOpts, checkout.WithAttemptStore(deps.Attempts, id))
	}
	if r.metrics != nil {
		bridgeOpts = append(bridgeOpts, checkout.WithObserver(r.metrics))
	}
	r.Checkout = checkout.NewBridge(deps.Functions, r, bridgeOpts...)

	r.Store.OnTeardown(r.Subscription.Reset)
	r.Store.OnTeardown(r.Checkout.Reset)
	r.Store.OnTeardown(r.Guard.Reset)
	r.Subscription.OnChange(func(subscription.Status) { r.notify() })

	return r, nil
}

// Session implements the session source of the subscription cache and the
// checkout bridge.
func (r *Runtime) Session() *auth.Session {
	return r.Store.Session()
}

// Now is the runtime's clock reading.
func (r *Runtime) Now() time.Time {
	return r.sched.Now()
}

// ConnectivityTransition implements connectivity.Observer.
func (r *Runtime) ConnectivityTransition(online bool) {
	if r.metrics != nil {
		r.metrics.ConnectivityTransition(online)
	}
	r.notify()
}

// Start loads the persisted session and runs the first connectivity check
// in the background. The runtime keeps running after ctx's request ends;
// only cancellation of ctx or Close stops it.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRuntimeClosed
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	states := r.Store.Subscribe(ctx)
	if err := r.Store.Start(ctx); err != nil {
		_ = states.Close()
		return err
	}

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		defer states.Close()
		for range states.Receive(ctx) {
			r.notify()
		}
	}()
	go func() {
		defer r.wg.Done()
		_ = r.Connectivity.Start(ctx)
	}()

	r.logger.DebugContext(ctx, "client runtime started")
	return nil
}

// Changes signals every session, subscription or connectivity change until
// ctx is done or the runtime is closed. Bursts are coalesced.
func (r *Runtime) Changes(ctx context.Context) <-chan struct{} {
	sub := r.changes.Subscribe(ctx)
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Receive(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// Close stops every component. It is safe to call more than once.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := errors.Join(
		r.Store.Close(),
		r.Connectivity.Close(),
		r.Auth.Close(),
	)
	r.wg.Wait()
	r.sched.Close()
	err = errors.Join(err, r.changes.Close())

	r.logger.Debug("client runtime closed")
	return err
}

// acquire marks the runtime as used by a request. It fails once the runtime
// is retired or closed.
func (r *Runtime) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.retired {
		return false
	}
	r.users++
	return true
}

// release undoes acquire and closes a retired runtime once it is idle.
func (r *Runtime) release() {
	r.mu.Lock()
	r.users--
	idle := r.retired && r.users == 0
	r.mu.Unlock()
	if idle {
		r.closeRetired()
	}
}

// retire closes the runtime, or defers the close until the requests using
// it are done. Open change streams end right away so watchers reconnect to
// a fresh runtime.
func (r *Runtime) retire() {
	r.mu.Lock()
	if r.closed || r.retired {
		r.mu.Unlock()
		return
	}
	r.retired = true
	busy := r.users > 0
	r.mu.Unlock()

	if busy {
		_ = r.changes.Close()
		return
	}
	r.closeRetired()
}

func (r *Runtime) closeRetired() {
	if err := r.Close(); err != nil {
		r.logger.Warn("failed to close client runtime", logger.Error(err))
	}
}

func (r *Runtime) notify() {
	_ = r.changes.Broadcast(context.Background(), broadcast.Message[struct{}]{})
}
