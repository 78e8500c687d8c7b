package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/fintrack/pkg/async"
	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/broadcast"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/profile"
	"github.com/dmitrymomot/fintrack/pkg/scheduler"
)

const refreshTimer = "session.refresh"

// Provider is the external auth provider.
type Provider interface {
	Subscribe(ctx context.Context) broadcast.Subscriber[auth.Event]
	GetSession(ctx context.Context) (*auth.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*auth.Session, error)
	SignOut(ctx context.Context) error
}

// Refresher is triggered after the sign-in debounce. The subscription cache
// implements it.
type Refresher interface {
	Check(ctx context.Context)
}

// Profiles resolves the profile of a signed-in identity.
type Profiles interface {
	Resolve(ctx context.Context, id auth.Identity) (*profile.Profile, error)
	SetDisplayName(ctx context.Context, id auth.Identity, name string) (*profile.Profile, error)
}

// Manager mirrors the auth provider's current session for one client.
//
// Loading is true from construction until the first of the persisted-session
// fetch or a provider event resolves, and never becomes true again.
// SIGNED_OUT is the single teardown point: it clears the profile state and
// runs every hook registered with OnTeardown.
type Manager struct {
	cfg       Config
	provider  Provider
	refresher Refresher
	profiles  Profiles
	sched     *scheduler.Scheduler
	logger    *slog.Logger
	changes   *broadcast.MemoryBroadcaster[State]

	mu        sync.RWMutex
	state     State
	teardown  []func()
	started   bool
	closed    bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	resolveMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.cfg = cfg }
}

// WithRefresher sets the component refreshed after the sign-in debounce.
func WithRefresher(r Refresher) Option {
	return func(m *Manager) { m.refresher = r }
}

// WithProfiles enables profile resolution on sign-in.
func WithProfiles(p Profiles) Option {
	return func(m *Manager) { m.profiles = p }
}

// WithScheduler sets the scheduler that runs the sign-in debounce.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(m *Manager) {
		if s != nil {
			m.sched = s
		}
	}
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Manager in the loading state.
func New(provider Provider, opts ...Option) *Manager {
	m := &Manager{
		cfg:      DefaultConfig(),
		provider: provider,
		logger:   logger.Nop(),
		changes:  broadcast.NewMemoryBroadcaster[State](16, broadcast.WithReplayLast(), broadcast.WithLatestWins()),
		state:    State{Loading: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sched == nil {
		m.sched = scheduler.New(nil)
	}
	m.logger = m.logger.With(logger.Component("session"))
	m.publish(context.Background(), m.state)
	return m
}

// OnTeardown registers fn to run on every SIGNED_OUT.
func (m *Manager) OnTeardown(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardown = append(m.teardown, fn)
}

// Subscribe streams state snapshots. The current state is delivered first.
func (m *Manager) Subscribe(ctx context.Context) broadcast.Subscriber[State] {
	return m.changes.Subscribe(ctx)
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Session returns the live session or nil.
func (m *Manager) Session() *auth.Session {
	return m.State().Session
}

// User returns the signed-in identity or nil.
func (m *Manager) User() *auth.Identity {
	return m.State().User()
}

func (m *Manager) Loading() bool {
	return m.State().Loading
}

func (m *Manager) NeedsDisplayName() bool {
	return m.State().NeedsDisplayName
}

// Start subscribes to provider events and fetches the persisted session
// concurrently. Events are handled until Close or ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	sub := m.provider.Subscribe(ctx)
	initial := async.Go(ctx, m.provider.GetSession)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer sub.Close()
		m.run(ctx, sub, initial)
	}()

	return nil
}

func (m *Manager) run(ctx context.Context, sub broadcast.Subscriber[auth.Event], initial *async.Future[*auth.Session]) {
	events := sub.Receive(ctx)
	fetched := initial.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fetched:
			fetched = nil
			s, err := initial.Await()
			m.handleInitial(ctx, s, err)
		case msg, ok := <-events:
			if !ok {
				return
			}
			m.handle(ctx, msg.Data, false)
		}
	}
}

func (m *Manager) handleInitial(ctx context.Context, s *auth.Session, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.WarnContext(ctx, "persisted session fetch failed", logger.Error(err))
	}

	m.mu.Lock()
	if !m.state.Loading {
		m.mu.Unlock()
		return
	}
	if s == nil || s.Expired(m.sched.Now()) {
		m.state.Loading = false
		state := m.state
		m.mu.Unlock()
		m.publish(ctx, state)
		return
	}
	m.mu.Unlock()

	m.signedIn(ctx, s, false)
}

// Handle applies one provider event and waits for the profile to resolve.
// The sign-in operations use it so the new session and profile are visible
// as soon as they return.
func (m *Manager) Handle(ctx context.Context, ev auth.Event) {
	m.handle(ctx, ev, true)
}

// handle applies ev. The event loop passes wait=false so a slow profile
// lookup never stalls the provider stream.
func (m *Manager) handle(ctx context.Context, ev auth.Event, wait bool) {
	log := m.logger.With(logger.Event(string(ev.Type)))

	switch ev.Type {
	case auth.EventSignedOut:
		log.DebugContext(ctx, "auth state changed")
		m.signedOut(ctx)
	case auth.EventSignedIn, auth.EventTokenRefreshed:
		if ev.Session == nil {
			log.WarnContext(ctx, "auth event without session ignored")
			return
		}
		log.DebugContext(ctx, "auth state changed", logger.UserID(ev.Session.Identity.ID))
		m.signedIn(ctx, ev.Session, wait)
	default:
		log.DebugContext(ctx, "unknown auth event ignored")
	}
}

func (m *Manager) signedIn(ctx context.Context, s *auth.Session, wait bool) {
	m.mu.Lock()
	prev := m.state.Session
	sameUser := prev != nil && prev.Identity.ID == s.Identity.ID
	m.state.Session = s
	m.state.Loading = false
	if !sameUser {
		m.state.Profile = nil
		m.state.NeedsDisplayName = false
	}
	resolve := m.profiles != nil && m.state.Profile == nil && !m.state.NeedsDisplayName
	state := m.state
	m.mu.Unlock()

	m.publish(ctx, state)

	if m.refresher != nil {
		m.sched.Schedule(refreshTimer, m.cfg.RefreshDebounce, func() {
			m.refresher.Check(context.Background())
		})
	}

	if !resolve {
		return
	}
	if wait {
		m.resolveProfile(context.WithoutCancel(ctx), s.Identity)
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.resolveProfile(ctx, s.Identity)
	}()
}

func (m *Manager) resolveProfile(ctx context.Context, id auth.Identity) {
	m.resolveMu.Lock()
	defer m.resolveMu.Unlock()

	m.mu.RLock()
	current := m.state.Session
	done := m.state.Profile != nil || m.state.NeedsDisplayName
	m.mu.RUnlock()
	if done || current == nil || current.Identity.ID != id.ID {
		return
	}

	p, err := m.profiles.Resolve(ctx, id)
	if err != nil && ctx.Err() != nil {
		// the manager is closing; a cancelled lookup says nothing about the profile
		return
	}

	m.mu.Lock()
	if m.state.Session == nil || m.state.Session.Identity.ID != id.ID {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.state.NeedsDisplayName = true
	} else {
		m.state.Profile = p
	}
	state := m.state
	m.mu.Unlock()

	if err != nil {
		m.logger.WarnContext(ctx, "profile unavailable, asking for display name",
			logger.UserID(id.ID), logger.Error(err))
	}
	m.publish(ctx, state)
}

func (m *Manager) signedOut(ctx context.Context) {
	m.sched.Cancel(refreshTimer)

	m.mu.Lock()
	// Only the persisted fetch or an event carrying a session ends loading.
	m.state = State{Loading: m.state.Loading}
	state := m.state
	hooks := append([]func(){}, m.teardown...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	m.publish(ctx, state)
}

// SignIn authenticates with email and password.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	s, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.Handle(ctx, auth.Event{Type: auth.EventSignedIn, Session: s})
	return s, nil
}

// SignUp registers a new identity. A nil session with auth.ErrConfirmationPending
// means the provider expects email confirmation first.
func (m *Manager) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*auth.Session, error) {
	s, err := m.provider.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, err
	}
	m.Handle(ctx, auth.Event{Type: auth.EventSignedIn, Session: s})
	return s, nil
}

// SignOut ends the session. Local teardown happens even when the provider
// call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.provider.SignOut(ctx)
	m.Handle(ctx, auth.Event{Type: auth.EventSignedOut})
	return err
}

// SetDisplayName stores the display name collected from the user and clears
// the NeedsDisplayName flag.
func (m *Manager) SetDisplayName(ctx context.Context, name string) (*profile.Profile, error) {
	s := m.Session()
	if s == nil {
		return nil, ErrNotSignedIn
	}
	if m.profiles == nil {
		return nil, profile.ErrCreateFailed
	}

	p, err := m.profiles.SetDisplayName(ctx, s.Identity, name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.state.Session == nil || m.state.Session.Identity.ID != s.Identity.ID {
		m.mu.Unlock()
		return p, nil
	}
	m.state.Profile = p
	m.state.NeedsDisplayName = false
	state := m.state
	m.mu.Unlock()

	m.publish(ctx, state)
	return p, nil
}

// Close stops the event loop and the debounce timer.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	m.sched.Cancel(refreshTimer)
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	return m.changes.Close()
}

func (m *Manager) publish(ctx context.Context, s State) {
	_ = m.changes.Broadcast(ctx, broadcast.Message[State]{Data: s})
}
