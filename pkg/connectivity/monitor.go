package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/fintrack/pkg/access"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/scheduler"
)

const reconnectTimer = "connectivity.reconnect"

// Observer is notified when the monitor goes online or offline.
type Observer interface {
	ConnectivityTransition(online bool)
}

// Monitor tracks network and backend reachability for one client. While
// offline it holds the lock, blocks every route except the landing page and
// reconnects with exponential backoff.
type Monitor struct {
	cfg      Config
	network  NetworkSource
	probe    Probe
	lock     Lock
	sched    *scheduler.Scheduler
	observer Observer
	logger   *slog.Logger

	mu       sync.RWMutex
	online   bool
	lastErr  error
	attempts int
	locked   bool
	closed   bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(m *Monitor) { m.cfg = cfg }
}

// WithLock sets the lock held while the monitor reports offline.
func WithLock(l Lock) Option {
	return func(m *Monitor) {
		if l != nil {
			m.lock = l
		}
	}
}

// WithScheduler sets the scheduler that owns the reconnect timer. The
// monitor cancels its own timer on Close but never closes the scheduler.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(m *Monitor) {
		if s != nil {
			m.sched = s
		}
	}
}

// WithObserver is told about every online/offline transition.
func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observer = o }
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMonitor creates a monitor that assumes it is online until the first
// check says otherwise.
func NewMonitor(network NetworkSource, probe Probe, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:     DefaultConfig(),
		network: network,
		probe:   probe,
		lock:    &PointerLock{},
		logger:  logger.Nop(),
		online:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sched == nil {
		m.sched = scheduler.New(nil)
	}
	m.logger = m.logger.With(logger.Component("connectivity"))
	return m
}

// Online reports the result of the last check.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Err is the reason of the last failed check, nil while online.
func (m *Monitor) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Attempts is the number of failed reconnects since the monitor went offline.
func (m *Monitor) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

// Blocks reports whether route is covered by the connectivity overlay.
func (m *Monitor) Blocks(route string) bool {
	return !m.Online() && !access.IsLanding(route)
}

// Start runs the first check.
func (m *Monitor) Start(ctx context.Context) error {
	m.Check(ctx)
	return nil
}

// Check probes the network and the backend and updates the state.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.run(ctx)
	m.apply(ctx, err)
	return err == nil
}

// Retry is the manual retry: a pending reconnect is replaced by an
// immediate check.
func (m *Monitor) Retry(ctx context.Context) bool {
	m.sched.Cancel(reconnectTimer)
	return m.Check(ctx)
}

// NetworkChanged is called when the client reports a network change.
func (m *Monitor) NetworkChanged(ctx context.Context) bool {
	return m.Retry(ctx)
}

// Close stops reconnecting and releases the lock.
func (m *Monitor) Close() error {
	m.sched.Cancel(reconnectTimer)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.locked {
		m.locked = false
		m.lock.Release()
	}
	return nil
}

func (m *Monitor) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: probe panic: %v", ErrBackendUnreachable, r)
		}
	}()

	if !m.network.Online() {
		return ErrOffline
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	if err := m.probe.Probe(ctx); err != nil {
		if !errors.Is(err, ErrBackendUnreachable) {
			err = errors.Join(ErrBackendUnreachable, err)
		}
		return err
	}
	return nil
}

func (m *Monitor) apply(ctx context.Context, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	wasOnline := m.online
	m.online = err == nil
	m.lastErr = err

	if err == nil {
		m.attempts = 0
		if m.locked {
			m.locked = false
			m.lock.Release()
		}
		m.mu.Unlock()

		m.sched.Cancel(reconnectTimer)
		if !wasOnline {
			m.logger.InfoContext(ctx, "connection restored")
			m.transition(true)
		}
		return
	}

	if !m.locked {
		m.locked = true
		m.lock.Acquire()
	}
	if !wasOnline {
		m.attempts++
	}
	attempts := m.attempts
	delay := m.cfg.Backoff(attempts)
	m.mu.Unlock()

	m.sched.Schedule(reconnectTimer, delay, func() {
		m.Check(context.Background())
	})

	log := m.logger.With(logger.Error(err), logger.RetryCount(attempts), logger.Duration(delay))
	if wasOnline {
		log.WarnContext(ctx, "connection lost, reconnect scheduled")
		m.transition(false)
		return
	}
	log.DebugContext(ctx, "still offline, reconnect scheduled")
}

func (m *Monitor) transition(online bool) {
	if m.observer != nil {
		m.observer.ConnectivityTransition(online)
	}
}
