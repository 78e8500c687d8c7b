// Package scheduler owns every delayed callback of a client runtime.
//
// Each concern (subscription retry, sign-in debounce, reconnect backoff, ...)
// gets exactly one named, cancellable timer handle. Scheduling a handle that
// is already pending replaces it, so bursts collapse into a single callback.
// The clock is injected so tests drive time with clockwork.FakeClock.
package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler runs callbacks after a delay on an injected clock.
// All methods are safe for concurrent use.
type Scheduler struct {
	clock clockwork.Clock

	mu     sync.Mutex
	seq    uint64
	timers map[string]*entry
	closed bool
}

type entry struct {
	id    uint64
	timer clockwork.Timer
}

// New returns a Scheduler on the given clock; nil means the real clock.
func New(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:  clock,
		timers: make(map[string]*entry),
	}
}

// Clock exposes the underlying clock for components that need tickers.
func (s *Scheduler) Clock() clockwork.Clock {
	return s.clock
}

// Now returns the current time of the underlying clock.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Schedule arms the handle name to run fn after d, replacing any pending
// callback under the same name. It is a no-op after Close.
func (s *Scheduler) Schedule(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if prev, ok := s.timers[name]; ok {
		prev.timer.Stop()
	}

	s.seq++
	e := &entry{id: s.seq}
	e.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		current, ok := s.timers[name]
		stale := !ok || current.id != e.id || s.closed
		if !stale {
			delete(s.timers, name)
		}
		s.mu.Unlock()

		if !stale {
			fn()
		}
	})
	s.timers[name] = e
}

// Cancel stops the pending callback under name and reports whether one was pending.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[name]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.timers, name)
	return true
}

// Pending reports whether a callback is armed under name.
func (s *Scheduler) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[name]
	return ok
}

// Close stops every pending callback. Later Schedule calls are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, name)
	}
	s.closed = true
}
