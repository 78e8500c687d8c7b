package broadcast

import (
	"context"
	"sync"
)

// MemoryOption configures a MemoryBroadcaster.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	replayLast bool
	latestWins bool
}

// WithReplayLast makes new subscribers receive the most recent message
// immediately. Auth state streams use it so a late subscriber still learns
// the current session.
func WithReplayLast() MemoryOption {
	return func(c *memoryConfig) { c.replayLast = true }
}

// WithLatestWins keeps slow subscribers attached: when a buffer is full the
// oldest queued message is discarded to make room for the new one.
// Change signals and state streams use it, where only the latest value
// matters.
func WithLatestWins() MemoryOption {
	return func(c *memoryConfig) { c.latestWins = true }
}

// MemoryBroadcaster is an in-process Broadcaster. By default messages for a
// subscriber whose buffer is full are dropped and the subscriber is removed;
// see WithLatestWins.
type MemoryBroadcaster[T any] struct {
	subscribers map[*subscriber[T]]struct{}
	bufferSize  int
	cfg         memoryConfig
	last        *Message[T]
	closed      bool
	done        chan struct{}
	mu          sync.RWMutex
	cleanupWg   sync.WaitGroup
}

// NewMemoryBroadcaster creates a broadcaster with the given per-subscriber
// buffer (minimum 1).
func NewMemoryBroadcaster[T any](bufferSize int, opts ...MemoryOption) *MemoryBroadcaster[T] {
	b := &MemoryBroadcaster[T]{
		subscribers: make(map[*subscriber[T]]struct{}),
		bufferSize:  max(bufferSize, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&b.cfg)
	}
	return b
}

// Subscribe registers a subscriber removed automatically when ctx is done.
// A closed broadcaster hands out an already-closed subscriber.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber[T](b.bufferSize)
	if b.closed {
		_ = sub.Close()
		return sub
	}

	if b.cfg.replayLast && b.last != nil {
		sub.send(*b.last)
	}
	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			select {
			case <-ctx.Done():
				b.unsubscribe(sub)
			case <-b.done:
			}
		}()
	}

	return sub
}

// Broadcast sends msg to all subscribers without blocking.
func (b *MemoryBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	if b.cfg.replayLast {
		b.last = &msg
	}

	for sub := range b.subscribers {
		if b.cfg.latestWins {
			sub.sendLatest(msg)
			continue
		}
		if !sub.send(msg) {
			delete(b.subscribers, sub)
			_ = sub.Close()
		}
	}

	return nil
}

// Close closes every subscriber. Safe to call more than once.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	b.mu.Unlock()

	b.cleanupWg.Wait()
	return nil
}

func (b *MemoryBroadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	_ = sub.Close()
}
