// Package broadcast fans typed messages out to in-process subscribers.
//
// The auth client publishes its state-change events (SIGNED_IN, SIGNED_OUT,
// TOKEN_REFRESHED) through a MemoryBroadcaster; the session manager and any
// other interested component subscribe with a context that bounds the
// subscription's lifetime.
//
//	b := broadcast.NewMemoryBroadcaster[auth.Event](16, broadcast.WithLatestWins())
//	sub := b.Subscribe(ctx)
//	for msg := range sub.Receive(ctx) {
//		handle(msg.Data)
//	}
//
// Delivery never blocks the sender. By default a subscriber whose buffer is
// full is dropped and its channel closed; with WithLatestWins the oldest
// queued message is discarded instead and the subscriber stays attached.
package broadcast
