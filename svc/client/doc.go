// Package client assembles the per-client gating core.
//
// A Runtime owns one auth session and everything derived from it: the
// session store, the subscription cache, the access guard, the connectivity
// monitor and the checkout bridge. Components talk to each other only
// through the interfaces they declare, and the Runtime is the single place
// where those are satisfied. Signing out tears down the subscription cache,
// the pending checkout attempt and the guard's loading timer in one step.
//
// The Registry maps client ids (the API's client cookie) to runtimes.
package client
