// Package auth is a client for a GoTrue-compatible authentication provider.
//
// A Client owns the session of one client runtime: it signs in with email
// and password, signs up, signs out, refreshes tokens and persists the
// session in a SessionStore (memory or Redis). Every state change is
// published as an Event (SIGNED_IN, SIGNED_OUT, TOKEN_REFRESHED) that
// subscribers receive through Subscribe.
//
// Identities whose email matches the reserved administrator pattern
// (empresa@admin.local or any @admin.local address) are reported by
// Identity.IsAdministrative.
package auth
