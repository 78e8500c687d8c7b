package session

import (
	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/profile"
)

// State is a snapshot of the session store.
type State struct {
	Session          *auth.Session
	Profile          *profile.Profile
	Loading          bool
	NeedsDisplayName bool
}

// User returns the signed-in identity or nil.
func (s State) User() *auth.Identity {
	if s.Session == nil {
		return nil
	}
	return &s.Session.Identity
}
