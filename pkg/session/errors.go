package session

import "errors"

var (
	ErrAlreadyStarted = errors.New("session manager already started")
	ErrClosed         = errors.New("session manager closed")
	ErrNotSignedIn    = errors.New("not signed in")
)
