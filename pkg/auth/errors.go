package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid login credentials")
	ErrSessionExpired      = errors.New("session expired")
	ErrNoSession           = errors.New("no active session")
	ErrEmailNotConfirmed   = errors.New("email not confirmed")
	ErrConfirmationPending = errors.New("sign-up requires email confirmation")
	ErrUserAlreadyExists   = errors.New("user already registered")
	ErrWeakPassword        = errors.New("password does not meet requirements")
	ErrInvalidToken        = errors.New("invalid access token")
	ErrProviderError       = errors.New("auth provider error")
	ErrSessionNotFound     = errors.New("persisted session not found")

	ErrMissingURL    = errors.New("auth provider URL is required")
	ErrMissingAPIKey = errors.New("auth provider API key is required")
)

// APIError is an error response returned by the auth provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("auth provider responded %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("auth provider responded %d (%s): %s", e.Status, e.Code, e.Message)
}

// IsAuthError reports whether err should be shown on the login form rather
// than treated as an outage.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrNoSession) ||
		errors.Is(err, ErrEmailNotConfirmed) ||
		errors.Is(err, ErrUserAlreadyExists) ||
		errors.Is(err, ErrWeakPassword)
}
