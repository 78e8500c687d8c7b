package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// AdminEmail is the reserved company administrator account.
	AdminEmail = "empresa@admin.local"
	// AdminDomain marks every administrative identity.
	AdminDomain = "@admin.local"
)

// Identity is the authenticated user record issued by the provider.
type Identity struct {
	ID        uuid.UUID      `json:"id"`
	Email     string         `json:"email"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IsAdministrative reports whether the identity is exempt from trial and
// subscription checks.
func (i Identity) IsAdministrative() bool {
	return IsAdministrativeEmail(i.Email)
}

// DisplayName returns the display_name metadata entry, if any.
func (i Identity) DisplayName() string {
	name, _ := i.Metadata["display_name"].(string)
	return strings.TrimSpace(name)
}

// IsAdministrativeEmail matches the reserved administrator pattern,
// ignoring case and surrounding whitespace.
func IsAdministrativeEmail(email string) bool {
	e := strings.ToLower(strings.TrimSpace(email))
	return e == AdminEmail || strings.HasSuffix(e, AdminDomain)
}

// Session is a live credential bound to an Identity.
type Session struct {
	Identity     Identity  `json:"identity"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || now.After(s.ExpiresAt)
}

// EventType names an auth state change.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event is published on every auth state change. Session is nil for
// EventSignedOut.
type Event struct {
	Type    EventType
	Session *Session
}
