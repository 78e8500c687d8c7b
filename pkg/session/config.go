package session

import "time"

// Config holds the session store timings.
type Config struct {
	// RefreshDebounce delays the subscription refresh after SIGNED_IN and
	// TOKEN_REFRESHED so a burst of events results in a single check.
	RefreshDebounce time.Duration `env:"SESSION_REFRESH_DEBOUNCE" envDefault:"3s"`
}

func DefaultConfig() Config {
	return Config{RefreshDebounce: 3 * time.Second}
}
