package access

import "time"

// Config holds the guard timings.
type Config struct {
	// LoadingTimeout bounds how long a route waits for the session store.
	LoadingTimeout time.Duration `env:"ACCESS_LOADING_TIMEOUT" envDefault:"15s"`
	// PollInterval re-evaluates watched routes to keep countdowns fresh.
	PollInterval time.Duration `env:"ACCESS_POLL_INTERVAL" envDefault:"60s"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		LoadingTimeout: 15 * time.Second,
		PollInterval:   60 * time.Second,
	}
}
