package connectivity

import "time"

// Config holds the probe timeout and the reconnect backoff bounds.
type Config struct {
	ProbeTimeout time.Duration `env:"CONNECTIVITY_PROBE_TIMEOUT" envDefault:"5s"`
	BaseDelay    time.Duration `env:"CONNECTIVITY_RECONNECT_BASE" envDefault:"5s"`
	MaxDelay     time.Duration `env:"CONNECTIVITY_RECONNECT_MAX" envDefault:"20s"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		ProbeTimeout: 5 * time.Second,
		BaseDelay:    5 * time.Second,
		MaxDelay:     20 * time.Second,
	}
}

// Backoff returns the reconnect delay after attempt failed attempts:
// BaseDelay doubled per attempt, capped at MaxDelay.
func (c Config) Backoff(attempt int) time.Duration {
	d := c.BaseDelay
	for range attempt {
		d *= 2
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	return min(d, c.MaxDelay)
}
