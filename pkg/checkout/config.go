package checkout

import "time"

// Config holds the checkout bridge timings.
type Config struct {
	// PostCancelDelay gives the payment provider time to settle before the
	// subscription status is refreshed after a cancellation.
	PostCancelDelay time.Duration `env:"CHECKOUT_POST_CANCEL_DELAY" envDefault:"2s"`
	// AttemptTTL bounds how long an unfinished checkout is remembered.
	AttemptTTL time.Duration `env:"CHECKOUT_ATTEMPT_TTL" envDefault:"24h"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		PostCancelDelay: 2 * time.Second,
		AttemptTTL:      24 * time.Hour,
	}
}
