package subscription

import "time"

// Config bounds a single status check and the retry loop after failures.
type Config struct {
	Timeout                time.Duration `env:"SUBSCRIPTION_CHECK_TIMEOUT" envDefault:"10s"`
	RetryDelay             time.Duration `env:"SUBSCRIPTION_RETRY_DELAY" envDefault:"5s"`
	MaxConsecutiveFailures int           `env:"SUBSCRIPTION_MAX_FAILURES" envDefault:"3"`
}

// DefaultConfig mirrors the env defaults for callers that build Config in code.
func DefaultConfig() Config {
	return Config{
		Timeout:                10 * time.Second,
		RetryDelay:             5 * time.Second,
		MaxConsecutiveFailures: 3,
	}
}
