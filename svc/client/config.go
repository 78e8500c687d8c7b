package client

import (
	"time"

	"github.com/dmitrymomot/fintrack/pkg/access"
	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/checkout"
	"github.com/dmitrymomot/fintrack/pkg/connectivity"
	"github.com/dmitrymomot/fintrack/pkg/functions"
	"github.com/dmitrymomot/fintrack/pkg/session"
	"github.com/dmitrymomot/fintrack/pkg/subscription"
)

// Config bundles the settings of every per-client component.
type Config struct {
	Auth         auth.Config
	Functions    functions.Config
	Session      session.Config
	Subscription subscription.Config
	Access       access.Config
	Connectivity connectivity.Config
	Checkout     checkout.Config

	// SessionTTL bounds how long a persisted session outlives its client.
	SessionTTL time.Duration `env:"CLIENT_SESSION_TTL" envDefault:"720h"`
	// MaxRuntimes caps the number of live client runtimes; the least
	// recently used one is closed when the cap is reached.
	MaxRuntimes int `env:"CLIENT_MAX_RUNTIMES" envDefault:"1024"`
}
