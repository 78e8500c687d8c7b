package api

import (
	"github.com/dmitrymomot/fintrack/pkg/cookie"
	"github.com/dmitrymomot/fintrack/pkg/ratelimit"
)

type Config struct {
	AllowedOrigins []string `env:"API_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	// TrustedIPHeaders lists the proxy headers that carry the client address.
	TrustedIPHeaders []string `env:"API_TRUSTED_IP_HEADERS" envSeparator:","`
	Cookie           cookie.Config
	SignInLimit      ratelimit.Config
}
