package auth

import "time"

type Config struct {
	URL           string        `env:"SUPABASE_URL,required"`
	AnonKey       string        `env:"SUPABASE_ANON_KEY,required"`
	JWTSecret     string        `env:"SUPABASE_JWT_SECRET"`
	Timeout       time.Duration `env:"AUTH_HTTP_TIMEOUT" envDefault:"10s"`
	AutoRefresh   bool          `env:"AUTH_AUTO_REFRESH" envDefault:"true"`
	RefreshMargin time.Duration `env:"AUTH_REFRESH_MARGIN" envDefault:"60s"`
}
