package cookie

import (
	"net/http"
	"strings"
)

type Config struct {
	Name string `env:"CLIENT_COOKIE_NAME" envDefault:"fintrack_client"`
	// Secrets is a comma separated list; the first signs, all verify.
	Secrets  string        `env:"CLIENT_COOKIE_SECRETS,required"`
	Domain   string        `env:"CLIENT_COOKIE_DOMAIN"`
	MaxAge   int           `env:"CLIENT_COOKIE_MAX_AGE" envDefault:"31536000"`
	Secure   bool          `env:"CLIENT_COOKIE_SECURE" envDefault:"true"`
	SameSite http.SameSite `env:"CLIENT_COOKIE_SAME_SITE" envDefault:"2"`
}

func (c Config) secrets() []string {
	var out []string
	for s := range strings.SplitSeq(c.Secrets, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
