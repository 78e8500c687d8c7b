package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrymomot/fintrack/pkg/cache"
)

type Config struct {
	// Rate is the sustained number of requests per Per.
	Rate  int           `env:"SIGNIN_RATE_LIMIT" envDefault:"5"`
	Per   time.Duration `env:"SIGNIN_RATE_PER" envDefault:"1m"`
	Burst int           `env:"SIGNIN_RATE_BURST" envDefault:"5"`
	// MaxKeys bounds memory; the least recently seen key is forgotten first.
	MaxKeys int `env:"SIGNIN_RATE_MAX_KEYS" envDefault:"10000"`
}

// KeyFunc picks the bucket of a request; "" skips limiting.
type KeyFunc func(r *http.Request) string

// Limiter keeps one token bucket per key.
type Limiter struct {
	limit   rate.Limit
	burst   int
	buckets *cache.LRUCache[string, *rate.Limiter]
}

func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.Rate > 0 && cfg.Per > 0 {
		limit = rate.Every(cfg.Per / time.Duration(cfg.Rate))
	}
	return &Limiter{
		limit:   limit,
		burst:   max(cfg.Burst, 1),
		buckets: cache.NewLRUCache[string, *rate.Limiter](max(cfg.MaxKeys, 1)),
	}
}

// Reserve takes one token for key. It returns zero when the request may
// proceed and the wait until the next token otherwise.
func (l *Limiter) Reserve(key string, now time.Time) time.Duration {
	b, _, _ := l.buckets.GetOrCreate(key, func() (*rate.Limiter, error) {
		return rate.NewLimiter(l.limit, l.burst), nil
	})
	if b.AllowN(now, 1) {
		return 0
	}
	r := b.ReserveN(now, 1)
	defer r.CancelAt(now)
	if !r.OK() {
		return time.Duration(math.MaxInt64)
	}
	return max(r.DelayFrom(now), time.Millisecond)
}

// Middleware answers 429 with Retry-After once key's bucket is empty.
func Middleware(l *Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			if wait := l.Reserve(k, time.Now()); wait > 0 {
				secs := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
