// Package pricing looks up the subscription price through the get-price
// function and caches it process-wide for a fixed TTL.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/fintrack/pkg/cache"
	"github.com/dmitrymomot/fintrack/pkg/functions"
)

// Price is the current subscription price.
type Price = functions.Price

var ErrPriceUnavailable = errors.New("subscription price unavailable")

type Config struct {
	TTL time.Duration `env:"PRICE_CACHE_TTL" envDefault:"5m"`
}

// Fetcher loads the price from the backend.
type Fetcher interface {
	GetPrice(ctx context.Context) (functions.Price, error)
}

// Client serves the cached price. One Client is shared by every runtime of
// the process.
type Client struct {
	value *cache.TTLValue[Price]
}

// Option configures a Client.
type Option func(*options)

type options struct {
	ttl   time.Duration
	clock clockwork.Clock
}

// WithTTL sets how long a fetched price is served before refetching.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// NewClient caches prices fetched by f for five minutes by default.
func NewClient(f Fetcher, opts ...Option) *Client {
	o := options{ttl: 5 * time.Minute}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		value: cache.NewTTLValue(o.ttl, o.clock, func(ctx context.Context) (Price, error) {
			p, err := f.GetPrice(ctx)
			if err != nil {
				return Price{}, errors.Join(ErrPriceUnavailable, err)
			}
			return p, nil
		}),
	}
}

// Price returns the cached price, fetching it when the cache is cold or
// expired.
func (c *Client) Price(ctx context.Context) (Price, error) {
	return c.value.Get(ctx)
}

// Invalidate drops the cached price.
func (c *Client) Invalidate() {
	c.value.Invalidate()
}
