package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/fintrack/pkg/subscription"
)

type Config struct {
	URL     string        `env:"SUPABASE_URL,required"`
	AnonKey string        `env:"SUPABASE_ANON_KEY,required"`
	Timeout time.Duration `env:"FUNCTIONS_HTTP_TIMEOUT" envDefault:"15s"`
}

// Client calls the backend serverless functions.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// NewClient returns ErrMissingURL when cfg.URL is empty.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/") + "/functions/v1/",
		anonKey: cfg.AnonKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CheckSubscription implements subscription.Checker.
func (c *Client) CheckSubscription(ctx context.Context, token string) (subscription.Status, error) {
	if token == "" {
		return subscription.Status{}, ErrMissingToken
	}
	var st subscription.Status
	if err := c.call(ctx, http.MethodPost, CheckSubscriptionFn, token, nil, &st); err != nil {
		return subscription.Status{}, err
	}
	return st, nil
}

// CreateCheckout returns the hosted checkout URL for the bearer of token.
func (c *Client) CreateCheckout(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	var resp CheckoutResponse
	if err := c.call(ctx, http.MethodPost, CreateCheckoutFn, token, nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", errors.Join(ErrInvalidPayload, errors.New("checkout response without url"))
	}
	return resp.URL, nil
}

// CustomerPortal returns a portal link, or cancels the subscription when
// cancel is true.
func (c *Client) CustomerPortal(ctx context.Context, token string, cancel bool) (PortalResponse, error) {
	if token == "" {
		return PortalResponse{}, ErrMissingToken
	}
	var body any
	if cancel {
		body = PortalRequest{Action: ActionCancel}
	}
	var resp PortalResponse
	if err := c.call(ctx, http.MethodPost, CustomerPortalFn, token, body, &resp); err != nil {
		return PortalResponse{}, err
	}
	if resp.URL == "" && !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "portal response without url"
		}
		return PortalResponse{}, errors.Join(ErrInvalidPayload, errors.New(msg))
	}
	return resp, nil
}

// GetPrice fetches the current subscription price. It needs no session.
func (c *Client) GetPrice(ctx context.Context) (Price, error) {
	var p Price
	if err := c.call(ctx, http.MethodGet, GetPriceFn, "", nil, &p); err != nil {
		return Price{}, err
	}
	return p, nil
}

func (c *Client) call(ctx context.Context, method, fn, token string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", fn, err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+fn, rdr)
	if err != nil {
		return fmt.Errorf("build %s request: %w", fn, err)
	}
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{Function: fn, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var er ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			httpErr.Message = er.Error
		}
		return errors.Join(ErrRequestFailed, httpErr)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}
	return nil
}
