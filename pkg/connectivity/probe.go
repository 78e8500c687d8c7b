package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// NetworkSource reports whether the client has network access at all.
type NetworkSource interface {
	Online() bool
}

// Probe checks that the backend answers.
type Probe interface {
	Probe(ctx context.Context) error
}

// NetworkState is a NetworkSource set by the client, which is the only one
// that knows its own network status. It starts online.
type NetworkState struct {
	offline atomic.Bool
}

func (n *NetworkState) Online() bool {
	return !n.offline.Load()
}

// Set records the network status reported by the client.
func (n *NetworkState) Set(online bool) {
	n.offline.Store(!online)
}

// HTTPProbe issues GET requests against a health endpoint.
type HTTPProbe struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPProbe probes url, sending apiKey in the apikey header when set.
func NewHTTPProbe(url, apiKey string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Probe fails with ErrBackendUnreachable on a transport error or a 5xx
// response.
func (p *HTTPProbe) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrBackendUnreachable, resp.StatusCode)
	}
	return nil
}
