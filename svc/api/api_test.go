package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fintrack/pkg/access"
	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/checkout"
	"github.com/dmitrymomot/fintrack/pkg/connectivity"
	"github.com/dmitrymomot/fintrack/pkg/cookie"
	"github.com/dmitrymomot/fintrack/pkg/functions"
	"github.com/dmitrymomot/fintrack/pkg/httpserver"
	"github.com/dmitrymomot/fintrack/pkg/jwt"
	"github.com/dmitrymomot/fintrack/pkg/metrics"
	"github.com/dmitrymomot/fintrack/pkg/pricing"
	"github.com/dmitrymomot/fintrack/pkg/profile"
	"github.com/dmitrymomot/fintrack/pkg/ratelimit"
	"github.com/dmitrymomot/fintrack/pkg/session"
	"github.com/dmitrymomot/fintrack/pkg/subscription"
	"github.com/dmitrymomot/fintrack/svc/api"
	"github.com/dmitrymomot/fintrack/svc/client"
)

const (
	anonKey = "anon-key"
	secret  = "0123456789abcdef0123456789abcdef"
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// upstream fakes the auth provider and the backend functions.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	signer, err := jwt.NewFromString("secret")
	require.NoError(t, err)
	userID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/v1/health":
		case "/auth/v1/token":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "correct" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
				return
			}
			tok, err := signer.Generate(&jwt.Claims{RegisteredClaims: gojwt.RegisteredClaims{
				Subject:   userID.String(),
				ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
			}})
			require.NoError(t, err)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  tok,
				"expires_in":    3600,
				"refresh_token": "rt",
				"user": map[string]any{
					"id":         userID,
					"email":      body["email"],
					"created_at": time.Now().UTC().Format(time.RFC3339),
				},
			})
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		case "/functions/v1/check-subscription":
			_, _ = w.Write([]byte(`{"subscribed":false}`))
		case "/functions/v1/create-checkout":
			_, _ = w.Write([]byte(`{"url":"https://pay.test/checkout"}`))
		case "/functions/v1/get-price":
			_, _ = w.Write([]byte(`{"amount":19.9,"currency":"BRL","formatted":"R$ 19,90"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	srv  *httptest.Server
	http *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	up := upstream(t)

	fns, err := functions.NewClient(functions.Config{URL: up.URL, AnonKey: anonKey})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	prices := pricing.NewClient(fns)

	registry := client.NewRegistry(context.Background(), client.Config{
		Auth:         auth.Config{URL: up.URL, AnonKey: anonKey, Timeout: time.Second},
		Functions:    functions.Config{URL: up.URL, AnonKey: anonKey},
		Session:      session.Config{RefreshDebounce: 10 * time.Millisecond},
		Subscription: subscription.DefaultConfig(),
		Access:       access.DefaultConfig(),
		Connectivity: connectivity.DefaultConfig(),
		Checkout:     checkout.DefaultConfig(),
		MaxRuntimes:  8,
	}, client.Deps{
		Functions: fns,
		Pricing:   prices,
		Profiles:  profile.NewResolver(profile.NewMemoryRepository()),
		Sessions:  auth.NewMemoryStore(),
		Attempts:  checkout.NewMemoryAttemptStore(),
		Metrics:   collector,
	})
	t.Cleanup(func() { _ = registry.Close() })

	h, err := api.NewRouter(api.Config{
		AllowedOrigins: []string{"http://app.test"},
		Cookie:         cookie.Config{Name: "cid", Secrets: secret, MaxAge: 3600},
		SignInLimit:    ratelimit.Config{Rate: 1, Per: time.Hour, Burst: 3, MaxKeys: 10},
	}, api.Deps{
		Registry: registry,
		Pricing:  prices,
		Metrics:  collector,
		Gatherer: reg,
		Health:   map[string]httpserver.Check{"upstream": func(context.Context) error { return nil }},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{srv: srv, http: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (h *harness) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.http.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type sessionBody struct {
	Loading bool `json:"loading"`
	User    *struct {
		Email string `json:"email"`
	} `json:"user"`
	Trial *struct {
		Active bool `json:"active"`
	} `json:"trial"`
}

type accessBody struct {
	State    string `json:"state"`
	Redirect string `json:"redirect"`
	Offline  bool   `json:"offline"`
	Notice   *struct {
		DaysRemaining int `json:"days_remaining"`
	} `json:"notice"`
}

func (h *harness) waitLoaded(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		var s sessionBody
		return h.do(t, http.MethodGet, "/api/session", nil, &s) == http.StatusOK && !s.Loading
	}, waitFor, tick)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var health map[string]any
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", nil, &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := h.http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignedOutAccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.waitLoaded(t)

	var d accessBody
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/access?route=/dashboard", nil, &d))
	assert.Equal(t, string(access.StateRedirectToAuth), d.State)
	assert.Equal(t, access.AuthRoute, d.Redirect)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/access?route=/", nil, &d))
	assert.Equal(t, string(access.StateAllow), d.State)
}

func TestSignInFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.waitLoaded(t)

	assert.Equal(t, http.StatusUnprocessableEntity, h.do(t, http.MethodPost, "/api/auth/sign-in", map[string]string{"email": "ana@example.com"}, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/auth/sign-in", map[string]string{"email": "ana@example.com", "password": "wrong"}, nil))

	var s sessionBody
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/auth/sign-in", map[string]string{"email": "ana@example.com", "password": "correct"}, &s))
	require.NotNil(t, s.User)
	assert.Equal(t, "ana@example.com", s.User.Email)
	require.NotNil(t, s.Trial)
	assert.True(t, s.Trial.Active)

	var d accessBody
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/access?route=/dashboard", nil, &d))
	assert.Equal(t, string(access.StateAllow), d.State)
	require.NotNil(t, d.Notice)
	assert.Equal(t, 3, d.Notice.DaysRemaining)

	var nav checkout.Navigation
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/checkout", nil, &nav))
	assert.Equal(t, "https://pay.test/checkout", nav.URL)

	var ret map[string]any
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/checkout/return", nil, &ret))
	assert.Equal(t, true, ret["returning"])

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/auth/sign-out", nil, nil))
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/access?route=/dashboard", nil, &d))
	assert.Equal(t, string(access.StateRedirectToAuth), d.State)

	// Three attempts above exhausted the burst for this address.
	assert.Equal(t, http.StatusTooManyRequests, h.do(t, http.MethodPost, "/api/auth/sign-in", map[string]string{"email": "ana@example.com", "password": "correct"}, nil))
}

func TestDisplayNameRequiresSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.waitLoaded(t)

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPut, "/api/profile/display-name", map[string]string{"display_name": "Ana"}, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/checkout", nil, nil))
}

func TestSignUpValidation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	status := h.do(t, http.MethodPost, "/api/auth/sign-up", map[string]string{"email": "ana", "password": "abc"}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation failed", body.Error)
	assert.Contains(t, body.Fields, "email")
	assert.Contains(t, body.Fields, "password")
}

func TestPrice(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var p map[string]any
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/price", nil, &p))
	assert.Equal(t, "BRL", p["currency"])
	assert.Equal(t, "R$ 19,90", p["formatted"])
}

func TestConnectivity(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.waitLoaded(t)

	var c struct {
		Online bool `json:"online"`
	}
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/connectivity/network", map[string]bool{"online": false}, &c))
	assert.False(t, c.Online)

	var d accessBody
	h.do(t, http.MethodGet, "/api/access?route=/dashboard", nil, &d)
	assert.True(t, d.Offline)
	h.do(t, http.MethodGet, "/api/access?route=/", nil, &d)
	assert.False(t, d.Offline)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/connectivity/network", map[string]bool{"online": true}, &c))
	assert.True(t, c.Online)
}

func TestWatchAccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.waitLoaded(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.srv.URL+"/api/access/watch?route=/dashboard", nil)
	require.NoError(t, err)
	resp, err := h.http.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan accessBody, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				var d accessBody
				if json.Unmarshal([]byte(data), &d) == nil {
					events <- d
				}
			}
		}
	}()

	next := func() accessBody {
		select {
		case d := <-events:
			return d
		case <-ctx.Done():
			t.Fatal("no decision streamed")
			return accessBody{}
		}
	}

	assert.Equal(t, string(access.StateRedirectToAuth), next().State)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/auth/sign-in", map[string]string{"email": "ana@example.com", "password": "correct"}, nil))
	for {
		if d := next(); d.State == string(access.StateAllow) {
			break
		}
	}
}
