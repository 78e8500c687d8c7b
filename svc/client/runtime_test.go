package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
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
	"github.com/dmitrymomot/fintrack/pkg/functions"
	"github.com/dmitrymomot/fintrack/pkg/jwt"
	"github.com/dmitrymomot/fintrack/pkg/metrics"
	"github.com/dmitrymomot/fintrack/pkg/pricing"
	"github.com/dmitrymomot/fintrack/pkg/profile"
	"github.com/dmitrymomot/fintrack/pkg/session"
	"github.com/dmitrymomot/fintrack/pkg/subscription"
	"github.com/dmitrymomot/fintrack/svc/client"
)

const (
	anonKey = "anon-key"
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
	quiet   = 50 * time.Millisecond
)

// backend fakes the auth provider and the billing functions.
type backend struct {
	t          *testing.T
	signer     *jwt.Service
	userID     uuid.UUID
	subscribed atomic.Bool
	healthy    atomic.Bool
	checks     atomic.Int32
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	signer, err := jwt.NewFromString("secret")
	require.NoError(t, err)

	b := &backend{t: t, signer: signer, userID: uuid.New()}
	b.healthy.Store(true)
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/auth/v1/health":
		if !b.healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	case r.URL.Path == "/auth/v1/token":
		tok, err := b.signer.Generate(&jwt.Claims{
			RegisteredClaims: gojwt.RegisteredClaims{
				Subject:   b.userID.String(),
				ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Email: "ana@example.com",
		})
		require.NoError(b.t, err)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  tok,
			"expires_in":    3600,
			"refresh_token": "rt",
			"user": map[string]any{
				"id":            b.userID,
				"email":         "ana@example.com",
				"created_at":    time.Now().UTC().Format(time.RFC3339),
				"user_metadata": map[string]any{"display_name": "Ana"},
			},
		})
	case r.URL.Path == "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/functions/v1/check-subscription":
		b.checks.Add(1)
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(subscription.Status{Subscribed: b.subscribed.Load()})
	case r.URL.Path == "/functions/v1/create-checkout":
		_ = json.NewEncoder(w).Encode(functions.CheckoutResponse{URL: "https://pay.test/checkout"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func testConfig(url string) client.Config {
	return client.Config{
		Auth:         auth.Config{URL: url, AnonKey: anonKey, Timeout: time.Second},
		Functions:    functions.Config{URL: url, AnonKey: anonKey, Timeout: time.Second},
		Session:      session.Config{RefreshDebounce: 10 * time.Millisecond},
		Subscription: subscription.Config{Timeout: time.Second, RetryDelay: 20 * time.Millisecond, MaxConsecutiveFailures: 3},
		Access:       access.DefaultConfig(),
		Connectivity: connectivity.Config{ProbeTimeout: time.Second, BaseDelay: 20 * time.Millisecond, MaxDelay: 80 * time.Millisecond},
		Checkout:     checkout.Config{PostCancelDelay: 10 * time.Millisecond, AttemptTTL: time.Hour},
		MaxRuntimes:  4,
	}
}

func testDeps(t *testing.T, url string) client.Deps {
	t.Helper()
	fns, err := functions.NewClient(functions.Config{URL: url, AnonKey: anonKey})
	require.NoError(t, err)

	return client.Deps{
		Functions: fns,
		Pricing:   pricing.NewClient(fns),
		Profiles:  profile.NewResolver(profile.NewMemoryRepository()),
		Sessions:  auth.NewMemoryStore(),
		Attempts:  checkout.NewMemoryAttemptStore(),
		Metrics:   metrics.NewCollector(prometheus.NewRegistry()),
	}
}

func newRuntime(t *testing.T, url string) *client.Runtime {
	t.Helper()
	rt, err := client.NewRuntime("c1", testConfig(url), testDeps(t, url))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	require.NoError(t, rt.Start(context.Background()))
	return rt
}

func TestRuntime_SignedOut(t *testing.T) {
	t.Parallel()
	_, srv := newBackend(t)
	rt := newRuntime(t, srv.URL)

	require.Eventually(t, func() bool { return !rt.Store.Loading() }, waitFor, tick)

	d := rt.Guard.Evaluate("/dashboard", access.VariantNavigation)
	assert.Equal(t, access.StateRedirectToAuth, d.State)
	assert.Equal(t, access.AuthRoute, d.Redirect)

	d = rt.Guard.Evaluate("/", access.VariantNavigation)
	assert.Equal(t, access.StateAllow, d.State)

	assert.Eventually(t, rt.Connectivity.Online, waitFor, tick)
}

func TestRuntime_SignInAndOut(t *testing.T) {
	t.Parallel()
	be, srv := newBackend(t)
	be.subscribed.Store(true)
	rt := newRuntime(t, srv.URL)
	ctx := context.Background()

	changes := rt.Changes(ctx)

	_, err := rt.Store.SignIn(ctx, "ana@example.com", "pw")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rt.Subscription.Status().Subscribed }, waitFor, tick)
	select {
	case <-changes:
	case <-time.After(waitFor):
		t.Fatal("no change signalled after sign-in")
	}

	require.Eventually(t, func() bool { return rt.Store.State().Profile != nil }, waitFor, tick)
	assert.Equal(t, "Ana", rt.Store.State().Profile.DisplayName)
	assert.Equal(t, access.StateAllow, rt.Guard.Evaluate("/dashboard", access.VariantNavigation).State)

	nav, err := rt.Checkout.StartCheckout(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/checkout", nav.URL)

	require.NoError(t, rt.Store.SignOut(ctx))
	assert.Nil(t, rt.Session())
	assert.False(t, rt.Subscription.Status().Subscribed)
	_, returning := rt.Checkout.ReturningFromCheckout(ctx)
	assert.False(t, returning)
	assert.Equal(t, access.StateRedirectToAuth, rt.Guard.Evaluate("/dashboard", access.VariantNavigation).State)
}

func TestRuntime_Offline(t *testing.T) {
	t.Parallel()
	be, srv := newBackend(t)
	be.healthy.Store(false)
	rt := newRuntime(t, srv.URL)

	require.Eventually(t, func() bool { return rt.Connectivity.Err() != nil }, waitFor, tick)
	assert.False(t, rt.Connectivity.Online())
	assert.True(t, rt.Connectivity.Blocks("/dashboard"))
	assert.False(t, rt.Connectivity.Blocks("/"))

	be.healthy.Store(true)
	assert.Eventually(t, rt.Connectivity.Online, waitFor, tick)
}

func TestRuntime_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	_, srv := newBackend(t)
	rt := newRuntime(t, srv.URL)

	changes := rt.Changes(context.Background())
	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, waitFor, tick)
	assert.ErrorIs(t, rt.Start(context.Background()), client.ErrRuntimeClosed)
}

func TestNewRuntime_RequiresFunctions(t *testing.T) {
	t.Parallel()

	_, err := client.NewRuntime("c1", testConfig("http://localhost"), client.Deps{})
	assert.ErrorIs(t, err, client.ErrMissingFunctions)
}

func TestRuntime_ChangesSurviveBurst(t *testing.T) {
	t.Parallel()
	_, srv := newBackend(t)
	rt := newRuntime(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	changes := rt.Changes(ctx)

	for range 50 {
		rt.ConnectivityTransition(true)
	}

	select {
	case _, ok := <-changes:
		require.True(t, ok, "changes closed after a burst")
	case <-time.After(waitFor):
		t.Fatal("no change signalled")
	}
	// drain whatever was coalesced
	for drained := false; !drained; {
		select {
		case _, ok := <-changes:
			require.True(t, ok, "changes closed after a burst")
		case <-time.After(quiet):
			drained = true
		}
	}

	rt.ConnectivityTransition(true)
	select {
	case _, ok := <-changes:
		assert.True(t, ok)
	case <-time.After(waitFor):
		t.Fatal("no change signalled after the burst")
	}
}

func TestRuntime_WatchSurvivesBurst(t *testing.T) {
	t.Parallel()
	_, srv := newBackend(t)
	rt := newRuntime(t, srv.URL)
	require.Eventually(t, func() bool { return !rt.Store.Loading() }, waitFor, tick)

	ctx, cancel := context.WithCancel(context.Background())
	var evaluations atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- rt.Guard.Watch(ctx, "/dashboard", access.VariantNavigation, rt.Changes(ctx), func(access.Decision) {
			evaluations.Add(1)
		})
	}()
	require.Eventually(t, func() bool { return evaluations.Load() >= 1 }, waitFor, tick)

	for range 50 {
		rt.ConnectivityTransition(true)
	}
	time.Sleep(quiet)
	before := evaluations.Load()

	rt.ConnectivityTransition(true)
	require.Eventually(t, func() bool { return evaluations.Load() > before }, waitFor, tick)

	select {
	case err := <-done:
		t.Fatalf("watch returned early: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		// the closed changes channel and the cancelled ctx race; both end the watch
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(waitFor):
		t.Fatal("watch did not stop on cancel")
	}
}
