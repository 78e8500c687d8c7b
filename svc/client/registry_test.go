package client_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fintrack/pkg/access"
	"github.com/dmitrymomot/fintrack/svc/client"
)

func TestRegistry(t *testing.T) {
	t.Parallel()
	_, srv := newBackend(t)

	cfg := testConfig(srv.URL)
	cfg.MaxRuntimes = 1
	reg := client.NewRegistry(context.Background(), cfg, testDeps(t, srv.URL))
	t.Cleanup(func() { _ = reg.Close() })

	_, err := reg.Get("")
	assert.ErrorIs(t, err, client.ErrEmptyClientID)

	a, err := reg.Get("a")
	require.NoError(t, err)
	again, err := reg.Get("a")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, ok := reg.Lookup("b")
	assert.False(t, ok)

	b, err := reg.Get("b")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 1, reg.Len())

	// The evicted runtime was closed.
	assert.ErrorIs(t, a.Start(context.Background()), client.ErrRuntimeClosed)

	reg.Remove("b")
	assert.Equal(t, 0, reg.Len())
	assert.ErrorIs(t, b.Start(context.Background()), client.ErrRuntimeClosed)
}

func TestRegistry_AcquiredRuntimeOutlivesEviction(t *testing.T) {
	t.Parallel()
	_, srv := newBackend(t)

	cfg := testConfig(srv.URL)
	cfg.MaxRuntimes = 1
	reg := client.NewRegistry(context.Background(), cfg, testDeps(t, srv.URL))
	t.Cleanup(func() { _ = reg.Close() })

	a, release, err := reg.Acquire("a")
	require.NoError(t, err)
	changes := a.Changes(context.Background())

	// Evicts "a" while a request still holds it.
	_, err = reg.Get("b")
	require.NoError(t, err)

	// Open change streams end so watchers move to a fresh runtime.
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, waitFor, tick)

	// The holder can still use the components until it releases.
	assert.NotPanics(t, func() { _ = a.Guard.Evaluate("/", access.VariantNavigation) })
	assert.NotNil(t, a.Store)

	release()
	assert.ErrorIs(t, a.Start(context.Background()), client.ErrRuntimeClosed)

	fresh, releaseFresh, err := reg.Acquire("a")
	require.NoError(t, err)
	t.Cleanup(releaseFresh)
	assert.NotSame(t, a, fresh)
}
