package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fintrack/pkg/config"
	"github.com/dmitrymomot/fintrack/pkg/metrics"
)

func TestCommands(t *testing.T) {
	for _, name := range []string{"serve", "migrate", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	flag := serveCmd.Flags().Lookup("skip-migrations")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("env-file"))
}

func TestServeConfigDefaults(t *testing.T) {
	t.Setenv("PG_CONN_URL", "postgres://localhost/fintrack")
	t.Setenv("SUPABASE_URL", "http://localhost:54321")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("CLIENT_COOKIE_SECRETS", "0123456789abcdef0123456789abcdef")

	var cfg serveConfig
	require.NoError(t, config.LoadWith(loaderFor(rootCmd), &cfg))
	assert.True(t, cfg.App.BillingEnabled)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://localhost/fintrack", cfg.PG.ConnectionString)
	assert.Equal(t, 1024, cfg.Client.MaxRuntimes)
	assert.Equal(t, ":9090", cfg.App.MetricsAddr)
}

func TestMetricsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RuntimeOpened()
	h := metricsRouter(reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fintrack_")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
