package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fintrack/pkg/metrics"
)

func TestCollector_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SubscriptionCheck("subscribed", 120*time.Millisecond)
	c.SubscriptionCheck("admin", 0)
	c.SubscriptionCheck("admin", 0)
	c.AccessDecision("allow")
	c.ConnectivityTransition(false)
	c.ConnectivityTransition(true)
	c.CheckoutCall("cancel", "ok")
	c.RuntimeOpened()
	c.RuntimeOpened()
	c.RuntimeClosed()

	expected := `
# HELP fintrack_subscription_checks_total Subscription checks by outcome.
# TYPE fintrack_subscription_checks_total counter
fintrack_subscription_checks_total{outcome="admin"} 2
fintrack_subscription_checks_total{outcome="subscribed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fintrack_subscription_checks_total"))

	n, err := testutil.GatherAndCount(reg, "fintrack_connectivity_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(reg, "fintrack_checkout_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHandler_ServesMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.HTTPRequest(http.MethodGet, "/api/access", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `fintrack_http_requests_total{method="GET",route="/api/access",status="200"} 1`)
}
