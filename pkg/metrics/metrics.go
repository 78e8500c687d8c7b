// Package metrics exposes the runtime's Prometheus collectors.
//
// Collector implements the observer interfaces of the subscription, access,
// connectivity and checkout packages, so every client runtime reports into
// one registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fintrack"

// Collector records domain and HTTP metrics.
type Collector struct {
	subscriptionChecks  *prometheus.CounterVec
	subscriptionLatency prometheus.Histogram
	accessDecisions     *prometheus.CounterVec
	connectivity        *prometheus.CounterVec
	checkoutCalls       *prometheus.CounterVec
	activeRuntimes      prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpLatency         *prometheus.HistogramVec
}

// NewCollector registers the collectors on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		subscriptionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_checks_total",
			Help:      "Subscription checks by outcome.",
		}, []string{"outcome"}),
		subscriptionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "subscription_check_duration_seconds",
			Help:      "Latency of remote subscription checks.",
			Buckets:   prometheus.DefBuckets,
		}),
		accessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_decisions_total",
			Help:      "Access decisions by resulting state.",
		}, []string{"state"}),
		connectivity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connectivity_transitions_total",
			Help:      "Connectivity transitions by direction.",
		}, []string{"to"}),
		checkoutCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_calls_total",
			Help:      "Checkout and portal calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		activeRuntimes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_runtimes",
			Help:      "Client runtimes currently held by the registry.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.subscriptionChecks,
		c.subscriptionLatency,
		c.accessDecisions,
		c.connectivity,
		c.checkoutCalls,
		c.activeRuntimes,
		c.httpRequests,
		c.httpLatency,
	)
	return c
}

// SubscriptionCheck records a completed check. Admin short-circuits carry
// no latency.
func (c *Collector) SubscriptionCheck(outcome string, d time.Duration) {
	c.subscriptionChecks.WithLabelValues(outcome).Inc()
	if d > 0 {
		c.subscriptionLatency.Observe(d.Seconds())
	}
}

func (c *Collector) AccessDecision(state string) {
	c.accessDecisions.WithLabelValues(state).Inc()
}

func (c *Collector) ConnectivityTransition(online bool) {
	to := "offline"
	if online {
		to = "online"
	}
	c.connectivity.WithLabelValues(to).Inc()
}

func (c *Collector) CheckoutCall(op, outcome string) {
	c.checkoutCalls.WithLabelValues(op, outcome).Inc()
}

// RuntimeOpened and RuntimeClosed track the client runtime registry size.
func (c *Collector) RuntimeOpened() { c.activeRuntimes.Inc() }

func (c *Collector) RuntimeClosed() { c.activeRuntimes.Dec() }

func (c *Collector) HTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
