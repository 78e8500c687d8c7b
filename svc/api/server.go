package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/fintrack/pkg/clientip"
	"github.com/dmitrymomot/fintrack/pkg/cookie"
	"github.com/dmitrymomot/fintrack/pkg/httpserver"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/metrics"
	"github.com/dmitrymomot/fintrack/pkg/pricing"
	"github.com/dmitrymomot/fintrack/pkg/ratelimit"
	"github.com/dmitrymomot/fintrack/pkg/requestid"
	"github.com/dmitrymomot/fintrack/svc/client"
)

// Deps are the collaborators of the API router.
type Deps struct {
	Registry *client.Registry
	Pricing  *pricing.Client
	// Metrics and Gatherer are optional; /metrics is served when Gatherer
	// is set.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	// Health checks served on /healthz.
	Health map[string]httpserver.Check
	// Billing, when set, is mounted at /functions/v1.
	Billing http.Handler
	Logger  *slog.Logger
}

// Server is the backend-for-frontend of the web client. Every /api route
// runs against the runtime of the caller's client cookie.
type Server struct {
	cfg      Config
	registry *client.Registry
	pricing  *pricing.Client
	metrics  *metrics.Collector
	cookies  *cookie.ClientID
	ips      clientip.Resolver
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config, deps Deps) (http.Handler, error) {
	cookies, err := cookie.NewClientID(cfg.Cookie)
	if err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		cfg:      cfg,
		registry: deps.Registry,
		pricing:  deps.Pricing,
		metrics:  deps.Metrics,
		cookies:  cookies,
		ips:      clientip.New(cfg.TrustedIPHeaders...),
		limiter:  ratelimit.New(cfg.SignInLimit),
		logger:   log.With(logger.Component("api")),
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(s.ips.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", requestid.Header},
		ExposedHeaders:   []string{requestid.Header, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", httpserver.HealthHandler(s.logger, deps.Health))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	if deps.Billing != nil {
		r.Mount("/functions/v1", deps.Billing)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/price", s.price)

		r.Group(func(r chi.Router) {
			r.Use(s.withRuntime)

			r.Get("/session", s.session)
			r.With(ratelimit.Middleware(s.limiter, s.signInKey)).Post("/auth/sign-in", s.signIn)
			r.With(ratelimit.Middleware(s.limiter, s.signInKey)).Post("/auth/sign-up", s.signUp)
			r.Post("/auth/sign-out", s.signOut)
			r.Put("/profile/display-name", s.setDisplayName)

			r.Get("/access", s.evaluateAccess)
			r.Get("/access/watch", s.watchAccess)

			r.Get("/subscription", s.subscriptionStatus)
			r.Post("/subscription/refresh", s.refreshSubscription)
			r.Post("/checkout", s.startCheckout)
			r.Post("/checkout/return", s.returnFromCheckout)
			r.Post("/billing/portal", s.billingPortal)

			r.Get("/connectivity", s.connectivity)
			r.Post("/connectivity/network", s.networkChanged)
			r.Post("/connectivity/retry", s.retryConnectivity)
		})
	})

	return r, nil
}

type runtimeKey struct{}

// withRuntime binds the request to the runtime of its client cookie,
// issuing a cookie on first contact.
func (s *Server) withRuntime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := s.cookies.Ensure(w, r)
		rt, release, err := s.registry.Acquire(id)
		if err != nil {
			writeError(w, r, s.logger, errors.Join(ErrNoRuntime, err))
			return
		}
		defer release()
		ctx := context.WithValue(r.Context(), runtimeKey{}, rt)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func runtimeFrom(ctx context.Context) *client.Runtime {
	rt, _ := ctx.Value(runtimeKey{}).(*client.Runtime)
	return rt
}

func (s *Server) signInKey(r *http.Request) string {
	return clientip.FromContext(r.Context())
}

// observe records request metrics under the matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequest(r.Method, route, status, time.Since(start))
	})
}
