package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/checkout"
	"github.com/dmitrymomot/fintrack/pkg/config"
	"github.com/dmitrymomot/fintrack/pkg/functions"
	"github.com/dmitrymomot/fintrack/pkg/httpserver"
	"github.com/dmitrymomot/fintrack/pkg/jwt"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/metrics"
	"github.com/dmitrymomot/fintrack/pkg/pg"
	"github.com/dmitrymomot/fintrack/pkg/pricing"
	"github.com/dmitrymomot/fintrack/pkg/profile"
	"github.com/dmitrymomot/fintrack/pkg/redis"
	"github.com/dmitrymomot/fintrack/pkg/requestid"
	"github.com/dmitrymomot/fintrack/svc/api"
	"github.com/dmitrymomot/fintrack/svc/billing"
	"github.com/dmitrymomot/fintrack/svc/client"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		l := loaderFor(cmd)

		var cfg serveConfig
		if err := config.LoadWith(l, &cfg); err != nil {
			return err
		}
		log := newLogger(cfg.App)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		skip, _ := cmd.Flags().GetBool("skip-migrations")
		if err := serve(ctx, l, cfg, skip, log); err != nil {
			log.ErrorContext(ctx, "server stopped with error", logger.Error(err))
			return err
		}
		log.InfoContext(ctx, "server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("skip-migrations", false, "do not apply database migrations on start")
}

func serve(ctx context.Context, l *config.Loader, cfg serveConfig, skipMigrations bool, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if !skipMigrations {
		if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
			return err
		}
	}

	health := map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)}

	var (
		sessions auth.SessionStore      = auth.NewMemoryStore()
		attempts checkout.AttemptStore = checkout.NewMemoryAttemptStore()
	)
	if cfg.Redis.ConnectionURL != "" {
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func(rdb *goredis.Client) {
			if err := rdb.Close(); err != nil {
				log.ErrorContext(ctx, "failed to close redis client", logger.Error(err))
			}
		}(rdb)

		sessions = auth.NewRedisStore(rdb, cfg.Redis.KeyPrefix+"session:", cfg.Client.SessionTTL)
		attempts = checkout.NewRedisAttemptStore(rdb, cfg.Redis.KeyPrefix+"checkout:")
		health["redis"] = redis.Healthcheck(rdb)
	} else {
		log.WarnContext(ctx, "REDIS_URL not set, sessions are kept in memory")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	fns, err := functions.NewClient(cfg.Client.Functions, functions.WithHTTPClient(&http.Client{
		Timeout:   cfg.Client.Functions.Timeout,
		Transport: requestid.Transport(nil),
	}))
	if err != nil {
		return err
	}
	prices := pricing.NewClient(fns, pricing.WithTTL(cfg.Pricing.TTL))

	registry := client.NewRegistry(ctx, cfg.Client, client.Deps{
		Functions: fns,
		Pricing:   prices,
		Profiles:  profile.NewResolver(profile.NewPGRepository(pool), profile.WithLogger(log)),
		Sessions:  sessions,
		Attempts:  attempts,
		Metrics:   collector,
		Logger:    log,
	})

	var billingHandler http.Handler
	if cfg.App.BillingEnabled {
		billingHandler, err = newBillingHandler(l, pool, cfg.Client.Auth, log)
		if err != nil {
			return err
		}
	}

	var gatherer prometheus.Gatherer
	if cfg.App.MetricsAddr == "" {
		gatherer = reg
	}

	router, err := api.NewRouter(cfg.API, api.Deps{
		Registry: registry,
		Pricing:  prices,
		Metrics:  collector,
		Gatherer: gatherer,
		Health:   health,
		Billing:  billingHandler,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStopHook(func() {
			if err := registry.Close(); err != nil {
				log.Error("failed to close client runtimes", logger.Error(err))
			}
		}),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, router)
	})
	if cfg.App.MetricsAddr != "" {
		metricsCfg := cfg.HTTP
		metricsCfg.Addr = cfg.App.MetricsAddr
		metricsSrv := httpserver.New(metricsCfg, httpserver.WithLogger(log.With(slog.String("listener", "metrics"))))
		g.Go(func() error {
			return metricsSrv.Run(ctx, metricsRouter(reg))
		})
	}
	return g.Wait()
}

func newBillingHandler(l *config.Loader, pool *pgxpool.Pool, authCfg auth.Config, log *slog.Logger) (http.Handler, error) {
	cfg, paddleCfg, err := loadBilling(l)
	if err != nil {
		return nil, err
	}
	if authCfg.JWTSecret == "" {
		return nil, errors.New("SUPABASE_JWT_SECRET is required to serve the billing functions")
	}
	tokens, err := jwt.NewFromString(authCfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	provider, err := billing.NewPaddleProvider(paddleCfg)
	if err != nil {
		return nil, err
	}
	svc := billing.NewService(cfg, billing.NewPGStore(pool), provider, billing.WithLogger(log))
	return billing.NewHandler(svc, tokens, log), nil
}

func metricsRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler(gatherer))
	return r
}
