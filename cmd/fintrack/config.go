package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/fintrack/pkg/config"
	"github.com/dmitrymomot/fintrack/pkg/httpserver"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/pg"
	"github.com/dmitrymomot/fintrack/pkg/pricing"
	"github.com/dmitrymomot/fintrack/pkg/redis"
	"github.com/dmitrymomot/fintrack/pkg/requestid"
	"github.com/dmitrymomot/fintrack/svc/api"
	"github.com/dmitrymomot/fintrack/svc/billing"
	"github.com/dmitrymomot/fintrack/svc/client"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"APP_NAME" envDefault:"fintrack"`
	// BillingEnabled mounts the billing functions on /functions/v1.
	BillingEnabled bool `env:"BILLING_ENABLED" envDefault:"true"`
	// MetricsAddr serves /metrics on its own listener; empty serves it on
	// the API router instead.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
}

type serveConfig struct {
	App     appConfig
	HTTP    httpserver.Config
	PG      pg.Config
	Redis   redis.Config
	Client  client.Config
	API     api.Config
	Pricing pricing.Config
}

func loaderFor(cmd *cobra.Command) *config.Loader {
	files, _ := cmd.Flags().GetStringSlice("env-file")
	return config.NewLoader(files...)
}

func newLogger(app appConfig) *slog.Logger {
	log := logger.New(
		logger.WithEnvironment(app.Env, app.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)
	return log
}

func loadBilling(l *config.Loader) (billing.Config, billing.PaddleConfig, error) {
	var (
		cfg    billing.Config
		paddle billing.PaddleConfig
	)
	if err := config.LoadWith(l, &cfg); err != nil {
		return cfg, paddle, err
	}
	if err := config.LoadWith(l, &paddle); err != nil {
		return cfg, paddle, err
	}
	return cfg, paddle, nil
}
