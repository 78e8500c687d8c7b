package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/fintrack/pkg/config"
	"github.com/dmitrymomot/fintrack/pkg/pg"
)

type migrateConfig struct {
	App appConfig
	PG  pg.Config
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg migrateConfig
		if err := config.LoadWith(loaderFor(cmd), &cfg); err != nil {
			return err
		}
		log := newLogger(cfg.App)
		ctx := cmd.Context()

		pool, err := pg.Connect(ctx, cfg.PG)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
			return err
		}
		log.InfoContext(ctx, "migrations applied")
		return nil
	},
}
