// Package pg connects to PostgreSQL through pgx/v5 and applies the schema
// with goose.
//
// The schema is small: a profiles table keyed by identity id (display name
// for the profile resolver) and a subscribers table mirrored from the
// payment provider's webhooks (read by the check-subscription function).
// Both migrations are embedded; PG_MIGRATIONS_PATH points Migrate at a
// directory on disk instead.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//
// Healthcheck adapts the pool to the readiness probe of httpserver.
package pg
