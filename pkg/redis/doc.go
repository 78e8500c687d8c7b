// Package redis connects to Redis and provides a small typed JSON store on
// top of go-redis.
//
// Connect retries the initial ping according to Config. JSONStore backs the
// persisted auth sessions and checkout attempts of client runtimes so that
// they survive a restart of the API process:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	sessions := redis.NewJSONStore[auth.Session](client, cfg.KeyPrefix+"session:")
//
// Healthcheck adapts a client to the readiness probe of httpserver.
package redis
