// Package httpserver runs the API's http.Server with graceful shutdown and
// exposes a JSON health handler.
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log), httpserver.WithStopHook(registry.Close))
//	err := srv.Run(ctx, router)
//
// Run returns when ctx is cancelled; errors are wrapped with ErrStart or
// ErrShutdown.
package httpserver
