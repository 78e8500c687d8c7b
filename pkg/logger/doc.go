// Package logger builds *slog.Logger instances for fintrack components.
//
// New creates a logger configured by functional options and wraps its handler
// with LogHandlerDecorator, which pulls request-scoped values (request id,
// client id) out of context.Context on every record.
//
//	log := logger.New(
//		logger.WithEnvironment(os.Getenv("APP_ENV"), "fintrack"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "subscription checked", logger.UserID(id), logger.Duration(d))
//
// Attribute helpers in attr.go keep key names consistent across packages.
// Components that accept an optional logger default to Nop.
package logger
