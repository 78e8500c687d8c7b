// Package billing implements the backend functions that the client reaches
// through pkg/functions: check-subscription, create-checkout,
// customer-portal and get-price, plus the Paddle webhook that keeps the
// subscribers table current.
//
// Subscribers are stored in Postgres (PGStore) and entitlement is derived
// from the last webhook the provider sent. A subscription whose period end
// has passed reads as unsubscribed even if the cancellation webhook has not
// arrived.
//
//	svc := billing.NewService(cfg, billing.NewPGStore(pool), provider)
//	r.Mount("/functions/v1", billing.NewHandler(svc, tokens, log))
package billing
