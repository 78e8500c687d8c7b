// Package subscription caches the entitlement of the signed-in identity.
//
// Cache.Check asks a Checker (the check-subscription backend function) for
// the current Status using the session's access token as bearer. Calls are
// mutually exclusive, bounded by a timeout, and retried once per failure
// after a fixed delay. After Config.MaxConsecutiveFailures consecutive
// failures no further retries are scheduled and Stale reports true; the last
// known status is kept and the next natural trigger (sign-in, manual
// refresh, post-cancellation refresh) tries again.
//
// Administrative identities never reach the Checker: they are granted the
// Enterprise tier with a far-future renewal date.
//
// Errors never escape Check. They are logged and counted.
package subscription
