// Package access decides whether a route renders, redirects or is blocked.
//
// Routes carry one of three policies: PolicyNone, PolicyRequireAuth and
// PolicyRequireEntitlement. Decide applies the rules in priority order:
//
//  1. session still loading and the timeout not reached: StateLoading
//  2. session still loading past the timeout: StateRedirectToAuth
//  3. no identity: StateRedirectToAuth
//  4. route does not require entitlement: StateAllow
//  5. administrative identity: StateAllow
//  6. subscribed: StateAllow
//  7. trial active: StateAllow with a Notice
//  8. otherwise StateRedirectToProfile, or StateBlockWithOverlay on the
//     overlay routes for VariantOverlay
//
// Guard binds Decide to a session store and a subscription cache and keeps
// the loading timeout. Guard.Watch re-evaluates on dependency changes and on
// a polling interval; it only reads the cached subscription status.
package access
