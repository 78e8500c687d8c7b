// Package session keeps the signed-in state of one client in step with the
// auth provider.
//
// A Manager listens to the provider's SIGNED_IN, TOKEN_REFRESHED and
// SIGNED_OUT events and, in parallel, fetches a persisted session on Start.
// Sign-in events schedule a debounced subscription refresh on the
// "session.refresh" timer, and resolve the user's profile. A sign-out runs
// the registered teardown hooks, which is how the subscription cache, the
// checkout bridge and the access guard return to their initial state.
//
//	m := session.New(authClient,
//	    session.WithRefresher(subscriptionCache),
//	    session.WithProfiles(profile.NewResolver(repo)),
//	    session.WithScheduler(sched),
//	)
//	m.OnTeardown(subscriptionCache.Reset)
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
//	defer m.Close()
package session
