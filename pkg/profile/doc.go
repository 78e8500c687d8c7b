// Package profile resolves the application profile of a signed-in identity.
//
// The session manager calls Resolver.Resolve on every sign-in. When the
// profile cannot be created after a bounded number of attempts the manager
// raises its display-name flag and the user is asked for a name, which
// SetDisplayName stores.
package profile
