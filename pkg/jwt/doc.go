// Package jwt reads and verifies the HS256 access tokens issued by the auth
// provider.
//
// Servers holding the project secret use Service.Parse (and Middleware) to
// authenticate bearer requests; clients use ParseUnverified to learn a
// token's expiry.
package jwt
