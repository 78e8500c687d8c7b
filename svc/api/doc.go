// Package api is the HTTP backend-for-frontend of the web client.
//
// Each browser carries a signed client cookie that selects its runtime in
// the client registry. Route guards are evaluated server side: the client
// asks /api/access for a one-off decision or subscribes to
// /api/access/watch, a server-sent event stream that pushes a new decision
// whenever the session, the subscription status or connectivity change.
// Sign-in and sign-up are rate limited per client address.
package api
