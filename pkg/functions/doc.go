// Package functions is the HTTP client of the backend serverless functions
// (check-subscription, create-checkout, customer-portal, get-price) and
// holds their wire types, shared with the server side in svc/billing.
//
// Every call but get-price carries the session access token as bearer.
package functions
