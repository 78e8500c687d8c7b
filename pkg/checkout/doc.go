// Package checkout bridges the client to the payment provider's checkout
// and billing portal.
//
// StartCheckout records an Attempt before sending the client away in the
// same window, so a reload after the provider redirects back can be
// recognised by ReturningFromCheckout. OpenBillingPortal either returns a
// portal link for a new tab or confirms a cancellation, after which the
// subscription is refreshed on the "checkout.refresh" timer.
package checkout
