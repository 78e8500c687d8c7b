package functions

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Function names under {base}/functions/v1/.
const (
	CheckSubscriptionFn = "check-subscription"
	CreateCheckoutFn    = "create-checkout"
	CustomerPortalFn    = "customer-portal"
	GetPriceFn          = "get-price"
)

// ActionCancel asks the portal function to cancel instead of returning a
// portal URL.
const ActionCancel = "cancel"

// CheckoutResponse is returned by create-checkout.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// PortalRequest is the optional body of customer-portal.
type PortalRequest struct {
	Action string `json:"action,omitempty"`
}

// PortalResponse carries either a portal URL or a cancellation outcome.
type PortalResponse struct {
	URL     string `json:"url,omitempty"`
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// IsCancellation reports whether the response confirms a cancellation
// rather than a portal link.
func (r PortalResponse) IsCancellation() bool {
	return r.URL == ""
}

// Price is returned by get-price.
type Price struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Formatted string          `json:"formatted"`
}

// ErrorResponse is the body of every non-2xx function response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MarshalJSON writes Amount as a JSON number.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount    json.Number `json:"amount"`
		Currency  string      `json:"currency"`
		Formatted string      `json:"formatted"`
	}{
		Amount:    json.Number(p.Amount.String()),
		Currency:  p.Currency,
		Formatted: p.Formatted,
	})
}
