package checkout

import "errors"

var (
	ErrNoSession      = errors.New("checkout requires a signed-in session")
	ErrCheckoutFailed = errors.New("could not start checkout")
	ErrPortalFailed   = errors.New("could not open billing portal")
	ErrNoAttempt      = errors.New("no checkout attempt")
)
