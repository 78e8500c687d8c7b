package subscription

import "errors"

var (
	ErrCheckFailed  = errors.New("subscription check failed")
	ErrCheckTimeout = errors.New("subscription check timed out")
)
