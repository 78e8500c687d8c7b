package functions

import (
	"errors"
	"fmt"
)

var (
	ErrMissingURL     = errors.New("functions base URL is required")
	ErrMissingToken   = errors.New("bearer token is required")
	ErrRequestFailed  = errors.New("function request failed")
	ErrInvalidPayload = errors.New("invalid function response")
)

// HTTPError is a non-2xx response from a function.
type HTTPError struct {
	Function string
	Status   int
	Message  string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("function %s responded %d: %s", e.Function, e.Status, e.Message)
}
