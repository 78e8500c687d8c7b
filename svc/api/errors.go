package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/checkout"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/pricing"
	"github.com/dmitrymomot/fintrack/pkg/profile"
	"github.com/dmitrymomot/fintrack/pkg/session"
	"github.com/dmitrymomot/fintrack/pkg/validator"
)

var (
	ErrNoRuntime   = errors.New("client runtime unavailable")
	ErrInvalidBody = errors.New("invalid request body")
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusOf maps domain errors to HTTP statuses. The message of a 5xx is
// never shown to the client.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrInvalidBody), errors.Is(err, validator.ErrValidationFailed), errors.Is(err, profile.ErrEmptyDisplayName), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotSignedIn), errors.Is(err, checkout.ErrNoSession), auth.IsAuthError(err):
		return http.StatusUnauthorized
	case errors.Is(err, checkout.ErrCheckoutFailed), errors.Is(err, checkout.ErrPortalFailed), errors.Is(err, auth.ErrProviderError):
		return http.StatusBadGateway
	case errors.Is(err, pricing.ErrPriceUnavailable), errors.Is(err, ErrNoRuntime):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := statusOf(err)
	msg := firstLine(err)
	if status == http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", logger.Route(r.URL.Path), logger.Error(err))
		msg = http.StatusText(status)
	} else if status >= http.StatusBadGateway {
		log.WarnContext(r.Context(), "upstream failure", logger.Route(r.URL.Path), logger.Error(err))
	}
	resp := errorResponse{Error: msg}
	if ve := validator.Extract(err); ve != nil {
		resp.Error, resp.Fields = validator.ErrValidationFailed.Error(), ve.Fields()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16)).Decode(v); err != nil {
		return errors.Join(ErrInvalidBody, err)
	}
	return nil
}

// firstLine keeps the leading sentinel of a joined error.
func firstLine(err error) string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := joined.Unwrap(); len(errs) > 0 {
			return firstLine(errs[0])
		}
	}
	return err.Error()
}
