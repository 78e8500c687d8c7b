package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/fintrack/pkg/functions"
	"github.com/dmitrymomot/fintrack/pkg/jwt"
	"github.com/dmitrymomot/fintrack/pkg/logger"
)

// WebhookPath receives Paddle notifications.
const WebhookPath = "/paddle-webhook"

// Handler serves the functions under /functions/v1/.
type Handler struct {
	svc      *Service
	provider Provider
	log      *slog.Logger
}

// NewHandler wires the function routes. Every route except get-price and
// the webhook requires a bearer token signed by tokens.
func NewHandler(svc *Service, tokens *jwt.Service, log *slog.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{svc: svc, provider: svc.provider, log: log.With(logger.Component("billing.http"))}

	r := chi.NewRouter()
	r.Get("/"+functions.GetPriceFn, h.price)
	r.Post(WebhookPath, h.webhook)
	r.Group(func(r chi.Router) {
		r.Use(jwt.Middleware(tokens))
		r.Post("/"+functions.CheckSubscriptionFn, h.checkSubscription)
		r.Post("/"+functions.CreateCheckoutFn, h.createCheckout)
		r.Post("/"+functions.CustomerPortalFn, h.customerPortal)
	})
	return r
}

func (h *Handler) checkSubscription(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.svc.CheckSubscription(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp, err := h.svc.CreateCheckout(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) customerPortal(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req functions.PortalRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, functions.ErrorResponse{Error: "invalid request body"})
		return
	}

	resp, err := h.svc.CustomerPortal(r.Context(), c, req.Action == functions.ActionCancel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) price(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Price(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ev, err := h.provider.ParseWebhook(r)
	if err != nil {
		h.log.WarnContext(r.Context(), "rejected webhook", logger.Error(err))
		writeJSON(w, http.StatusUnauthorized, functions.ErrorResponse{Error: ErrInvalidWebhook.Error()})
		return
	}
	if err := h.svc.HandleWebhook(r.Context(), ev); err != nil && !errors.Is(err, ErrUnknownSubscriber) {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	switch {
	case errors.Is(err, ErrInvalidCaller):
		status, msg = http.StatusUnauthorized, ErrInvalidCaller.Error()
	case errors.Is(err, ErrNoSubscription):
		status, msg = http.StatusNotFound, ErrNoSubscription.Error()
	case errors.Is(err, ErrProvider):
		status, msg = http.StatusBadGateway, ErrProvider.Error()
	}
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "function failed", logger.Route(r.URL.Path), logger.Error(err))
	}
	writeJSON(w, status, functions.ErrorResponse{Error: msg})
}

func caller(r *http.Request) (Caller, error) {
	claims, ok := jwt.GetClaims(r.Context())
	if !ok {
		return Caller{}, ErrInvalidCaller
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Caller{}, errors.Join(ErrInvalidCaller, err)
	}
	return Caller{UserID: id, Email: claims.Email}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
