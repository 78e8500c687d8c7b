package api

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/fintrack/pkg/subscription"
)

type subscriptionResponse struct {
	subscription.Status
	Stale       bool       `json:"stale"`
	Failures    int        `json:"failures"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	Checking    bool       `json:"checking"`
}

func (s *Server) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	c := runtimeFrom(r.Context()).Subscription
	resp := subscriptionResponse{
		Status:   c.Status(),
		Stale:    c.Stale(),
		Failures: c.Failures(),
		Checking: c.InFlight(),
	}
	if t := c.LastChecked(); !t.IsZero() {
		resp.LastChecked = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

// refreshSubscription runs a check in the background; the client watches
// /api/access/watch or polls /api/subscription for the outcome.
func (s *Server) refreshSubscription(w http.ResponseWriter, r *http.Request) {
	runtimeFrom(r.Context()).Subscription.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) startCheckout(w http.ResponseWriter, r *http.Request) {
	nav, err := runtimeFrom(r.Context()).Checkout.StartCheckout(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nav)
}

func (s *Server) returnFromCheckout(w http.ResponseWriter, r *http.Request) {
	a, ok := runtimeFrom(r.Context()).Checkout.ReturningFromCheckout(r.Context())
	resp := map[string]any{"returning": ok}
	if ok {
		resp["started_at"] = a.StartedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) billingPortal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cancel bool `json:"cancel"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, s.logger, err)
			return
		}
	}

	res, err := runtimeFrom(r.Context()).Checkout.OpenBillingPortal(r.Context(), req.Cancel)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) price(w http.ResponseWriter, r *http.Request) {
	p, err := s.pricing.Price(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
