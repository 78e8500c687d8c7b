package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/subscription"
	"github.com/dmitrymomot/fintrack/pkg/trial"
	"github.com/dmitrymomot/fintrack/pkg/validator"
)

type userView struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"created_at"`
	Administrator bool      `json:"administrator"`
}

type trialView struct {
	Active        bool      `json:"active"`
	DaysRemaining int       `json:"days_remaining"`
	EndsAt        time.Time `json:"ends_at"`
}

type sessionResponse struct {
	Loading           bool                `json:"loading"`
	User              *userView           `json:"user,omitempty"`
	DisplayName       string              `json:"display_name,omitempty"`
	NeedsDisplayName  bool                `json:"needs_display_name"`
	Subscription      subscription.Status `json:"subscription"`
	SubscriptionStale bool                `json:"subscription_stale"`
	Trial             *trialView          `json:"trial,omitempty"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionView(r))
}

func (s *Server) sessionView(r *http.Request) sessionResponse {
	rt := runtimeFrom(r.Context())
	st := rt.Store.State()

	resp := sessionResponse{
		Loading:           st.Loading,
		NeedsDisplayName:  st.NeedsDisplayName,
		Subscription:      rt.Subscription.Status(),
		SubscriptionStale: rt.Subscription.Stale(),
	}
	if st.Profile != nil {
		resp.DisplayName = st.Profile.DisplayName
	}

	id := st.User()
	if id == nil {
		return resp
	}
	resp.User = &userView{ID: id.ID, Email: id.Email, CreatedAt: id.CreatedAt, Administrator: id.IsAdministrative()}
	if id.IsAdministrative() {
		resp.Subscription = subscription.AdminStatus()
		return resp
	}
	if tr := trial.Evaluate(id.CreatedAt, resp.Subscription, rt.Now()); tr.Applies {
		resp.Trial = &trialView{Active: tr.Active, DaysRemaining: tr.DaysRemaining, EndsAt: tr.Window.End}
	}
	return resp
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

const (
	minPasswordLen    = 6
	maxDisplayNameLen = 80
)

// validate checks the credentials. Password strength is only enforced on
// sign-up; the provider has the final word either way.
func (c credentials) validate(signUp bool) error {
	return validator.Apply(
		validator.Required("email", c.Email),
		validator.Email("email", c.Email),
		validator.Required("password", c.Password),
		validator.When(signUp, validator.MinLen("password", c.Password, minPasswordLen)),
		validator.MaxLen("display_name", strings.TrimSpace(c.DisplayName), maxDisplayNameLen),
	)
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := req.validate(false); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	rt := runtimeFrom(r.Context())
	if _, err := rt.Store.SignIn(r.Context(), strings.TrimSpace(req.Email), req.Password); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(r))
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := req.validate(true); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	var metadata map[string]any
	if name := strings.TrimSpace(req.DisplayName); name != "" {
		metadata = map[string]any{"display_name": name}
	}

	rt := runtimeFrom(r.Context())
	_, err := rt.Store.SignUp(r.Context(), strings.TrimSpace(req.Email), req.Password, metadata)
	if errors.Is(err, auth.ErrConfirmationPending) {
		writeJSON(w, http.StatusAccepted, map[string]bool{"confirmation_pending": true})
		return
	}
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.sessionView(r))
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	rt := runtimeFrom(r.Context())
	if err := rt.Store.SignOut(r.Context()); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setDisplayName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	if err := validator.Apply(
		validator.Required("display_name", name),
		validator.MaxLen("display_name", name, maxDisplayNameLen),
	); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	rt := runtimeFrom(r.Context())
	if _, err := rt.Store.SetDisplayName(r.Context(), name); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(r))
}
