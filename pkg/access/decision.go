package access

import (
	"context"
	"time"

	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/statemachine"
	"github.com/dmitrymomot/fintrack/pkg/subscription"
	"github.com/dmitrymomot/fintrack/pkg/trial"
)

// State is the outcome of an access evaluation.
type State string

const (
	StateLoading           State = "loading"
	StateAllow             State = "allow"
	StateRedirectToAuth    State = "redirect_to_auth"
	StateRedirectToProfile State = "redirect_to_profile"
	StateBlockWithOverlay  State = "block_with_overlay"
)

// Name implements statemachine.State.
func (s State) Name() string { return string(s) }

// Input is everything one evaluation depends on.
type Input struct {
	Route   string
	Variant Variant
	Routes  Routes

	// Loading is the session store's loading flag; Elapsed is the time
	// since the guard started waiting for it.
	Loading        bool
	Elapsed        time.Duration
	LoadingTimeout time.Duration

	Identity *auth.Identity
	Status   subscription.Status
	Now      time.Time
}

// Notice is the non-blocking trial countdown shown on allowed routes.
type Notice struct {
	DaysRemaining int       `json:"days_remaining"`
	EndsAt        time.Time `json:"ends_at"`
}

// Decision is the result of Decide.
type Decision struct {
	State    State        `json:"state"`
	Route    string       `json:"route"`
	Policy   string       `json:"policy"`
	Redirect string       `json:"redirect,omitempty"`
	Trial    trial.Result `json:"-"`
	Notice   *Notice      `json:"notice,omitempty"`
}

const evaluate = statemachine.StringEvent("evaluate")

type evaluation struct {
	in     Input
	policy Policy
	trial  trial.Result
}

func when(pred func(e *evaluation) bool) statemachine.TransitionOption {
	return statemachine.WithGuard(func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		e, ok := data.(*evaluation)
		return ok && pred(e)
	})
}

// rules lists the transitions out of StateLoading in priority order; the
// first whose guard passes decides.
var rules = statemachine.MustNew(StateLoading,
	// Waiting for the session, within the timeout.
	statemachine.WithTransition(StateLoading, StateLoading, evaluate,
		when(func(e *evaluation) bool { return e.in.Loading && e.in.Elapsed < e.in.LoadingTimeout })),
	// Never strand the user on a spinner.
	statemachine.WithTransition(StateLoading, StateRedirectToAuth, evaluate,
		when(func(e *evaluation) bool { return e.in.Loading })),
	statemachine.WithTransition(StateLoading, StateRedirectToAuth, evaluate,
		when(func(e *evaluation) bool { return e.in.Identity == nil })),
	statemachine.WithTransition(StateLoading, StateAllow, evaluate,
		when(func(e *evaluation) bool { return e.policy != PolicyRequireEntitlement })),
	statemachine.WithTransition(StateLoading, StateAllow, evaluate,
		when(func(e *evaluation) bool { return e.in.Identity.IsAdministrative() })),
	statemachine.WithTransition(StateLoading, StateAllow, evaluate,
		when(func(e *evaluation) bool { return e.in.Status.Subscribed })),
	statemachine.WithTransition(StateLoading, StateAllow, evaluate,
		when(func(e *evaluation) bool { return e.trial.Active })),
	// Trial expired.
	statemachine.WithTransition(StateLoading, StateRedirectToProfile, evaluate,
		when(func(e *evaluation) bool { return e.in.Variant == VariantNavigation })),
	statemachine.WithTransition(StateLoading, StateBlockWithOverlay, evaluate,
		when(func(e *evaluation) bool { return e.in.Routes.Overlay(e.in.Route) })),
	statemachine.WithTransition(StateLoading, StateAllow, evaluate),
)

// Decide evaluates the access rules for one navigation. It is pure: the
// same Input always yields the same Decision.
func Decide(in Input) Decision {
	policy := in.Routes.Policy(in.Route)
	d := Decision{State: StateAllow, Route: in.Route, Policy: policy.String()}
	if policy == PolicyNone {
		return d
	}

	e := &evaluation{in: in, policy: policy}
	if in.Identity != nil && !in.Identity.IsAdministrative() {
		e.trial = trial.Evaluate(in.Identity.CreatedAt, in.Status, in.Now)
	}
	d.Trial = e.trial

	to, err := rules.Resolve(context.Background(), StateLoading, evaluate, e)
	if err != nil {
		// Unreachable: the last rule has no guard.
		d.State = StateRedirectToAuth
	} else {
		d.State = to.(State)
	}

	switch d.State {
	case StateRedirectToAuth:
		d.Redirect = AuthRoute
	case StateRedirectToProfile:
		d.Redirect = ProfileRoute
	case StateAllow:
		if policy == PolicyRequireEntitlement && e.trial.Applies && e.trial.Active {
			d.Notice = &Notice{DaysRemaining: e.trial.DaysRemaining, EndsAt: e.trial.Window.End}
		}
	}
	return d
}
