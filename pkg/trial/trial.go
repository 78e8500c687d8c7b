// Package trial computes the free-trial window of an identity.
//
// Evaluate is pure: it reads no clock and keeps no state, so callers sample
// "now" once and pass it in. This is the only place the trial length lives.
package trial

import (
	"time"

	"github.com/dmitrymomot/fintrack/pkg/subscription"
)

// Length is the fixed duration of the free trial.
const Length = 72 * time.Hour

const day = 24 * time.Hour

// Window is the trial period of one identity.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window that starts at createdAt.
func NewWindow(createdAt time.Time) Window {
	return Window{Start: createdAt, End: createdAt.Add(Length)}
}

// Result is the outcome of one evaluation.
type Result struct {
	// Applies is false for subscribed identities; Active and DaysRemaining
	// are then meaningless.
	Applies       bool
	Active        bool
	DaysRemaining int
	Window        Window
}

// Expired reports whether trial rules apply and the window has closed.
func (r Result) Expired() bool {
	return r.Applies && !r.Active
}

// Evaluate returns the trial state of an identity created at createdAt.
func Evaluate(createdAt time.Time, status subscription.Status, now time.Time) Result {
	w := NewWindow(createdAt)
	if status.Subscribed {
		return Result{Window: w}
	}

	return Result{
		Applies:       true,
		Active:        !now.After(w.End),
		DaysRemaining: daysRemaining(w.End.Sub(now)),
		Window:        w,
	}
}

func daysRemaining(left time.Duration) int {
	if left <= 0 {
		return 0
	}
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}
