package statemachine

import (
	"context"
)

// State is a node of the machine. Implementations are compared by Name.
type State interface {
	Name() string
}

// Event triggers transitions out of a state.
type Event interface {
	Name() string
}

// Guard vetoes a transition. Guards are evaluated against the data passed
// to Resolve.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition is one edge of the machine. Transitions sharing the same
// source state and event are tried in registration order; the first one
// whose guards all pass wins.
type Transition struct {
	From   State
	To     State
	Event  Event
	Guards []Guard // All must pass for transition to proceed
}

// StateMachine is a read-only table of guarded transitions.
type StateMachine interface {
	AddTransition(from, to State, event Event, guards []Guard) error
	// Resolve reports the state reached from the given state on event.
	Resolve(ctx context.Context, from State, event Event, data any) (State, error)
}

// StringState is a ready-made State backed by a string.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent is a ready-made Event backed by a string.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}
