// Package statemachine implements guarded finite-state machines.
//
// Transitions are registered per (state, event) pair and tried in
// registration order: the first transition whose guards all pass wins.
// This makes the package a fit for priority-ordered rule sets, where each
// rule is a guarded transition out of a common initial state and Resolve
// evaluates the rules without mutating the machine:
//
//	machine := statemachine.MustNew(Loading,
//	    statemachine.WithTransition(Loading, Denied, Evaluate, statemachine.WithGuard(noUser)),
//	    statemachine.WithTransition(Loading, Allowed, Evaluate),
//	)
//	next, err := machine.Resolve(ctx, Loading, Evaluate, input)
//
// Resolve never mutates the machine, so one machine can be shared across
// goroutines. Errors can be inspected with IsNoTransitionAvailableError and
// IsTransitionRejectedError.
package statemachine
