package statemachine

import (
	"context"
	"sync"
)

// SimpleStateMachine is an in-memory StateMachine guarded by a RWMutex.
type SimpleStateMachine struct {
	transitions map[string]map[string][]Transition
	mu          sync.RWMutex
}

func newSimpleStateMachine() *SimpleStateMachine {
	return &SimpleStateMachine{
		transitions: make(map[string]map[string][]Transition),
	}
}

func (sm *SimpleStateMachine) AddTransition(from, to State, event Event, guards []Guard) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.transitions[from.Name()]; !ok {
		sm.transitions[from.Name()] = make(map[string][]Transition)
	}

	sm.transitions[from.Name()][event.Name()] = append(sm.transitions[from.Name()][event.Name()], Transition{
		From:   from,
		To:     to,
		Event:  event,
		Guards: guards,
	})
	return nil
}

func (sm *SimpleStateMachine) Resolve(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil || event == nil {
		return nil, ErrInvalidEvent
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	t, err := sm.match(ctx, from, event, data)
	if err != nil {
		return nil, err
	}
	return t.To, nil
}

// match must be called with sm.mu held.
func (sm *SimpleStateMachine) match(ctx context.Context, from State, event Event, data any) (*Transition, error) {
	transitions := sm.transitions[from.Name()][event.Name()]
	if len(transitions) == 0 {
		return nil, NewErrNoTransitionAvailable(from.Name(), event.Name())
	}

	for i, t := range transitions {
		if guardsPass(ctx, t.Guards, from, event, data) {
			return &transitions[i], nil
		}
	}

	return nil, NewErrTransitionRejected(from.Name(), event.Name())
}

func guardsPass(ctx context.Context, guards []Guard, from State, event Event, data any) bool {
	for _, guard := range guards {
		if guard != nil && !guard(ctx, from, event, data) {
			return false
		}
	}
	return true
}
