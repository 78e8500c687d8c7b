package statemachine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fintrack/pkg/statemachine"
)

const (
	pending  = statemachine.StringState("pending")
	accepted = statemachine.StringState("accepted")
	rejected = statemachine.StringState("rejected")

	decide = statemachine.StringEvent("decide")
	other  = statemachine.StringEvent("other")
)

func isTrue(ctx context.Context, from statemachine.State, event statemachine.Event, data any) bool {
	v, ok := data.(bool)
	return ok && v
}

func TestStateMachine_ResolveErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("undefined event", func(t *testing.T) {
		t.Parallel()
		sm := statemachine.MustNew(pending,
			statemachine.WithTransition(pending, accepted, decide),
		)
		_, err := sm.Resolve(ctx, pending, other, nil)
		assert.True(t, statemachine.IsNoTransitionAvailableError(err))
	})

	t.Run("guard rejection", func(t *testing.T) {
		t.Parallel()
		sm := statemachine.MustNew(pending,
			statemachine.WithTransition(pending, accepted, decide, statemachine.WithGuard(isTrue)),
		)
		_, err := sm.Resolve(ctx, pending, decide, false)
		assert.True(t, statemachine.IsTransitionRejectedError(err))

		next, err := sm.Resolve(ctx, pending, decide, true)
		require.NoError(t, err)
		assert.Equal(t, accepted, next)
	})

	t.Run("nil event", func(t *testing.T) {
		t.Parallel()
		sm := statemachine.MustNew(pending)
		_, err := sm.Resolve(ctx, pending, nil, nil)
		assert.ErrorIs(t, err, statemachine.ErrInvalidEvent)
	})
}

func TestStateMachine_Resolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sm := statemachine.MustNew(pending,
		statemachine.WithTransition(pending, accepted, decide, statemachine.WithGuard(isTrue)),
		statemachine.WithTransition(pending, rejected, decide),
	)

	next, err := sm.Resolve(ctx, pending, decide, true)
	require.NoError(t, err)
	assert.Equal(t, accepted, next, "first passing transition wins")

	next, err = sm.Resolve(ctx, pending, decide, false)
	require.NoError(t, err)
	assert.Equal(t, rejected, next)

	_, err = sm.Resolve(ctx, accepted, decide, true)
	assert.True(t, statemachine.IsNoTransitionAvailableError(err))
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(nil)
	require.Error(t, err)

	_, err = statemachine.New(pending, statemachine.WithTransition(nil, accepted, decide))
	require.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() {
		statemachine.MustNew(pending, statemachine.WithTransition(pending, nil, decide))
	})
}
