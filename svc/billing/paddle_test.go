package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWebhook(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("subscription event", func(t *testing.T) {
		t.Parallel()

		ev, err := decodeWebhook([]byte(`{
			"event_id": "evt_1",
			"event_type": "subscription.activated",
			"data": {
				"id": "sub_1",
				"status": "active",
				"customer_id": "ctm_1",
				"custom_data": {"user_id": "` + userID.String() + `", "email": "ana@example.com"},
				"current_billing_period": {"starts_at": "2025-01-01T00:00:00Z", "ends_at": "2025-02-01T00:00:00Z"}
			}
		}`))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", ev.ID)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
		assert.Equal(t, "ctm_1", ev.CustomerID)
		assert.Equal(t, userID, ev.UserID)
		assert.Equal(t, "ana@example.com", ev.Email)
		require.NotNil(t, ev.PeriodEnd)
		assert.True(t, ev.PeriodEnd.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("canceled without billing period", func(t *testing.T) {
		t.Parallel()

		ev, err := decodeWebhook([]byte(`{
			"event_type": "subscription.canceled",
			"data": {"id": "sub_1", "status": "canceled", "canceled_at": "2025-03-01T00:00:00Z", "current_billing_period": null}
		}`))
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, ev.UserID)
		require.NotNil(t, ev.PeriodEnd)
		assert.True(t, ev.PeriodEnd.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("other events carry no subscription", func(t *testing.T) {
		t.Parallel()

		ev, err := decodeWebhook([]byte(`{"event_type": "transaction.completed", "data": {"id": "txn_1"}}`))
		require.NoError(t, err)
		assert.Equal(t, "transaction.completed", ev.Type)
		assert.Empty(t, ev.SubscriptionID)
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()

		_, err := decodeWebhook([]byte(`{`))
		assert.ErrorIs(t, err, ErrInvalidWebhook)
	})
}

func TestEntitled(t *testing.T) {
	t.Parallel()

	for status, want := range map[string]bool{
		"active":   true,
		"trialing": true,
		"past_due": true,
		"paused":   false,
		"canceled": false,
		"":         false,
	} {
		assert.Equal(t, want, Entitled(status), status)
	}
}
