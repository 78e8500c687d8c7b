package pricing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fintrack/pkg/functions"
	"github.com/dmitrymomot/fintrack/pkg/pricing"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) GetPrice(ctx context.Context) (functions.Price, error) {
	args := m.Called(ctx)
	return args.Get(0).(functions.Price), args.Error(1)
}

func TestClient_CachesForFiveMinutes(t *testing.T) {
	t.Parallel()

	price := functions.Price{Amount: decimal.RequireFromString("19.90"), Currency: "BRL", Formatted: "R$ 19,90"}
	f := &mockFetcher{}
	f.On("GetPrice", mock.Anything).Return(price, nil)

	clock := clockwork.NewFakeClock()
	c := pricing.NewClient(f, pricing.WithClock(clock))
	ctx := context.Background()

	for range 3 {
		got, err := c.Price(ctx)
		require.NoError(t, err)
		assert.Equal(t, "R$ 19,90", got.Formatted)
	}
	f.AssertNumberOfCalls(t, "GetPrice", 1)

	clock.Advance(5*time.Minute - time.Second)
	_, err := c.Price(ctx)
	require.NoError(t, err)
	f.AssertNumberOfCalls(t, "GetPrice", 1)

	clock.Advance(time.Second)
	_, err = c.Price(ctx)
	require.NoError(t, err)
	f.AssertNumberOfCalls(t, "GetPrice", 2)

	c.Invalidate()
	_, err = c.Price(ctx)
	require.NoError(t, err)
	f.AssertNumberOfCalls(t, "GetPrice", 3)
}

func TestClient_Error(t *testing.T) {
	t.Parallel()

	f := &mockFetcher{}
	f.On("GetPrice", mock.Anything).Return(functions.Price{}, errors.New("down")).Once()
	f.On("GetPrice", mock.Anything).Return(functions.Price{Currency: "BRL"}, nil).Once()

	c := pricing.NewClient(f, pricing.WithClock(clockwork.NewFakeClock()), pricing.WithTTL(time.Minute))

	_, err := c.Price(context.Background())
	require.ErrorIs(t, err, pricing.ErrPriceUnavailable)

	got, err := c.Price(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BRL", got.Currency)
}
