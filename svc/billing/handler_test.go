package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fintrack/pkg/functions"
	"github.com/dmitrymomot/fintrack/pkg/jwt"
	"github.com/dmitrymomot/fintrack/svc/billing"
)

type fixture struct {
	store    *billing.MemoryStore
	provider *mockProvider
	tokens   *jwt.Service
	client   *functions.Client
	url      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	svc, store, provider := newService(t)
	tokens, err := jwt.NewFromString("test-secret")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/functions/v1", billing.NewHandler(svc, tokens, nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client, err := functions.NewClient(functions.Config{URL: srv.URL, AnonKey: "anon"})
	require.NoError(t, err)

	return &fixture{store: store, provider: provider, tokens: tokens, client: client, url: srv.URL}
}

func (f *fixture) token(t *testing.T, userID uuid.UUID, email string) string {
	t.Helper()
	claims := &jwt.Claims{Email: email}
	claims.Subject = userID.String()
	tok, err := f.tokens.Generate(claims)
	require.NoError(t, err)
	return tok
}

func TestHandler_CheckSubscription(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	userID := uuid.New()
	end := now.Add(48 * time.Hour)
	require.NoError(t, f.store.Upsert(ctx, &billing.Subscriber{UserID: userID, Email: "ana@example.com", Subscribed: true, Tier: "Premium", PeriodEnd: &end}))

	st, err := f.client.CheckSubscription(ctx, f.token(t, userID, "ana@example.com"))
	require.NoError(t, err)
	assert.True(t, st.Subscribed)
	assert.Equal(t, "Premium", st.TierName())
}

func TestHandler_RejectsBadTokens(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.client.CheckSubscription(context.Background(), "not-a-token")
	var httpErr *functions.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)

	claims := &jwt.Claims{}
	claims.Subject = "not-a-uuid"
	tok, err := f.tokens.Generate(claims)
	require.NoError(t, err)

	_, err = f.client.CheckSubscription(context.Background(), tok)
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Equal(t, billing.ErrInvalidCaller.Error(), httpErr.Message)
}

func TestHandler_CheckoutAndPortal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	userID := uuid.New()
	tok := f.token(t, userID, "ana@example.com")

	f.provider.On("CreateCheckout", mock.Anything, mock.Anything).Return("https://pay.test/checkout", nil).Once()
	url, err := f.client.CreateCheckout(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/checkout", url)

	_, err = f.client.CustomerPortal(ctx, tok, false)
	var httpErr *functions.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)

	require.NoError(t, f.store.Upsert(ctx, &billing.Subscriber{
		UserID: userID, ProviderCustomerID: "ctm_1", ProviderSubscriptionID: "sub_1", Subscribed: true,
	}))

	f.provider.On("PortalURL", mock.Anything, "ctm_1", "sub_1").Return("https://portal.test", nil).Once()
	resp, err := f.client.CustomerPortal(ctx, tok, false)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.test", resp.URL)

	f.provider.On("CancelSubscription", mock.Anything, "sub_1").Return(nil).Once()
	resp, err = f.client.CustomerPortal(ctx, tok, true)
	require.NoError(t, err)
	assert.True(t, resp.IsCancellation())
	assert.True(t, resp.Success)
}

func TestHandler_GetPrice(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.provider.On("UnitPrice", mock.Anything, "pri_1").Return(billing.UnitPrice{Amount: "1990", Currency: "BRL"}, nil).Once()
	p, err := f.client.GetPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "19.9", p.Amount.String())
	assert.Equal(t, "BRL", p.Currency)
	assert.NotEmpty(t, p.Formatted)
}

func TestHandler_Webhook(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	userID := uuid.New()

	post := func(body []byte) int {
		resp, err := http.Post(f.url+"/functions/v1"+billing.WebhookPath, "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	body, err := json.Marshal(billing.WebhookEvent{
		Type: "subscription.created", SubscriptionID: "sub_1", CustomerID: "ctm_1", Status: "active", UserID: userID,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, post(body))

	sub, err := f.store.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, sub.Subscribed)

	unknown, err := json.Marshal(billing.WebhookEvent{Type: "subscription.updated", SubscriptionID: "sub_x", Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, post(unknown))

	assert.Equal(t, http.StatusUnauthorized, post([]byte(`{`)))
}
