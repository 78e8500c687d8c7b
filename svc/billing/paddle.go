package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
)

// Custom data keys attached to checkout transactions. Paddle copies them to
// the subscription, so webhooks can be matched back to a user.
const (
	customUserID = "user_id"
	customEmail  = "email"
)

// CheckoutRequest describes a hosted checkout for one user.
type CheckoutRequest struct {
	UserID     uuid.UUID
	Email      string
	PriceID    string
	SuccessURL string
}

// UnitPrice is a catalog price in minor units.
type UnitPrice struct {
	Amount   string
	Currency string
}

// WebhookEvent is a verified subscription notification.
type WebhookEvent struct {
	ID             string
	Type           string
	SubscriptionID string
	CustomerID     string
	Status         string
	UserID         uuid.UUID
	Email          string
	PeriodEnd      *time.Time
}

// Provider is the payment provider behind the billing functions.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
	PortalURL(ctx context.Context, customerID, subscriptionID string) (string, error)
	// CancelSubscription cancels at the end of the current billing period.
	CancelSubscription(ctx context.Context, subscriptionID string) error
	UnitPrice(ctx context.Context, priceID string) (UnitPrice, error)
	ParseWebhook(r *http.Request) (*WebhookEvent, error)
}

// PaddleProvider implements Provider with Paddle Billing.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("paddle API key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("paddle webhook secret is required")
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
	}, nil
}

func (p *PaddleProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})

	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			customUserID: req.UserID.String(),
			customEmail:  req.Email,
		},
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(req.SuccessURL)}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return "", fmt.Errorf("create paddle transaction: %w", err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return "", errors.New("no checkout URL returned from paddle")
	}
	return *tx.Checkout.URL, nil
}

func (p *PaddleProvider) PortalURL(ctx context.Context, customerID, subscriptionID string) (string, error) {
	req := &paddle.CreateCustomerPortalSessionRequest{CustomerID: customerID}
	if subscriptionID != "" {
		req.SubscriptionIDs = []string{subscriptionID}
	}

	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create paddle portal session: %w", err)
	}
	if session.URLs.General.Overview == "" {
		return "", errors.New("no portal URL returned from paddle")
	}
	return session.URLs.General.Overview, nil
}

func (p *PaddleProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	_, err := p.client.SubscriptionsClient.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: subscriptionID,
		EffectiveFrom:  paddle.PtrTo(paddle.EffectiveFromNextBillingPeriod),
	})
	if err != nil {
		return fmt.Errorf("cancel paddle subscription: %w", err)
	}
	return nil
}

func (p *PaddleProvider) UnitPrice(ctx context.Context, priceID string) (UnitPrice, error) {
	price, err := p.client.PricesClient.GetPrice(ctx, &paddle.GetPriceRequest{PriceID: priceID})
	if err != nil {
		return UnitPrice{}, fmt.Errorf("get paddle price: %w", err)
	}
	return UnitPrice{
		Amount:   price.UnitPrice.Amount,
		Currency: string(price.UnitPrice.CurrencyCode),
	}, nil
}

// ParseWebhook verifies the Paddle-Signature header and decodes the
// subscription payload. Non-subscription events come back with only ID and
// Type set.
func (p *PaddleProvider) ParseWebhook(r *http.Request) (*WebhookEvent, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	ok, err := p.verifier.Verify(r)
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}
	if !ok {
		return nil, errors.Join(ErrInvalidWebhook, errors.New("signature verification failed"))
	}

	return decodeWebhook(body)
}

type paddleNotification struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ID                   string            `json:"id"`
		Status               string            `json:"status"`
		CustomerID           string            `json:"customer_id"`
		CustomData           map[string]string `json:"custom_data"`
		CanceledAt           *time.Time        `json:"canceled_at"`
		CurrentBillingPeriod *struct {
			EndsAt time.Time `json:"ends_at"`
		} `json:"current_billing_period"`
	} `json:"data"`
}

func decodeWebhook(body []byte) (*WebhookEvent, error) {
	var n paddleNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}

	ev := &WebhookEvent{ID: n.EventID, Type: n.EventType}
	if !strings.HasPrefix(n.EventType, "subscription.") {
		return ev, nil
	}

	ev.SubscriptionID = n.Data.ID
	ev.CustomerID = n.Data.CustomerID
	ev.Status = n.Data.Status
	ev.Email = n.Data.CustomData[customEmail]
	if id, err := uuid.Parse(n.Data.CustomData[customUserID]); err == nil {
		ev.UserID = id
	}

	switch {
	case n.Data.CurrentBillingPeriod != nil:
		end := n.Data.CurrentBillingPeriod.EndsAt
		ev.PeriodEnd = &end
	case n.Data.CanceledAt != nil:
		ev.PeriodEnd = n.Data.CanceledAt
	}
	return ev, nil
}

// Entitled reports whether a Paddle subscription status grants access.
func Entitled(status string) bool {
	switch strings.ToLower(status) {
	case "active", "trialing", "past_due":
		return true
	default:
		return false
	}
}
