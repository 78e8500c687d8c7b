package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dmitrymomot/fintrack/pkg/functions"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/subscription"
)

// Caller is the authenticated user of a function call.
type Caller struct {
	UserID uuid.UUID
	Email  string
}

// Service implements the backend functions consumed by pkg/functions.
type Service struct {
	cfg      Config
	store    Store
	provider Provider
	clock    clockwork.Clock
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates the billing service backed by store and provider.
func NewService(cfg Config, store Store, provider Provider, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		store:    store,
		provider: provider,
		clock:    clockwork.NewRealClock(),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("billing"))
	return s
}

// CheckSubscription reports the caller's entitlement. Unknown callers are
// registered as unsubscribed.
func (s *Service) CheckSubscription(ctx context.Context, c Caller) (subscription.Status, error) {
	sub, err := s.store.Get(ctx, c.UserID)
	if errors.Is(err, ErrSubscriberNotFound) {
		sub = &Subscriber{UserID: c.UserID, Email: c.Email}
		if err := s.store.Upsert(ctx, sub); err != nil {
			return subscription.Status{}, err
		}
		return subscription.Status{}, nil
	}
	if err != nil {
		return subscription.Status{}, err
	}

	if c.Email != "" && sub.Email != c.Email {
		sub.Email = c.Email
		if err := s.store.Upsert(ctx, sub); err != nil {
			s.log.WarnContext(ctx, "failed to refresh subscriber email", logger.UserID(c.UserID), logger.Error(err))
		}
	}
	return sub.Status(s.clock.Now()), nil
}

// CreateCheckout returns a hosted checkout URL for the configured price.
func (s *Service) CreateCheckout(ctx context.Context, c Caller) (functions.CheckoutResponse, error) {
	url, err := s.provider.CreateCheckout(ctx, CheckoutRequest{
		UserID:     c.UserID,
		Email:      c.Email,
		PriceID:    s.cfg.PriceID,
		SuccessURL: s.cfg.SuccessURL,
	})
	if err != nil {
		return functions.CheckoutResponse{}, errors.Join(ErrProvider, err)
	}
	return functions.CheckoutResponse{URL: url}, nil
}

// CustomerPortal returns a portal link, or cancels the caller's subscription
// at period end when cancel is true.
func (s *Service) CustomerPortal(ctx context.Context, c Caller, cancel bool) (functions.PortalResponse, error) {
	sub, err := s.store.Get(ctx, c.UserID)
	if errors.Is(err, ErrSubscriberNotFound) {
		return functions.PortalResponse{}, ErrNoSubscription
	}
	if err != nil {
		return functions.PortalResponse{}, err
	}
	if sub.ProviderCustomerID == "" {
		return functions.PortalResponse{}, ErrNoSubscription
	}

	if !cancel {
		url, err := s.provider.PortalURL(ctx, sub.ProviderCustomerID, sub.ProviderSubscriptionID)
		if err != nil {
			return functions.PortalResponse{}, errors.Join(ErrProvider, err)
		}
		return functions.PortalResponse{URL: url}, nil
	}

	if sub.ProviderSubscriptionID == "" || !sub.Status(s.clock.Now()).Subscribed {
		return functions.PortalResponse{}, ErrNoSubscription
	}
	if err := s.provider.CancelSubscription(ctx, sub.ProviderSubscriptionID); err != nil {
		return functions.PortalResponse{Message: "could not cancel subscription"}, errors.Join(ErrProvider, err)
	}
	s.log.InfoContext(ctx, "subscription cancelled", logger.UserID(c.UserID))

	msg := "Subscription cancelled."
	if sub.PeriodEnd != nil {
		msg = fmt.Sprintf("Subscription cancelled. Access continues until %s.", sub.PeriodEnd.Format(time.DateOnly))
	}
	return functions.PortalResponse{Success: true, Message: msg}, nil
}

// Price returns the configured catalog price.
func (s *Service) Price(ctx context.Context) (functions.Price, error) {
	p, err := s.provider.UnitPrice(ctx, s.cfg.PriceID)
	if err != nil {
		return functions.Price{}, errors.Join(ErrProvider, err)
	}
	return FormatPrice(p, s.cfg.Locale)
}

// HandleWebhook applies a subscription notification to the subscriber it
// belongs to. Other events are ignored.
func (s *Service) HandleWebhook(ctx context.Context, ev *WebhookEvent) error {
	if ev == nil || ev.SubscriptionID == "" {
		return nil
	}
	log := s.log.With(logger.Event(ev.Type), slog.String("subscription_id", ev.SubscriptionID))

	sub, err := s.webhookSubscriber(ctx, ev)
	if err != nil {
		log.WarnContext(ctx, "webhook subscriber lookup failed", logger.Error(err))
		return err
	}

	sub.ProviderSubscriptionID = ev.SubscriptionID
	if ev.CustomerID != "" {
		sub.ProviderCustomerID = ev.CustomerID
	}
	sub.Subscribed = Entitled(ev.Status)
	if ev.PeriodEnd != nil {
		sub.PeriodEnd = ev.PeriodEnd
	}
	if sub.Subscribed {
		sub.Tier = s.cfg.Tier
	}

	if err := s.store.Upsert(ctx, sub); err != nil {
		return err
	}
	log.InfoContext(ctx, "subscriber updated",
		logger.UserID(sub.UserID),
		slog.String("status", ev.Status),
		slog.Bool("subscribed", sub.Subscribed),
	)
	return nil
}

func (s *Service) webhookSubscriber(ctx context.Context, ev *WebhookEvent) (*Subscriber, error) {
	sub, err := s.store.GetBySubscriptionID(ctx, ev.SubscriptionID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrSubscriberNotFound) {
		return nil, err
	}
	if ev.UserID == uuid.Nil {
		return nil, ErrUnknownSubscriber
	}

	sub, err = s.store.Get(ctx, ev.UserID)
	if errors.Is(err, ErrSubscriberNotFound) {
		return &Subscriber{UserID: ev.UserID, Email: ev.Email}, nil
	}
	return sub, err
}
