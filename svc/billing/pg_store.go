package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/fintrack/pkg/pg"
)

// DB is the subset of *pgxpool.Pool used by PGStore.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore keeps subscribers in the subscribers table.
type PGStore struct {
	db DB
}

func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

const selectSubscriber = `SELECT user_id, email, provider_customer_id, provider_subscription_id,
	subscribed, subscription_tier, subscription_end, updated_at
FROM subscribers`

func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*Subscriber, error) {
	return s.scan(s.db.QueryRow(ctx, selectSubscriber+` WHERE user_id = $1`, userID))
}

func (s *PGStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Subscriber, error) {
	return s.scan(s.db.QueryRow(ctx, selectSubscriber+` WHERE provider_subscription_id = $1`, subscriptionID))
}

func (s *PGStore) Upsert(ctx context.Context, sub *Subscriber) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO subscribers (user_id, email, provider_customer_id, provider_subscription_id,
	subscribed, subscription_tier, subscription_end, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (user_id) DO UPDATE SET
	email = EXCLUDED.email,
	provider_customer_id = COALESCE(EXCLUDED.provider_customer_id, subscribers.provider_customer_id),
	provider_subscription_id = COALESCE(EXCLUDED.provider_subscription_id, subscribers.provider_subscription_id),
	subscribed = EXCLUDED.subscribed,
	subscription_tier = EXCLUDED.subscription_tier,
	subscription_end = EXCLUDED.subscription_end,
	updated_at = now()`,
		sub.UserID, sub.Email, nullable(sub.ProviderCustomerID), nullable(sub.ProviderSubscriptionID),
		sub.Subscribed, nullable(sub.Tier), sub.PeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

func (s *PGStore) scan(row pgx.Row) (*Subscriber, error) {
	var (
		sub                     Subscriber
		customerID, subID, tier *string
		end                     *time.Time
	)
	err := row.Scan(&sub.UserID, &sub.Email, &customerID, &subID, &sub.Subscribed, &tier, &end, &sub.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select subscriber: %w", err)
	}

	sub.ProviderCustomerID = deref(customerID)
	sub.ProviderSubscriptionID = deref(subID)
	sub.Tier = deref(tier)
	sub.PeriodEnd = end
	return &sub, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
