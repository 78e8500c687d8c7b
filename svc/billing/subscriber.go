package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fintrack/pkg/subscription"
)

// Subscriber is one row of the subscribers table.
type Subscriber struct {
	UserID                 uuid.UUID
	Email                  string
	ProviderCustomerID     string
	ProviderSubscriptionID string
	Subscribed             bool
	Tier                   string
	PeriodEnd              *time.Time
	UpdatedAt              time.Time
}

// Status is the entitlement of the subscriber at now. A subscription whose
// period ended is reported as not subscribed even before the provider's
// webhook arrives.
func (s *Subscriber) Status(now time.Time) subscription.Status {
	if s == nil || !s.Subscribed {
		return subscription.Status{}
	}
	if s.PeriodEnd != nil && now.After(*s.PeriodEnd) {
		return subscription.Status{}
	}

	st := subscription.Status{Subscribed: true, PeriodEnd: s.PeriodEnd}
	if s.Tier != "" {
		tier := s.Tier
		st.Tier = &tier
	}
	return st
}

// Store persists subscribers.
type Store interface {
	// Get returns ErrSubscriberNotFound for unknown users.
	Get(ctx context.Context, userID uuid.UUID) (*Subscriber, error)
	// GetBySubscriptionID returns ErrSubscriberNotFound for unknown ids.
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Subscriber, error)
	Upsert(ctx context.Context, s *Subscriber) error
}

// MemoryStore is a Store for tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]Subscriber
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]Subscriber)}
}

func (m *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.rows[userID]
	if !ok {
		return nil, ErrSubscriberNotFound
	}
	return &s, nil
}

func (m *MemoryStore) GetBySubscriptionID(_ context.Context, subscriptionID string) (*Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.rows {
		if subscriptionID != "" && s.ProviderSubscriptionID == subscriptionID {
			return &s, nil
		}
	}
	return nil, ErrSubscriberNotFound
}

func (m *MemoryStore) Upsert(_ context.Context, s *Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.UpdatedAt = time.Now()
	m.rows[s.UserID] = *s
	return nil
}
