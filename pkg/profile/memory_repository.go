package profile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps profiles in memory. It backs deployments without
// PostgreSQL and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]Profile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[uuid.UUID]Profile)}
}

func (m *MemoryRepository) Get(_ context.Context, userID uuid.UUID) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) Create(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[p.UserID]; ok {
		return ErrAlreadyExists
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.profiles[p.UserID] = *p
	return nil
}

func (m *MemoryRepository) UpdateDisplayName(_ context.Context, userID uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.DisplayName = name
	p.UpdatedAt = time.Now()
	m.profiles[userID] = p
	return nil
}
