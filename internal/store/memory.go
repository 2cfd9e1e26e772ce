package store

import (
	"context"
	"sort"
	"sync"

	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is a process-local RecordStore.
type MemoryStore struct {
	mu    sync.RWMutex
	subs  map[string]domain.Subscription
	usage map[string]domain.UsageCounters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:  make(map[string]domain.Subscription),
		usage: make(map[string]domain.UsageCounters),
	}
}

func (m *MemoryStore) GetSubscription(ctx context.Context, userID string) (domain.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[userID]
	if !ok {
		return domain.Subscription{}, ErrNotFound
	}
	return sub, nil
}

func (m *MemoryStore) PutSubscription(ctx context.Context, userID string, sub domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[userID] = sub
	return nil
}

func (m *MemoryStore) GetUsage(ctx context.Context, userID string) (domain.UsageCounters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.usage[userID]
	if !ok {
		return domain.UsageCounters{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) PutUsage(ctx context.Context, userID string, usage domain.UsageCounters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[userID] = usage
	return nil
}

// MemoryHistory is a process-local HistoryStore.
type MemoryHistory struct {
	mu       sync.RWMutex
	problems map[uuid.UUID]domain.Problem
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{problems: make(map[uuid.UUID]domain.Problem)}
}

func (m *MemoryHistory) Append(ctx context.Context, p *domain.Problem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.problems[p.ID] = *p
	return nil
}

// List returns the user's problems newest first.
func (m *MemoryHistory) List(ctx context.Context, userID string) ([]domain.Problem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Problem, 0)
	for _, p := range m.problems {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryHistory) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Problem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.problems[id]
	if !ok || p.UserID != userID {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryHistory) SetFavorite(ctx context.Context, userID string, id uuid.UUID, favorite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok || p.UserID != userID {
		return ErrNotFound
	}
	p.IsFavorite = favorite
	m.problems[id] = p
	return nil
}

func (m *MemoryHistory) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok || p.UserID != userID {
		return ErrNotFound
	}
	delete(m.problems, id)
	return nil
}
