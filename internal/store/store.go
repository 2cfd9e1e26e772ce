// Package store persists the per-user subscription and usage records and the
// PRO problem history.
package store

import (
	"context"
	"errors"

	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no record exists for the key.
	ErrNotFound = errors.New("store: record not found")

	// ErrMalformed is returned when a stored record cannot be decoded.
	// Callers treat it the same as ErrNotFound.
	ErrMalformed = errors.New("store: malformed record")
)

// SubscriptionStore reads and writes subscription records by user id.
// PutSubscription replaces the whole record.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, userID string) (domain.Subscription, error)
	PutSubscription(ctx context.Context, userID string, sub domain.Subscription) error
}

// UsageStore reads and writes usage counters by user id.
type UsageStore interface {
	GetUsage(ctx context.Context, userID string) (domain.UsageCounters, error)
	PutUsage(ctx context.Context, userID string, usage domain.UsageCounters) error
}

// RecordStore holds both per-user records.
type RecordStore interface {
	SubscriptionStore
	UsageStore
}

// HistoryStore keeps solved problems for PRO users. Every lookup is scoped to
// the owning user id; a record owned by someone else is ErrNotFound.
type HistoryStore interface {
	Append(ctx context.Context, p *domain.Problem) error
	List(ctx context.Context, userID string) ([]domain.Problem, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Problem, error)
	SetFavorite(ctx context.Context, userID string, id uuid.UUID, favorite bool) error
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}
