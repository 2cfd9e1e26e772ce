package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/DukeRupert/labsnap/internal/metrics"
)

// Resilient fronts a primary RecordStore with an in-memory copy.
//
// Writes always land in memory first. When the primary fails, the failure is
// logged and the memory copy answers for that user from then on, until a
// later write to the primary succeeds. With a nil primary it is a plain
// MemoryStore. No error from the primary ever reaches the caller.
type Resilient struct {
	primary RecordStore
	memory  *MemoryStore
	logger  *slog.Logger

	mu         sync.Mutex
	dirtySubs  map[string]bool
	dirtyUsage map[string]bool
}

func NewResilient(primary RecordStore, logger *slog.Logger) *Resilient {
	return &Resilient{
		primary:    primary,
		memory:     NewMemoryStore(),
		logger:     logger,
		dirtySubs:  make(map[string]bool),
		dirtyUsage: make(map[string]bool),
	}
}

// GetSubscription returns ErrNotFound when no usable record exists anywhere.
func (r *Resilient) GetSubscription(ctx context.Context, userID string) (domain.Subscription, error) {
	if r.primary == nil || r.isDirty(r.dirtySubs, userID) {
		return r.memory.GetSubscription(ctx, userID)
	}

	sub, err := r.primary.GetSubscription(ctx, userID)
	if err == nil {
		return sub, nil
	}
	r.absorb("get_subscription", userID, err)
	return r.memory.GetSubscription(ctx, userID)
}

func (r *Resilient) PutSubscription(ctx context.Context, userID string, sub domain.Subscription) error {
	_ = r.memory.PutSubscription(ctx, userID, sub)
	if r.primary == nil {
		return nil
	}

	if err := r.primary.PutSubscription(ctx, userID, sub); err != nil {
		r.absorb("put_subscription", userID, err)
		r.setDirty(r.dirtySubs, userID, true)
		return nil
	}
	r.setDirty(r.dirtySubs, userID, false)
	return nil
}

func (r *Resilient) GetUsage(ctx context.Context, userID string) (domain.UsageCounters, error) {
	if r.primary == nil || r.isDirty(r.dirtyUsage, userID) {
		return r.memory.GetUsage(ctx, userID)
	}

	usage, err := r.primary.GetUsage(ctx, userID)
	if err == nil {
		return usage, nil
	}
	r.absorb("get_usage", userID, err)
	return r.memory.GetUsage(ctx, userID)
}

func (r *Resilient) PutUsage(ctx context.Context, userID string, usage domain.UsageCounters) error {
	_ = r.memory.PutUsage(ctx, userID, usage)
	if r.primary == nil {
		return nil
	}

	if err := r.primary.PutUsage(ctx, userID, usage); err != nil {
		r.absorb("put_usage", userID, err)
		r.setDirty(r.dirtyUsage, userID, true)
		return nil
	}
	r.setDirty(r.dirtyUsage, userID, false)
	return nil
}

// absorb logs a primary failure. A missing record is not a failure.
func (r *Resilient) absorb(op, userID string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		return
	case errors.Is(err, ErrMalformed):
		r.logger.Warn("discarding malformed record", "op", op, "user_id", userID, "error", err)
	default:
		r.logger.Warn("record store unavailable, using memory", "op", op, "user_id", userID, "error", err)
	}
	metrics.StoreFallbacksTotal.WithLabelValues(op).Inc()
}

func (r *Resilient) isDirty(set map[string]bool, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return set[userID]
}

func (r *Resilient) setDirty(set map[string]bool, userID string, dirty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dirty {
		set[userID] = true
	} else {
		delete(set, userID)
	}
}
