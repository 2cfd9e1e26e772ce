package store

import (
	"context"
	"testing"
	"time"

	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistory(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory()
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	first := &domain.Problem{ID: uuid.New(), UserID: "u1", ProblemText: "first", CreatedAt: base}
	second := &domain.Problem{ID: uuid.New(), UserID: "u1", ProblemText: "second", CreatedAt: base.Add(time.Minute)}
	other := &domain.Problem{ID: uuid.New(), UserID: "u2", ProblemText: "other", CreatedAt: base}
	for _, p := range []*domain.Problem{first, second, other} {
		require.NoError(t, h.Append(ctx, p))
	}

	list, err := h.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].ProblemText)

	empty, err := h.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, h.SetFavorite(ctx, "u1", first.ID, true))
	got, err := h.Get(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFavorite)

	assert.ErrorIs(t, h.SetFavorite(ctx, "u2", first.ID, true), ErrNotFound)
	_, err = h.Get(ctx, "u2", first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, h.Delete(ctx, "u1", other.ID), ErrNotFound)
	require.NoError(t, h.Delete(ctx, "u1", first.ID))
	_, err = h.Get(ctx, "u1", first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.GetSubscription(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	sub := domain.DefaultSubscription()
	require.NoError(t, m.PutSubscription(ctx, "u1", sub))
	got, err := m.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, sub, got)
}
