package store

import (
	"context"
	"testing"
	"time"

	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStore_Subscription(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	s := NewRedisStore(client)

	_, err := s.GetSubscription(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	last := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutSubscription(ctx, "u1", domain.Subscription{
		Plan: domain.PlanFree, PhotosUsedToday: 2, LastPhotoAt: &last,
	}))
	assert.Equal(t, "2", mr.HGet("labsnap:subscription:u1", "photos_used_today"))

	// a full overwrite clears last_photo_at
	pro := domain.NewProSubscription(last)
	require.NoError(t, s.PutSubscription(ctx, "u1", pro))

	got, err := s.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, got.Plan)
	assert.Nil(t, got.LastPhotoAt)
	assert.Zero(t, got.PhotosUsedToday)
	assert.True(t, pro.ExpiresAt.Equal(*got.ExpiresAt))
}

func TestRedisStore_Usage(t *testing.T) {
	ctx := context.Background()
	_, client := setupRedis(t)
	s := NewRedisStore(client)

	usage := domain.UsageCounters{CalculatorCount: 3, PhotoCount: 1, LastReset: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.PutUsage(ctx, "u1", usage))

	got, err := s.GetUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, usage, got)

	_, err = s.GetUsage(ctx, "u2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Malformed(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	s := NewRedisStore(client)

	mr.HSet("labsnap:subscription:u1", "plan", "gold")

	_, err := s.GetSubscription(ctx, "u1")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRedisStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := NewRedisStore(client)
	mr.Close()

	_, err = s.GetUsage(ctx, "u1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
