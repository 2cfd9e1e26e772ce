package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DukeRupert/labsnap/internal/countdown"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/DukeRupert/labsnap/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeteringService_FreshUserStatus(t *testing.T) {
	f := newMeteringFixture()

	status, err := f.metering.Status(context.Background(), "new-user")
	require.NoError(t, err)

	assert.Equal(t, domain.PlanFree, status.Plan)
	assert.Nil(t, status.ExpiresAt)
	assert.Equal(t, 3, status.PhotosRemaining)
	assert.Equal(t, 3, status.CalculatorRemaining)
	assert.Zero(t, status.PhotoCooldownSeconds)
	assert.False(t, status.Countdown.Armed)
	assert.False(t, status.Features.History)
}

func TestMeteringService_FreeTierDay(t *testing.T) {
	f := newMeteringFixture()
	ctx := context.Background()
	const user = "ana"

	for i := 1; i <= 3; i++ {
		d, plan := f.metering.Check(ctx, user, domain.KindPhoto)
		require.True(t, d.Allowed, "photo %d: %s", i, d.Reason)
		assert.Equal(t, domain.PlanFree, plan)

		armed := f.metering.Record(ctx, user, domain.KindPhoto)
		assert.Equal(t, i < 3, armed, "countdown after photo %d", i)

		if i < 3 {
			d, _ = f.metering.Check(ctx, user, domain.KindPhoto)
			assert.Equal(t, domain.DenialCooldown, d.Denial)
			assert.Equal(t, 30, d.WaitSeconds)
			f.clock.Advance(31 * time.Second)
		}
	}

	d, _ := f.metering.Check(ctx, user, domain.KindPhoto)
	assert.Equal(t, domain.DenialDailyCap, d.Denial)

	status, err := f.metering.Status(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, status.PhotosRemaining)
	assert.Equal(t, 3, status.PhotosUsedToday)
	assert.Equal(t, 3, status.CalculatorRemaining)

	// Next calendar day the counters roll over lazily.
	f.clock.Set(day0.Add(24 * time.Hour))
	d, _ = f.metering.Check(ctx, user, domain.KindPhoto)
	assert.True(t, d.Allowed)

	status, err = f.metering.Status(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, status.PhotosRemaining)
	assert.Zero(t, status.PhotosUsedToday)
}

func TestMeteringService_CalculatorHasNoCooldown(t *testing.T) {
	f := newMeteringFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, _ := f.metering.Check(ctx, "u", domain.KindCalculator)
		require.True(t, d.Allowed)
		f.metering.Record(ctx, "u", domain.KindCalculator)
	}

	d, _ := f.metering.Check(ctx, "u", domain.KindCalculator)
	assert.Equal(t, domain.DenialDailyCap, d.Denial)

	// Photos are counted separately.
	d, _ = f.metering.Check(ctx, "u", domain.KindPhoto)
	assert.True(t, d.Allowed)

	sub, err := f.records.GetSubscription(ctx, "u")
	assert.True(t, errors.Is(err, store.ErrNotFound), "calculator use must not write the subscription, got %+v", sub)
}

func TestMeteringService_StatusReportsCooldownAndCountdown(t *testing.T) {
	f := newMeteringFixture()
	ctx := context.Background()

	f.metering.Record(ctx, "u", domain.KindPhoto)
	f.clock.Advance(12 * time.Second)

	status, err := f.metering.Status(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 18, status.PhotoCooldownSeconds)
	assert.Equal(t, countdown.State{Armed: true, Remaining: countdown.DefaultSeconds}, status.Countdown)
}

func TestMeteringService_Upgrade(t *testing.T) {
	f := newMeteringFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.metering.Record(ctx, "u", domain.KindCalculator)
		f.metering.Record(ctx, "u", domain.KindPhoto)
	}
	require.True(t, f.countdowns.State("u").Armed)

	sub, err := f.metering.Upgrade(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, sub.Plan)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, day0.Add(domain.ProDuration), *sub.ExpiresAt)
	assert.Zero(t, sub.PhotosUsedToday)
	assert.Nil(t, sub.LastPhotoAt)
	assert.False(t, f.countdowns.State("u").Armed)

	d, plan := f.metering.Check(ctx, "u", domain.KindPhoto)
	assert.True(t, d.Allowed)
	assert.Equal(t, domain.PlanPro, plan)
	assert.False(t, f.metering.Record(ctx, "u", domain.KindPhoto), "pro never arms the countdown")

	status, err := f.metering.Status(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, domain.Unlimited, status.PhotosRemaining)
	assert.True(t, status.Features.History)
	assert.NotNil(t, status.ExpiresAt)

	// Expired PRO falls back to free, and the counts kept accumulating.
	f.clock.Set(day0.Add(domain.ProDuration + time.Second))
	assert.Equal(t, domain.PlanFree, f.metering.Plan(ctx, "u"))
	d, _ = f.metering.Check(ctx, "u", domain.KindCalculator)
	assert.True(t, d.Allowed, "new day after expiry starts from zero")
}

// failingStore fails every operation the way an unreachable store would.
type failingStore struct{}

func (failingStore) GetSubscription(context.Context, string) (domain.Subscription, error) {
	return domain.Subscription{}, errors.New("connection refused")
}

func (failingStore) PutSubscription(context.Context, string, domain.Subscription) error {
	return errors.New("connection refused")
}

func (failingStore) GetUsage(context.Context, string) (domain.UsageCounters, error) {
	return domain.UsageCounters{}, errors.New("connection refused")
}

func (failingStore) PutUsage(context.Context, string, domain.UsageCounters) error {
	return errors.New("connection refused")
}

func TestMeteringService_UnavailableStoreReadsDefaults(t *testing.T) {
	f := newMeteringFixture()
	svc := NewMeteringService(failingStore{}, f.countdowns, f.clock, testLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, plan := svc.Check(ctx, "u", domain.KindCalculator)
		assert.True(t, d.Allowed)
		assert.Equal(t, domain.PlanFree, plan)
		svc.Record(ctx, "u", domain.KindCalculator)
	}
}
