// Package service contains the business logic layer.
//
// This file implements the metering service: entitlement checks, usage
// recording and plan upgrades over the per-user records.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/labsnap/internal/clock"
	"github.com/DukeRupert/labsnap/internal/countdown"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/DukeRupert/labsnap/internal/metrics"
	"github.com/DukeRupert/labsnap/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// MeteringService gates and records usage for a user id.
//
// Every method reads the records fresh and recomputes the effective plan;
// nothing is cached between calls. Store failures never surface: missing or
// unreadable records read as defaults and failed writes are logged.
type MeteringService interface {
	// Status reports the user's plan, remaining uses and cooldown.
	Status(ctx context.Context, userID string) (*UsageStatus, error)

	// Plan returns the user's effective plan right now.
	Plan(ctx context.Context, userID string) domain.Plan

	// Check decides whether one more request of kind may start.
	Check(ctx context.Context, userID string, kind domain.Kind) (domain.Decision, domain.Plan)

	// Record counts one successful request of kind and arms the countdown
	// when the user stays on a capped plan. Returns whether it was armed.
	Record(ctx context.Context, userID string, kind domain.Kind) bool

	// Upgrade installs a fresh 30-day PRO subscription, replacing the record.
	Upgrade(ctx context.Context, userID string) (domain.Subscription, error)
}

// UsageStatus is the user-facing summary of a user's entitlement.
type UsageStatus struct {
	Plan                 domain.Plan         `json:"plan"`
	ExpiresAt            *time.Time          `json:"expires_at,omitempty"`
	PhotosRemaining      int                 `json:"photos_remaining"`
	CalculatorRemaining  int                 `json:"calculator_remaining"`
	PhotosUsedToday      int                 `json:"photos_used_today"`
	PhotoCooldownSeconds int                 `json:"photo_cooldown_seconds"`
	Countdown            countdown.State     `json:"countdown"`
	Features             domain.PlanFeatures `json:"features"`
}

// =============================================================================
// Implementation
// =============================================================================

type meteringService struct {
	records    store.RecordStore
	countdowns *countdown.Registry
	clock      clock.Clock
	logger     *slog.Logger
}

// NewMeteringService creates a new MeteringService.
func NewMeteringService(records store.RecordStore, countdowns *countdown.Registry, clk clock.Clock, logger *slog.Logger) MeteringService {
	return &meteringService{
		records:    records,
		countdowns: countdowns,
		clock:      clk,
		logger:     logger,
	}
}

func (s *meteringService) Status(ctx context.Context, userID string) (*UsageStatus, error) {
	now := s.clock.Now()
	sub, counters := s.load(ctx, userID, now)
	plan := domain.EffectivePlan(sub, now)

	status := &UsageStatus{
		Plan:                plan,
		PhotosRemaining:     domain.Remaining(domain.KindPhoto, plan, counters, now),
		CalculatorRemaining: domain.Remaining(domain.KindCalculator, plan, counters, now),
		Countdown:           s.countdowns.State(userID),
		Features:            domain.GetPlanLimits(plan).Features,
	}
	if plan == domain.PlanPro {
		status.ExpiresAt = sub.ExpiresAt
	}
	if sub.LastPhotoAt != nil && domain.SameDay(*sub.LastPhotoAt, now) {
		status.PhotosUsedToday = sub.PhotosUsedToday
	}
	if d := domain.CanConsume(domain.KindPhoto, plan, counters, sub, now); d.Denial == domain.DenialCooldown {
		status.PhotoCooldownSeconds = d.WaitSeconds
	}
	return status, nil
}

func (s *meteringService) Plan(ctx context.Context, userID string) domain.Plan {
	now := s.clock.Now()
	return domain.EffectivePlan(s.loadSubscription(ctx, userID), now)
}

func (s *meteringService) Check(ctx context.Context, userID string, kind domain.Kind) (domain.Decision, domain.Plan) {
	now := s.clock.Now()
	sub, counters := s.load(ctx, userID, now)
	plan := domain.EffectivePlan(sub, now)
	return domain.CanConsume(kind, plan, counters, sub, now), plan
}

func (s *meteringService) Record(ctx context.Context, userID string, kind domain.Kind) bool {
	now := s.clock.Now()
	sub, counters := s.load(ctx, userID, now)
	plan := domain.EffectivePlan(sub, now)

	counters, sub = domain.RecordConsumption(kind, counters, sub, now)

	if err := s.records.PutUsage(ctx, userID, counters); err != nil {
		s.logger.Error("failed to persist usage", "user_id", userID, "kind", kind, "error", err)
	}
	if kind == domain.KindPhoto {
		if err := s.records.PutSubscription(ctx, userID, sub); err != nil {
			s.logger.Error("failed to persist subscription", "user_id", userID, "error", err)
		}
	}

	if domain.ShouldArmCountdown(kind, plan, counters) {
		s.countdowns.Arm(userID)
		return true
	}
	return false
}

func (s *meteringService) Upgrade(ctx context.Context, userID string) (domain.Subscription, error) {
	const op = "metering.upgrade"

	sub := domain.NewProSubscription(s.clock.Now())
	if err := s.records.PutSubscription(ctx, userID, sub); err != nil {
		return domain.Subscription{}, domain.Internal(err, op, "Unable to activate PRO")
	}
	s.countdowns.Stop(userID)
	metrics.UpgradesTotal.Inc()

	s.logger.Info("pro activated", "user_id", userID, "expires_at", sub.ExpiresAt)
	return sub, nil
}

func (s *meteringService) load(ctx context.Context, userID string, now time.Time) (domain.Subscription, domain.UsageCounters) {
	sub := s.loadSubscription(ctx, userID)

	counters, err := s.records.GetUsage(ctx, userID)
	if err != nil {
		s.logLoadError("usage", userID, err)
		counters = domain.DefaultUsageCounters(now)
	}
	return sub, counters
}

func (s *meteringService) loadSubscription(ctx context.Context, userID string) domain.Subscription {
	sub, err := s.records.GetSubscription(ctx, userID)
	if err != nil {
		s.logLoadError("subscription", userID, err)
		return domain.DefaultSubscription()
	}
	return sub
}

func (s *meteringService) logLoadError(record, userID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	s.logger.Warn("using default record", "record", record, "user_id", userID, "error", err)
}
