package domain

import (
	"fmt"
	"math"
	"time"
)

// DenialReason classifies why a request was refused.
type DenialReason string

const (
	DenialNone     DenialReason = ""
	DenialDailyCap DenialReason = "daily_cap"
	DenialCooldown DenialReason = "cooldown"
	DenialBadKind  DenialReason = "unknown_kind"
)

// Decision is the outcome of an entitlement check. A refusal is an ordinary
// value, not an error.
type Decision struct {
	Allowed     bool         `json:"allowed"`
	Denial      DenialReason `json:"denial,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	WaitSeconds int          `json:"wait_seconds,omitempty"`
}

// Allow is the decision for a permitted request.
func Allow() Decision {
	return Decision{Allowed: true}
}

// CanConsume decides whether one more request of kind is permitted right now.
//
// PRO is always allowed. For free users the daily cap is checked before the
// photo cooldown, so a capped user is told about the cap even mid-cooldown.
// counters may be stale from a previous day; the rollover is applied to a
// copy before comparing.
func CanConsume(kind Kind, plan Plan, counters UsageCounters, sub Subscription, now time.Time) Decision {
	if plan == PlanPro {
		return Allow()
	}
	if !kind.Valid() {
		return Decision{Denial: DenialBadKind, Reason: fmt.Sprintf("unknown request kind %q", kind)}
	}

	limits := GetPlanLimits(plan)
	counters = counters.Rollover(now)

	if limit, capped := limits.DailyCap(kind); capped && counters.Count(kind) >= limit {
		return Decision{
			Denial: DenialDailyCap,
			Reason: fmt.Sprintf("daily limit of %d reached for %s today", limit, kind),
		}
	}

	interval := limits.Cooldown(kind)
	if interval > 0 && sub.LastPhotoAt != nil {
		elapsed := now.Sub(*sub.LastPhotoAt)
		if elapsed < interval {
			wait := waitSeconds(interval, elapsed)
			return Decision{
				Denial:      DenialCooldown,
				Reason:      fmt.Sprintf("wait %d seconds before taking another photo", wait),
				WaitSeconds: wait,
			}
		}
	}

	return Allow()
}

// waitSeconds rounds the remaining cooldown up to whole seconds. A last photo
// in the future (clock skew) waits the full interval, never longer.
func waitSeconds(interval, elapsed time.Duration) int {
	full := int(math.Ceil(interval.Seconds()))
	if elapsed < 0 {
		return full
	}
	wait := int(math.Ceil((interval - elapsed).Seconds()))
	if wait > full {
		return full
	}
	if wait < 1 {
		return 1
	}
	return wait
}

// RecordConsumption returns the records after one successful request of kind.
// Exactly one counter is incremented. A photo also stamps LastPhotoAt and
// bumps PhotosUsedToday, restarting it at 1 on a new calendar day.
// Unknown kinds leave the records unchanged apart from the rollover.
func RecordConsumption(kind Kind, counters UsageCounters, sub Subscription, now time.Time) (UsageCounters, Subscription) {
	counters = counters.Rollover(now)

	switch kind {
	case KindCalculator:
		counters.CalculatorCount++
	case KindPhoto:
		counters.PhotoCount++
		if sub.LastPhotoAt != nil && SameDay(*sub.LastPhotoAt, now) {
			sub.PhotosUsedToday++
		} else {
			sub.PhotosUsedToday = 1
		}
		at := now
		sub.LastPhotoAt = &at
	}

	return counters, sub
}

// ShouldArmCountdown reports whether the cooldown countdown starts after a
// recorded request. It only runs for free users who still have requests of
// kind left today.
func ShouldArmCountdown(kind Kind, plan Plan, after UsageCounters) bool {
	if plan != PlanFree || !kind.Valid() {
		return false
	}
	limit, capped := GetPlanLimits(plan).DailyCap(kind)
	if !capped {
		return false
	}
	return after.Count(kind) < limit
}

// Remaining returns how many requests of kind are left today, or Unlimited.
func Remaining(kind Kind, plan Plan, counters UsageCounters, now time.Time) int {
	limit, capped := GetPlanLimits(plan).DailyCap(kind)
	if plan == PlanPro || !capped {
		return Unlimited
	}
	left := limit - counters.Rollover(now).Count(kind)
	if left < 0 {
		return 0
	}
	return left
}
