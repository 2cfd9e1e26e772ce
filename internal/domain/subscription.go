package domain

import "time"

// Subscription is the stored plan record for a user id.
//
// The effective plan is never stored: it is recomputed from Plan and ExpiresAt
// on every read, so a lapsed PRO subscription behaves as free without anyone
// rewriting the record.
type Subscription struct {
	Plan            Plan       `json:"plan"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	PhotosUsedToday int        `json:"photos_used_today"`
	LastPhotoAt     *time.Time `json:"last_photo_at,omitempty"`
}

// DefaultSubscription is the record assumed for an id that has none.
func DefaultSubscription() Subscription {
	return Subscription{Plan: PlanFree}
}

// NewProSubscription is the record installed by a successful checkout.
// Photo tracking starts over.
func NewProSubscription(now time.Time) Subscription {
	expires := now.Add(ProDuration)
	return Subscription{
		Plan:      PlanPro,
		ExpiresAt: &expires,
	}
}

// EffectivePlan returns PRO only while a PRO record has not expired.
// Unknown stored plans are treated as free.
func EffectivePlan(sub Subscription, now time.Time) Plan {
	if sub.Plan == PlanPro && sub.ExpiresAt != nil && now.Before(*sub.ExpiresAt) {
		return PlanPro
	}
	return PlanFree
}

// IsExpired reports whether a PRO record has lapsed.
func (s Subscription) IsExpired(now time.Time) bool {
	return s.Plan == PlanPro && EffectivePlan(s, now) == PlanFree
}
