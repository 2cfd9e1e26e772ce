package domain

import "time"

// UsageCounters are the per-day request counts for a user id.
// Counts only mean anything relative to LastReset: they are zeroed lazily the
// first time they are touched on a new calendar day.
type UsageCounters struct {
	CalculatorCount int       `json:"calculator_count"`
	PhotoCount      int       `json:"photo_count"`
	LastReset       time.Time `json:"last_reset"`
}

// DefaultUsageCounters is the record assumed for an id that has none.
func DefaultUsageCounters(now time.Time) UsageCounters {
	return UsageCounters{LastReset: now}
}

// Rollover returns zeroed counters stamped with now when LastReset falls on an
// earlier calendar day than now. It is idempotent within a day.
func (u UsageCounters) Rollover(now time.Time) UsageCounters {
	if SameDay(u.LastReset, now) {
		return u
	}
	return UsageCounters{LastReset: now}
}

// Count returns the counter for kind.
func (u UsageCounters) Count(kind Kind) int {
	switch kind {
	case KindPhoto:
		return u.PhotoCount
	case KindCalculator:
		return u.CalculatorCount
	}
	return 0
}

// SameDay reports whether a and b fall on the same calendar day in b's location.
func SameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
