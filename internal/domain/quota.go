// Package domain contains core business types and interfaces.
//
// This file defines plans, request kinds and the per-plan limit policy used
// by the entitlement evaluator.
package domain

import "time"

// Plan is the stored subscription level.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro
}

// Kind identifies the metered action being requested.
type Kind string

const (
	KindPhoto      Kind = "photo"
	KindCalculator Kind = "calculator"
)

// Valid reports whether k is a metered kind.
func (k Kind) Valid() bool {
	return k == KindPhoto || k == KindCalculator
}

// Unlimited is reported in place of a remaining count when a plan has no cap.
const Unlimited = -1

// ProDuration is how long a successful checkout keeps a user on PRO.
const ProDuration = 30 * 24 * time.Hour

// PlanFeatures are the capabilities unlocked by a plan beyond raw quota.
type PlanFeatures struct {
	AdvancedCalculator     bool `json:"advanced_calculator"`
	StepByStepExplanations bool `json:"step_by_step_explanations"`
	History                bool `json:"history"`
	PriorityProcessing     bool `json:"priority_processing"`
}

// PlanLimits defines the daily caps and photo cooldown for a plan.
type PlanLimits struct {
	PhotosPerDay      int
	CalculatorPerDay  int
	PhotoCooldown     time.Duration
	UnlimitedPhotos   bool
	UnlimitedRequests bool
	Features          PlanFeatures
}

// Limits maps plans to their limit policy.
// Free has strict daily caps and a cooldown between photos; PRO is unlimited.
var Limits = map[Plan]PlanLimits{
	PlanFree: {
		PhotosPerDay:     3,
		CalculatorPerDay: 3,
		PhotoCooldown:    30 * time.Second,
	},
	PlanPro: {
		UnlimitedPhotos:   true,
		UnlimitedRequests: true,
		Features: PlanFeatures{
			AdvancedCalculator:     true,
			StepByStepExplanations: true,
			History:                true,
			PriorityProcessing:     true,
		},
	},
}

// GetPlanLimits returns the limits for a plan, defaulting to free for unknown plans.
func GetPlanLimits(plan Plan) PlanLimits {
	if limits, ok := Limits[plan]; ok {
		return limits
	}
	return Limits[PlanFree]
}

// DailyCap returns the cap for kind and whether the kind is capped at all.
func (l PlanLimits) DailyCap(kind Kind) (int, bool) {
	switch kind {
	case KindPhoto:
		if l.UnlimitedPhotos {
			return 0, false
		}
		return l.PhotosPerDay, true
	case KindCalculator:
		if l.UnlimitedRequests {
			return 0, false
		}
		return l.CalculatorPerDay, true
	}
	return 0, true
}

// Cooldown returns the minimum interval between two requests of kind.
// Only photos have one.
func (l PlanLimits) Cooldown(kind Kind) time.Duration {
	if kind == KindPhoto {
		return l.PhotoCooldown
	}
	return 0
}
