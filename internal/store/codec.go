package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/DukeRupert/labsnap/internal/domain"
)

// Records are stored as flat string maps, one per user id. Timestamps are
// written in UTC with nanosecond precision; empty means unset.

const (
	fieldPlan            = "plan"
	fieldExpiresAt       = "expires_at"
	fieldPhotosUsedToday = "photos_used_today"
	fieldLastPhotoAt     = "last_photo_at"

	fieldCalculatorCount = "calculator_count"
	fieldPhotoCount      = "photo_count"
	fieldLastReset       = "last_reset"
)

// EncodeSubscription flattens sub into string fields.
func EncodeSubscription(sub domain.Subscription) map[string]string {
	return map[string]string{
		fieldPlan:            string(sub.Plan),
		fieldExpiresAt:       formatTimePtr(sub.ExpiresAt),
		fieldPhotosUsedToday: strconv.Itoa(sub.PhotosUsedToday),
		fieldLastPhotoAt:     formatTimePtr(sub.LastPhotoAt),
	}
}

// DecodeSubscription is the inverse of EncodeSubscription. Any invalid field
// yields ErrMalformed.
func DecodeSubscription(fields map[string]string) (domain.Subscription, error) {
	var sub domain.Subscription

	plan := domain.Plan(fields[fieldPlan])
	if !plan.Valid() {
		return sub, fmt.Errorf("%w: plan %q", ErrMalformed, fields[fieldPlan])
	}
	sub.Plan = plan

	var err error
	if sub.ExpiresAt, err = parseTimePtr(fields[fieldExpiresAt]); err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: %s: %v", ErrMalformed, fieldExpiresAt, err)
	}
	if sub.LastPhotoAt, err = parseTimePtr(fields[fieldLastPhotoAt]); err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: %s: %v", ErrMalformed, fieldLastPhotoAt, err)
	}
	if sub.PhotosUsedToday, err = parseCount(fields[fieldPhotosUsedToday]); err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: %s: %v", ErrMalformed, fieldPhotosUsedToday, err)
	}

	return sub, nil
}

// EncodeUsage flattens usage into string fields.
func EncodeUsage(usage domain.UsageCounters) map[string]string {
	return map[string]string{
		fieldCalculatorCount: strconv.Itoa(usage.CalculatorCount),
		fieldPhotoCount:      strconv.Itoa(usage.PhotoCount),
		fieldLastReset:       formatTime(usage.LastReset),
	}
}

// DecodeUsage is the inverse of EncodeUsage.
func DecodeUsage(fields map[string]string) (domain.UsageCounters, error) {
	var (
		usage domain.UsageCounters
		err   error
	)

	if usage.CalculatorCount, err = parseCount(fields[fieldCalculatorCount]); err != nil {
		return domain.UsageCounters{}, fmt.Errorf("%w: %s: %v", ErrMalformed, fieldCalculatorCount, err)
	}
	if usage.PhotoCount, err = parseCount(fields[fieldPhotoCount]); err != nil {
		return domain.UsageCounters{}, fmt.Errorf("%w: %s: %v", ErrMalformed, fieldPhotoCount, err)
	}
	reset, err := parseTimePtr(fields[fieldLastReset])
	if err != nil {
		return domain.UsageCounters{}, fmt.Errorf("%w: %s: %v", ErrMalformed, fieldLastReset, err)
	}
	if reset != nil {
		usage.LastReset = *reset
	}

	return usage, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
