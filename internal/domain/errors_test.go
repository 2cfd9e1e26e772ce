package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorHelpers(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name    string
		err     error
		code    string
		message string
		op      string
	}{
		{"nil", nil, "", "", ""},
		{"plain error", cause, EINTERNAL, "An internal error occurred. Please try again later.", ""},
		{"upstream", Upstream(cause, "solve.text", "analysis failed, please try again"), EUPSTREAM, "analysis failed, please try again", "solve.text"},
		{"internal hides message", Internal(cause, "usage.status", "redis down"), EINTERNAL, "An internal error occurred. Please try again later.", "usage.status"},
		{"wrapped conflict", fmt.Errorf("outer: %w", Conflict("solve.photo", "busy")), ECONFLICT, "busy", "solve.photo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.message, ErrorMessage(tt.err))
			assert.Equal(t, tt.op, ErrorOp(tt.err))
		})
	}
}

func TestUpstream_Unwraps(t *testing.T) {
	cause := errors.New("timeout")
	err := Upstream(cause, "solve.photo", "try again")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "solve.photo: try again", err.Error())
}

func TestRateLimit_RoundsRetryUp(t *testing.T) {
	tests := []struct {
		retryAfter time.Duration
		want       int
	}{
		{0, 1},
		{-time.Second, 1},
		{300 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{25 * time.Second, 25},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RetrySeconds(tt.retryAfter), "retry after %v", tt.retryAfter)
	}

	err := RateLimit("middleware.ratelimit", 1500*time.Millisecond)
	assert.Equal(t, ERATELIMIT, ErrorCode(err))
	assert.Equal(t, "Too many requests. Retry after 2 seconds.", ErrorMessage(err))
}

func TestAddFieldError(t *testing.T) {
	verr := AddFieldError(nil, "billing.validate", "cardNumber", "Card number is invalid")
	assert.Equal(t, "billing.validate", verr.Op)

	same := AddFieldError(verr, "billing.validate", "city", "This field is required")
	assert.Same(t, verr, same)

	AddFieldError(verr, "billing.validate", "cardNumber", "Card has expired")
	assert.Equal(t, map[string]string{
		"cardNumber": "Card number is invalid",
		"city":       "This field is required",
	}, verr.Fields, "the first message for a field wins")
}

func TestPaymentRequired(t *testing.T) {
	err := PaymentRequired("history.list", "History is a PRO feature")
	assert.Equal(t, EPAYMENT, ErrorCode(err))
	assert.Equal(t, "History is a PRO feature", ErrorMessage(err))
}
