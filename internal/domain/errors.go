package domain

import (
	"errors"
	"fmt"
	"time"
)

// Application error codes
const (
	EINVALID      = "invalid"      // Malformed request or failed validation
	EUNAUTHORIZED = "unauthorized" // Needs a signed-in account
	EPAYMENT      = "payment"      // Needs an active PRO plan
	ENOTFOUND     = "not_found"    // No such record for this user
	ECONFLICT     = "conflict"     // Another solve is in flight
	ETOOLARGE     = "too_large"    // Upload or body over the limit
	ERATELIMIT    = "rate_limit"   // Request flood throttled
	EINTERNAL     = "internal"     // Unexpected server failure
	EUPSTREAM     = "upstream"     // Analysis provider failed
)

// genericMessage is shown in place of internal error details.
const genericMessage = "An internal error occurred. Please try again later."

// Error is an application error. Code picks the HTTP status, Op names the
// failing operation for logs, and Message is safe to show the user.
type Error struct {
	Code    string
	Op      string // e.g. "solve.solve"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates an Error with a formatted message.
func Errorf(code, op, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches a code, op and message to err.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the first *Error in err's chain. Anything
// else is EINTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the user-facing message. Internal errors and plain
// errors never leak their text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return genericMessage
}

// ErrorOp returns the op of the first *Error in err's chain.
func ErrorOp(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// =============================================================================
// Constructors
// =============================================================================

func NotFound(op, resource, id string) *Error {
	return Errorf(ENOTFOUND, op, "%s with ID %q not found", resource, id)
}

func Invalid(op, message string) *Error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

// Unauthorized is returned to the shared demo account for account-only
// features.
func Unauthorized(op, message string) *Error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

// PaymentRequired is returned when a feature needs an active PRO plan.
func PaymentRequired(op, message string) *Error {
	return &Error{Code: EPAYMENT, Op: op, Message: message}
}

func Conflict(op, message string) *Error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

// Internal wraps an unexpected failure. Message is logged, not shown.
func Internal(err error, op, message string) *Error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}

// Upstream wraps a failed call to the analysis provider. The message is shown
// to the user, so it should say whether to retry.
func Upstream(err error, op, message string) *Error {
	return &Error{Code: EUPSTREAM, Op: op, Message: message, Err: err}
}

// RateLimit reports a throttled request. retryAfter is rounded up to whole
// seconds, with a minimum of one.
func RateLimit(op string, retryAfter time.Duration) *Error {
	return Errorf(ERATELIMIT, op, "Too many requests. Retry after %d seconds.", RetrySeconds(retryAfter))
}

// RetrySeconds rounds d up to whole seconds for a Retry-After header.
func RetrySeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// =============================================================================
// Validation
// =============================================================================

// ValidationError carries one message per invalid field, keyed by the
// field's JSON name.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op:     op,
		Fields: map[string]string{field: message},
	}
}

// AddFieldError records a field error on verr, creating it when nil, and
// returns it. An existing message for field is kept.
func AddFieldError(verr *ValidationError, op, field, message string) *ValidationError {
	if verr == nil {
		return NewValidationError(op, field, message)
	}
	if _, exists := verr.Fields[field]; !exists {
		verr.Fields[field] = message
	}
	return verr
}
