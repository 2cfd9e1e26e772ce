package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/DukeRupert/labsnap/internal/domain"
)

// Analyzer turns a chemistry problem into a structured solution.
// A call has exactly one outcome: a solution or an error.
type Analyzer interface {
	Analyze(ctx context.Context, params AnalyzeParams) (*domain.Solution, error)
}

const (
	// MaxImageSize is the largest image sent to a provider (20MB).
	MaxImageSize = 20 * 1024 * 1024

	// MaxProblemTextLength caps typed problems, in characters.
	MaxProblemTextLength = 4000
)

// AnalyzeParams contains the problem to analyze. Photos carry ImageData,
// calculator requests carry ProblemText.
type AnalyzeParams struct {
	Kind        domain.Kind
	ImageData   []byte
	ContentType string
	ProblemText string
	UserID      string // for logging only
}

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Validate checks the params before any network call.
func (p AnalyzeParams) Validate() error {
	switch p.Kind {
	case domain.KindPhoto:
		if len(p.ImageData) == 0 {
			return fmt.Errorf("%w: image is empty", EAIInvalidInput)
		}
		if len(p.ImageData) > MaxImageSize {
			return fmt.Errorf("%w: image size %d exceeds maximum %d", EAIInvalidInput, len(p.ImageData), MaxImageSize)
		}
		if !supportedImageTypes[p.ContentType] {
			return fmt.Errorf("%w: unsupported content type %q", EAIInvalidInput, p.ContentType)
		}
	case domain.KindCalculator:
		if p.ProblemText == "" {
			return fmt.Errorf("%w: problem text is empty", EAIInvalidInput)
		}
		if utf8.RuneCountInString(p.ProblemText) > MaxProblemTextLength {
			return fmt.Errorf("%w: problem text exceeds %d characters", EAIInvalidInput, MaxProblemTextLength)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", EAIInvalidInput, p.Kind)
	}
	return nil
}

// UsageInfo tracks API usage for monitoring
type UsageInfo struct {
	Model        string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// WithDefaults fills unset fields.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	return c
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidInput indicates the image or text cannot be analyzed
	EAIInvalidInput = errors.New("invalid problem input")

	// EAIContentPolicy indicates the input violates content policy
	EAIContentPolicy = errors.New("input violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIMalformedOutput indicates the model answered with something that is
	// not a valid solution document
	EAIMalformedOutput = errors.New("ai returned a malformed solution")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// UserMessage returns the text shown to a user whose analysis failed.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, EAIInvalidInput):
		return "We couldn't read this problem. Try a clearer photo or retype it."
	case errors.Is(err, EAIContentPolicy):
		return "This content can't be analyzed."
	case errors.Is(err, EAIRateLimit):
		return "The solver is busy right now. Please try again in a moment."
	default:
		return "We couldn't analyze the problem. Please try again; your quota was not used."
	}
}
