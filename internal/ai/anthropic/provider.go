package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/DukeRupert/labsnap/internal/ai"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/DukeRupert/labsnap/internal/metrics"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default model to use
	DefaultModel = "claude-3-5-sonnet-20241022"

	maxTokens   = 4096
	temperature = 0.7

	providerName = "anthropic"
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // overrides APIBaseURL, for tests
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Analyzer using Anthropic's Messages API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Anthropic AI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	config.ProviderConfig = config.ProviderConfig.WithDefaults()

	return &Provider{
		config: config,
		client: &http.Client{Timeout: config.ProviderConfig.RequestTimeout},
		logger: logger,
	}, nil
}

// Analyze solves a chemistry problem with the Messages API
func (p *Provider) Analyze(ctx context.Context, params ai.AnalyzeParams) (*domain.Solution, error) {
	start := time.Now()

	if err := params.Validate(); err != nil {
		return nil, ai.WrapError("analyze", err)
	}

	body, err := json.Marshal(p.buildRequest(params))
	if err != nil {
		return nil, ai.WrapError("build request", fmt.Errorf("marshal request: %w", err))
	}

	var resp *apiResponse
	err = ai.Retry(ctx, p.config.ProviderConfig, p.logger, func(ctx context.Context) error {
		r, err := p.executeRequest(ctx, body)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		metrics.AICall(providerName, "error")
		return nil, ai.WrapError("execute request", err)
	}
	metrics.AICall(providerName, "success")
	metrics.AITokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text string
	for _, content := range resp.Content {
		if content.Type == "text" {
			text = content.Text
			break
		}
	}
	if text == "" {
		return nil, ai.WrapError("parse response", fmt.Errorf("%w: no text content in response", ai.EAIMalformedOutput))
	}

	sol, err := ai.ParseSolution(text)
	if err != nil {
		p.logger.Warn("model returned an unusable solution", "model", p.config.Model, "stop_reason", resp.StopReason, "error", err)
		return nil, ai.WrapError("parse response", err)
	}

	p.logger.Debug("analysis complete",
		"kind", params.Kind,
		"model", p.config.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", time.Since(start),
	)
	return sol, nil
}

func (p *Provider) buildRequest(params ai.AnalyzeParams) apiRequest {
	content := make([]apiContent, 0, 2)
	if params.Kind == domain.KindPhoto {
		content = append(content, apiContent{
			Type: "image",
			Source: &apiImageSource{
				Type:      "base64",
				MediaType: params.ContentType,
				Data:      base64.StdEncoding.EncodeToString(params.ImageData),
			},
		})
	}
	content = append(content, apiContent{Type: "text", Text: ai.UserPrompt(params)})

	return apiRequest{
		Model:       p.config.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      ai.SystemPrompt,
		Messages:    []apiMessage{{Role: "user", Content: content}},
	}
}

// executeRequest performs a single attempt with a fresh request body.
func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, ai.EAITimeout
		}
		return nil, ai.EAIUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to ai errors
func mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest:
		if errResp.Error.Type == "invalid_request_error" && strings.Contains(strings.ToLower(errResp.Error.Message), "image") {
			return fmt.Errorf("%w: %s", ai.EAIInvalidInput, errResp.Error.Message)
		}
		return fmt.Errorf("bad request: %s", errResp.Error.Message)
	case http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, 529:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// API request/response types

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
	System      string       `json:"system"`
	Messages    []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *apiImageSource `json:"source,omitempty"`
}

type apiImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []apiContentOutput `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
