package openai

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
	// DefaultBaseURL is the OpenAI API root
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the default vision-capable chat model
	DefaultModel = "gpt-4o"

	maxTokens   = 3000
	temperature = 0.7

	providerName = "openai"
)

// Config contains configuration for the OpenAI provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Analyzer with the chat completions API in JSON mode.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new OpenAI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	config.ProviderConfig = config.ProviderConfig.WithDefaults()

	return &Provider{
		config: config,
		client: &http.Client{Timeout: config.ProviderConfig.RequestTimeout},
		logger: logger,
	}, nil
}

// Analyze sends the problem to the model and parses its solution.
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
	metrics.AITokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return nil, ai.WrapError("parse response", fmt.Errorf("%w: no choices", ai.EAIMalformedOutput))
	}
	sol, err := ai.ParseSolution(resp.Choices[0].Message.Content)
	if err != nil {
		p.logger.Warn("model returned an unusable solution",
			"model", p.config.Model,
			"finish_reason", resp.Choices[0].FinishReason,
			"error", err,
		)
		return nil, ai.WrapError("parse response", err)
	}

	p.logger.Debug("analysis complete",
		"kind", params.Kind,
		"model", p.config.Model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start),
	)
	return sol, nil
}

func (p *Provider) buildRequest(params ai.AnalyzeParams) apiRequest {
	var user apiMessage
	if params.Kind == domain.KindPhoto {
		dataURL := fmt.Sprintf("data:%s;base64,%s", params.ContentType, base64.StdEncoding.EncodeToString(params.ImageData))
		user = apiMessage{
			Role: "user",
			Content: []apiContentPart{
				{Type: "text", Text: ai.UserPrompt(params)},
				{Type: "image_url", ImageURL: &apiImageURL{URL: dataURL}},
			},
		}
	} else {
		user = apiMessage{Role: "user", Content: ai.UserPrompt(params)}
	}

	return apiRequest{
		Model: p.config.Model,
		Messages: []apiMessage{
			{Role: "system", Content: ai.SystemPrompt},
			user,
		},
		ResponseFormat: apiResponseFormat{Type: "json_object"},
		MaxTokens:      maxTokens,
		Temperature:    temperature,
	}
}

// executeRequest performs a single attempt with a fresh request body.
func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

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
		switch {
		case errResp.Error.Code == "content_policy_violation":
			return ai.EAIContentPolicy
		case strings.Contains(errResp.Error.Code, "image"):
			return fmt.Errorf("%w: %s", ai.EAIInvalidInput, errResp.Error.Message)
		}
		return fmt.Errorf("bad request: %s", errResp.Error.Message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// API request/response types

type apiRequest struct {
	Model          string            `json:"model"`
	Messages       []apiMessage      `json:"messages"`
	ResponseFormat apiResponseFormat `json:"response_format"`
	MaxTokens      int               `json:"max_tokens"`
	Temperature    float64           `json:"temperature"`
}

type apiResponseFormat struct {
	Type string `json:"type"`
}

// apiMessage content is either a string or a list of parts.
type apiMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type apiContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *apiImageURL `json:"image_url,omitempty"`
}

type apiImageURL struct {
	URL string `json:"url"`
}

type apiResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Index        int              `json:"index"`
	Message      apiOutputMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

type apiOutputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}
