package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DukeRupert/labsnap/internal/ai"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const solutionJSON = `{"problem_text":"Find the pH of 0.01 M HCl","topic":"Acids and Bases","difficulty":"easy","solution":{"steps":[{"step_number":1,"title":"Dissociation","description":"HCl dissociates fully"}],"final_answer":"pH = 2"}}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(Config{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
			RequestTimeout: 5 * time.Second,
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":    "chatcmpl-1",
		"model": DefaultModel,
		"choices": []map[string]interface{}{
			{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 120, "completion_tokens": 80},
	})
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, slog.Default())
	assert.Error(t, err)
}

func TestProvider_Analyze_Text(t *testing.T) {
	var got apiRequest
	var rawMessages []map[string]json.RawMessage
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		var envelope struct {
			Messages []map[string]json.RawMessage `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(body, &envelope))
		rawMessages = envelope.Messages

		writeCompletion(w, solutionJSON)
	})

	sol, err := p.Analyze(context.Background(), ai.AnalyzeParams{
		Kind:        domain.KindCalculator,
		ProblemText: "Find the pH of 0.01 M HCl",
	})
	require.NoError(t, err)

	assert.Equal(t, "pH = 2", sol.Solution.FinalAnswer)
	assert.Equal(t, domain.DifficultyEasy, sol.Difficulty)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Equal(t, 3000, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 0.0001)
	require.Len(t, rawMessages, 2)

	var userContent string
	require.NoError(t, json.Unmarshal(rawMessages[1]["content"], &userContent))
	assert.Contains(t, userContent, "0.01 M HCl")
}

func TestProvider_Analyze_PhotoSendsDataURL(t *testing.T) {
	var parts []apiContentPart
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Messages []struct {
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		require.Len(t, envelope.Messages, 2)
		require.NoError(t, json.Unmarshal(envelope.Messages[1].Content, &parts))
		writeCompletion(w, solutionJSON)
	})

	_, err := p.Analyze(context.Background(), ai.AnalyzeParams{
		Kind:        domain.KindPhoto,
		ImageData:   []byte("fake-jpeg"),
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)

	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[1].Type)
	require.NotNil(t, parts[1].ImageURL)
	assert.Equal(t, "data:image/jpeg;base64,ZmFrZS1qcGVn", parts[1].ImageURL.URL)
}

func TestProvider_Analyze_RetriesTransientErrors(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeCompletion(w, solutionJSON)
	})

	sol, err := p.Analyze(context.Background(), ai.AnalyzeParams{Kind: domain.KindCalculator, ProblemText: "x"})
	require.NoError(t, err)
	assert.NotNil(t, sol)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestProvider_Analyze_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		wantCalls int32
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, ai.EAIUnauthorized, 1},
		{"rate limited", http.StatusTooManyRequests, `{}`, ai.EAIRateLimit, 3},
		{"content policy", http.StatusBadRequest, `{"error":{"code":"content_policy_violation","message":"no"}}`, ai.EAIContentPolicy, 1},
		{"bad image", http.StatusBadRequest, `{"error":{"code":"invalid_image_format","message":"unreadable"}}`, ai.EAIInvalidInput, 1},
		{"server error", http.StatusInternalServerError, `{}`, ai.EAIUnavailable, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			sol, err := p.Analyze(context.Background(), ai.AnalyzeParams{Kind: domain.KindCalculator, ProblemText: "x"})
			assert.Nil(t, sol)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestProvider_Analyze_MalformedOutput(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, `{"topic":"Gases","solution":{"final_answer":"22.4 L"}}`)
	})

	_, err := p.Analyze(context.Background(), ai.AnalyzeParams{Kind: domain.KindCalculator, ProblemText: "x"})
	assert.ErrorIs(t, err, ai.EAIMalformedOutput)
}

func TestProvider_Analyze_InvalidParamsSkipsNetwork(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := p.Analyze(context.Background(), ai.AnalyzeParams{Kind: domain.KindCalculator})
	assert.ErrorIs(t, err, ai.EAIInvalidInput)
	assert.Zero(t, atomic.LoadInt32(&calls))
}
