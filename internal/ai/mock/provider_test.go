package mock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DukeRupert/labsnap/internal/ai"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider(t *testing.T) {
	p := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	sol, err := p.Analyze(ctx, ai.AnalyzeParams{Kind: domain.KindCalculator, ProblemText: "16 g CH4"})
	require.NoError(t, err)
	assert.Equal(t, "16 g CH4", sol.ProblemText)
	assert.Len(t, sol.Solution.Steps, 3)

	p.Err = ai.EAIUnavailable
	_, err = p.Analyze(ctx, ai.AnalyzeParams{Kind: domain.KindCalculator, ProblemText: "x"})
	assert.True(t, errors.Is(err, ai.EAIUnavailable))

	_, err = p.Analyze(ctx, ai.AnalyzeParams{Kind: domain.KindPhoto})
	assert.ErrorIs(t, err, ai.EAIInvalidInput)

	assert.Equal(t, 3, p.CallCount())
	assert.Equal(t, domain.KindPhoto, p.LastParams.Kind)

	p.Reset()
	assert.Zero(t, p.CallCount())
	assert.Nil(t, p.Err)
}
