package ai

import (
	"errors"
	"testing"

	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSolution = `{
  "problem_text": "How many moles are in 18 g of water?",
  "topic": "Stoichiometry",
  "difficulty": "Easy",
  "solution": {
    "steps": [
      {"title": "Molar mass", "description": "M(H2O) = 18 g/mol", "formula": "M = 2(1) + 16"},
      {"step_number": 2, "title": "Divide", "description": "n = m / M", "calculation": "18 / 18 = 1"}
    ],
    "final_answer": "1 mol",
    "explanation": "Moles relate mass to particle count.",
    "methods": [
      {"method_name": "Dimensional analysis", "difficulty": "HARD", "steps": [{"description": "18 g x 1 mol/18 g"}]}
    ]
  }
}`

func TestParseSolution(t *testing.T) {
	sol, err := ParseSolution(validSolution)
	require.NoError(t, err)

	assert.Equal(t, "Stoichiometry", sol.Topic)
	assert.Equal(t, domain.DifficultyEasy, sol.Difficulty)
	require.Len(t, sol.Solution.Steps, 2)
	assert.Equal(t, 1, sol.Solution.Steps[0].StepNumber)
	assert.Equal(t, 2, sol.Solution.Steps[1].StepNumber)
	assert.Equal(t, "M = 2(1) + 16", sol.Solution.Steps[0].Formula)
	assert.Equal(t, "1 mol", sol.Solution.FinalAnswer)
	require.Len(t, sol.Solution.Methods, 1)
	assert.Equal(t, domain.DifficultyHard, sol.Solution.Methods[0].Difficulty)
}

func TestParseSolution_StripsFences(t *testing.T) {
	raw := "Here is the answer:\n```json\n" + validSolution + "\n```"

	sol, err := ParseSolution(raw)
	require.NoError(t, err)
	assert.Equal(t, "1 mol", sol.Solution.FinalAnswer)
}

func TestParseSolution_UnknownDifficultyDefaultsToMedium(t *testing.T) {
	sol, err := ParseSolution(`{"difficulty": "brutal", "solution": {"steps": []}}`)
	require.NoError(t, err)
	assert.Equal(t, domain.DifficultyMedium, sol.Difficulty)
	assert.Empty(t, sol.Solution.Steps)
}

func TestParseSolution_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose only", "I cannot solve this problem."},
		{"broken json", `{"solution": {"steps": [}`},
		{"missing solution", `{"topic": "Gases"}`},
		{"missing steps", `{"solution": {"final_answer": "2 L"}}`},
		{"steps not array", `{"solution": {"steps": "first add water"}}`},
		{"step without description", `{"solution": {"steps": [{"title": "x"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol, err := ParseSolution(tt.raw)
			assert.Nil(t, sol)
			assert.True(t, errors.Is(err, EAIMalformedOutput), "got %v", err)
		})
	}
}
