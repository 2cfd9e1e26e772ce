package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/DukeRupert/labsnap/internal/ai"
	"github.com/DukeRupert/labsnap/internal/domain"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	Response *domain.Solution
	Err      error

	// Hook runs inside Analyze before the response is returned, for tests
	// that need to hold a call in flight.
	Hook func(ctx context.Context, params ai.AnalyzeParams)

	// Call tracking for testing
	Calls      int
	LastParams ai.AnalyzeParams
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{logger: logger}
}

// Analyze returns the configured response, or a canned stoichiometry solution.
func (p *Provider) Analyze(ctx context.Context, params ai.AnalyzeParams) (*domain.Solution, error) {
	p.mu.Lock()
	p.Calls++
	p.LastParams = params
	hook, resp, err := p.Hook, p.Response, p.Err
	p.mu.Unlock()

	if hook != nil {
		hook(ctx, params)
	}
	if err := params.Validate(); err != nil {
		return nil, ai.WrapError("analyze", err)
	}
	if err != nil {
		return nil, err
	}
	if resp != nil {
		sol := *resp
		return &sol, nil
	}

	problem := params.ProblemText
	if params.Kind == domain.KindPhoto {
		problem = "Calculate the mass of CO2 produced when 16 g of CH4 burns completely."
	}

	p.logger.Debug("mock analysis", "kind", params.Kind, "user_id", params.UserID)

	return &domain.Solution{
		ProblemText: problem,
		Topic:       "Stoichiometry",
		Difficulty:  domain.DifficultyMedium,
		Solution: domain.SolutionBody{
			Steps: []domain.Step{
				{
					StepNumber:  1,
					Title:       "Write the balanced equation",
					Description: "Methane burns in oxygen to give carbon dioxide and water.",
					Formula:     "CH4 + 2O2 → CO2 + 2H2O",
				},
				{
					StepNumber:  2,
					Title:       "Convert mass to moles",
					Description: "Divide the mass of methane by its molar mass.",
					Formula:     "n = m / M",
					Calculation: "16 g / 16 g/mol = 1 mol CH4",
				},
				{
					StepNumber:  3,
					Title:       "Apply the mole ratio and convert back",
					Description: "One mole of CH4 gives one mole of CO2.",
					Calculation: "1 mol × 44 g/mol = 44 g CO2",
				},
			},
			FinalAnswer: "44 g of CO2",
			Explanation: "Mass is conserved through mole ratios from the balanced equation.",
			Methods: []domain.Method{
				{
					MethodName: "Mass ratio",
					Difficulty: domain.DifficultyEasy,
					Steps: []domain.Step{
						{StepNumber: 1, Title: "Scale", Description: "16 g CH4 × (44 g CO2 / 16 g CH4) = 44 g CO2"},
					},
				},
			},
		},
	}, nil
}

// CallCount returns the number of Analyze calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = 0
	p.LastParams = ai.AnalyzeParams{}
	p.Response = nil
	p.Err = nil
	p.Hook = nil
}
