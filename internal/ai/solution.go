package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

var stepSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"description"},
	"properties": map[string]interface{}{
		"step_number": map[string]interface{}{"type": "integer"},
		"title":       map[string]interface{}{"type": "string"},
		"description": map[string]interface{}{"type": "string"},
		"formula":     map[string]interface{}{"type": []interface{}{"string", "null"}},
		"calculation": map[string]interface{}{"type": []interface{}{"string", "null"}},
	},
}

// solutionSchema is the minimum a model answer must satisfy to be shown.
var solutionSchema = gojsonschema.NewGoLoader(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"solution"},
	"properties": map[string]interface{}{
		"problem_text": map[string]interface{}{"type": "string"},
		"topic":        map[string]interface{}{"type": "string"},
		"difficulty":   map[string]interface{}{"type": "string"},
		"solution": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"steps"},
			"properties": map[string]interface{}{
				"steps":        map[string]interface{}{"type": "array", "items": stepSchema},
				"final_answer": map[string]interface{}{"type": "string"},
				"explanation":  map[string]interface{}{"type": "string"},
				"methods": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"method_name": map[string]interface{}{"type": "string"},
							"difficulty":  map[string]interface{}{"type": "string"},
							"steps":       map[string]interface{}{"type": "array", "items": stepSchema},
						},
					},
				},
			},
		},
	},
})

// ParseSolution validates raw model output against the solution schema and
// decodes it. Any failure wraps EAIMalformedOutput.
func ParseSolution(raw string) (*domain.Solution, error) {
	doc := extractJSON(raw)
	if doc == "" {
		return nil, fmt.Errorf("%w: no JSON object in output", EAIMalformedOutput)
	}

	result, err := gojsonschema.Validate(solutionSchema, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", EAIMalformedOutput, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", EAIMalformedOutput, strings.Join(msgs, "; "))
	}

	var sol domain.Solution
	if err := json.Unmarshal([]byte(doc), &sol); err != nil {
		return nil, fmt.Errorf("%w: %v", EAIMalformedOutput, err)
	}
	normalize(&sol)
	return &sol, nil
}

// extractJSON strips markdown fences and surrounding prose from a model answer.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return ""
	}
	return raw[start : end+1]
}

func normalize(sol *domain.Solution) {
	sol.Difficulty = normalizeDifficulty(sol.Difficulty)
	for i := range sol.Solution.Steps {
		if sol.Solution.Steps[i].StepNumber == 0 {
			sol.Solution.Steps[i].StepNumber = i + 1
		}
	}
	for i := range sol.Solution.Methods {
		sol.Solution.Methods[i].Difficulty = normalizeDifficulty(sol.Solution.Methods[i].Difficulty)
	}
}

func normalizeDifficulty(d domain.Difficulty) domain.Difficulty {
	d = domain.Difficulty(strings.ToLower(strings.TrimSpace(string(d))))
	if !d.IsValid() {
		return domain.DifficultyMedium
	}
	return d
}
