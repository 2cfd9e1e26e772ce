package domain

// Difficulty is the analysed difficulty of a problem.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid reports whether d is a known difficulty.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Step is one step of a worked solution.
type Step struct {
	StepNumber  int    `json:"step_number"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Formula     string `json:"formula,omitempty"`
	Calculation string `json:"calculation,omitempty"`
}

// Method is an alternative way to solve the same problem.
type Method struct {
	MethodName string     `json:"method_name"`
	Difficulty Difficulty `json:"difficulty"`
	Steps      []Step     `json:"steps"`
}

// SolutionBody holds the worked answer.
type SolutionBody struct {
	Steps       []Step   `json:"steps"`
	FinalAnswer string   `json:"final_answer"`
	Explanation string   `json:"explanation,omitempty"`
	Methods     []Method `json:"methods,omitempty"`
}

// Solution is the structured analysis of a chemistry problem.
type Solution struct {
	ProblemText string       `json:"problem_text"`
	Topic       string       `json:"topic"`
	Difficulty  Difficulty   `json:"difficulty"`
	Solution    SolutionBody `json:"solution"`
}

// ForPlan returns the view of s a user on plan may see. Without step-by-step
// explanations only the final answer is kept.
func (s Solution) ForPlan(plan Plan) Solution {
	if GetPlanLimits(plan).Features.StepByStepExplanations {
		return s
	}
	return Solution{
		ProblemText: s.ProblemText,
		Topic:       s.Topic,
		Difficulty:  s.Difficulty,
		Solution: SolutionBody{
			Steps:       []Step{},
			FinalAnswer: s.Solution.FinalAnswer,
		},
	}
}
