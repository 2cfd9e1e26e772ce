package domain

import (
	"time"

	"github.com/google/uuid"
)

// Problem is a solved problem kept in a PRO user's history.
type Problem struct {
	ID          uuid.UUID    `json:"id"`
	UserID      string       `json:"-"`
	Kind        Kind         `json:"kind"`
	ProblemText string       `json:"problem_text"`
	ImageKey    string       `json:"-"`
	Topic       string       `json:"topic"`
	Difficulty  Difficulty   `json:"difficulty"`
	Solution    SolutionBody `json:"solution"`
	IsFavorite  bool         `json:"is_favorite"`
	CreatedAt   time.Time    `json:"created_at"`

	// Populated by services, not stored.
	ImageURL string `json:"image_url,omitempty"`
}

// HasImage reports whether the problem was submitted as a photo that was kept.
func (p *Problem) HasImage() bool {
	return p.ImageKey != ""
}

// NewProblem builds a history record from a completed analysis.
func NewProblem(userID string, kind Kind, sol Solution, imageKey string, now time.Time) *Problem {
	return &Problem{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        kind,
		ProblemText: sol.ProblemText,
		ImageKey:    imageKey,
		Topic:       sol.Topic,
		Difficulty:  sol.Difficulty,
		Solution:    sol.Solution,
		CreatedAt:   now,
	}
}
