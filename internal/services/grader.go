package services

import (
	"context"
	"encoding/json"

	"github.com/maturio/maturio-backend/internal/learning"
	"github.com/maturio/maturio-backend/internal/types"
)

// GradeResult is what the external grader returns: a score within
// [0, exercise.Points] and a type-specific structured feedback payload.
type GradeResult struct {
	Score    int             `json:"score"`
	Feedback json.RawMessage `json:"feedback"`
}

// ShortAnswerFeedback is the feedback shape for SHORT_ANSWER and
// SYNTHESIS_NOTE submissions.
type ShortAnswerFeedback struct {
	CorrectElements []string `json:"correct_elements"`
	MissingElements []string `json:"missing_elements"`
	Suggestions     []string `json:"suggestions"`
}

// EssayFeedback carries per-axis sub-scores plus qualitative notes.
type EssayFeedback struct {
	AxisScores map[string]int `json:"axis_scores"`
	Strengths  []string       `json:"strengths"`
	Weaknesses []string       `json:"weaknesses"`
}

// Grader is the external scoring collaborator. Closed types never reach it;
// they are graded deterministically in-process.
type Grader interface {
	Grade(ctx context.Context, exercise *types.Exercise, content learning.Content, answer learning.Answer) (*GradeResult, error)
	// Summarize produces the end-of-session narrative shown on completion.
	Summarize(ctx context.Context, session *types.Session, completed []types.CompletedExercise) (string, error)
}
