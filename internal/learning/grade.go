package learning

import (
	"encoding/json"

	"github.com/maturio/maturio-backend/internal/types"
)

// ClosedFeedback is the feedback shape for closed-type exercises: a
// correctness flag and the author's explanation.
type ClosedFeedback struct {
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

// GradeClosed scores a closed-type answer against the content's answer key.
// All-or-nothing: the full point value for an exact match, zero otherwise.
func GradeClosed(exerciseType string, c Content, a Answer, points int) (int, ClosedFeedback) {
	correct := false
	switch exerciseType {
	case types.ExerciseClosedSingle:
		correct = c.CorrectOption != nil && a.SelectedOption != nil &&
			*a.SelectedOption == *c.CorrectOption

	case types.ExerciseClosedMultiple:
		switch {
		case c.IsMatching():
			correct = matchingCorrect(c.Matching, a.Pairs)
		case c.IsGapFill():
			correct = gapFillCorrect(c.GapFill, a.GapChoices)
		default:
			correct = sameIndexSet(c.CorrectOptions, a.SelectedOptions)
		}
	}

	score := 0
	if correct {
		score = points
	}
	return score, ClosedFeedback{Correct: correct, Explanation: c.Explanation}
}

func matchingCorrect(m *MatchingContent, pairs []*int) bool {
	if m == nil || len(m.Pairs) != len(m.Left) || len(pairs) != len(m.Left) {
		return false
	}
	for i, want := range m.Pairs {
		if pairs[i] == nil || *pairs[i] != want {
			return false
		}
	}
	return true
}

func gapFillCorrect(g *GapFillContent, choices []*int) bool {
	if g == nil || len(choices) != len(g.Gaps) {
		return false
	}
	for i, gap := range g.Gaps {
		if gap.Correct == nil || choices[i] == nil || *choices[i] != *gap.Correct {
			return false
		}
	}
	return true
}

func sameIndexSet(want, got []int) bool {
	if len(want) == 0 || len(want) != len(got) {
		return false
	}
	seen := make(map[int]bool, len(want))
	for _, w := range want {
		seen[w] = true
	}
	for _, g := range got {
		if !seen[g] {
			return false
		}
	}
	return true
}

// MarshalFeedback encodes any feedback payload for storage on a submission.
func MarshalFeedback(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
