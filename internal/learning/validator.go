package learning

import (
	"strings"

	"github.com/maturio/maturio-backend/internal/types"
)

// CanSubmit reports whether the answer is complete enough to submit for the
// given exercise shape. It is pure: callers run it after every edit to gate
// the submit action, and the orchestrator runs it once more before grading.
func CanSubmit(exerciseType string, c Content, a Answer) bool {
	switch exerciseType {
	case types.ExerciseClosedSingle:
		return a.SelectedOption != nil

	case types.ExerciseClosedMultiple:
		if c.IsMatching() {
			return a.ConfirmedPairs() == len(c.Matching.Left)
		}
		if c.IsGapFill() {
			if len(a.GapChoices) != len(c.GapFill.Gaps) {
				return false
			}
			for _, g := range a.GapChoices {
				if g == nil {
					return false
				}
			}
			return true
		}
		return len(a.SelectedOptions) > 0

	case types.ExerciseShortAnswer:
		if c.IsMultiStep() {
			if len(a.Steps) != len(c.Steps) {
				return false
			}
			for _, s := range a.Steps {
				if strings.TrimSpace(s) == "" {
					return false
				}
			}
			return true
		}
		return strings.TrimSpace(a.Text) != ""

	case types.ExerciseSynthesisNote:
		return len(strings.TrimSpace(a.Text)) > 10

	case types.ExerciseEssay:
		return WordCount(a.Text) >= MinWords(c, exerciseType)
	}
	return false
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
