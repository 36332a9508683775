package learning

import "github.com/maturio/maturio-backend/internal/types"

// CostTable maps exercise type to its AI-point cost. Closed types are graded
// in-process and cost nothing.
type CostTable map[string]int

func DefaultCostTable() CostTable {
	return CostTable{
		types.ExerciseClosedSingle:   0,
		types.ExerciseClosedMultiple: 0,
		types.ExerciseShortAnswer:    1,
		types.ExerciseSynthesisNote:  1,
		types.ExerciseEssay:          3,
	}
}

func (t CostTable) CostFor(exerciseType string) int {
	return t[exerciseType]
}

// RequiresAIGrading reports whether grading the type consumes the external
// grader (and therefore AI points).
func (t CostTable) RequiresAIGrading(exerciseType string) bool {
	return t.CostFor(exerciseType) > 0
}
