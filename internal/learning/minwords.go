package learning

import (
	"regexp"
	"strconv"

	"github.com/maturio/maturio-backend/internal/types"
)

const (
	defaultMinWordsEssay       = 400
	defaultMinWordsSynthesis   = 100
	defaultMinWordsShortAnswer = 50
)

var (
	// "100-150 words", also en/em dash variants. Lower bound wins.
	wordRangeRe = regexp.MustCompile(`(?i)(\d+)\s*[-–—]\s*(\d+)\s*words`)
	// "minimum 250 words" / "a minimum of 250 words"
	minWordsPhraseRe = regexp.MustCompile(`(?i)minimum\s+(?:of\s+)?(\d+)\s+words`)
)

// MinWords derives the required word minimum for a free-text exercise.
// Priority: explicit range in the textual requirement, then an explicit
// "minimum N words" phrase, then the structured word-limit minimum, then the
// structured min-words field, then the type default.
func MinWords(c Content, exerciseType string) int {
	if m := wordRangeRe.FindStringSubmatch(c.Requirements); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	if m := minWordsPhraseRe.FindStringSubmatch(c.Requirements); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	if c.WordLimit != nil && c.WordLimit.Min > 0 {
		return c.WordLimit.Min
	}
	if c.MinWords != nil && *c.MinWords > 0 {
		return *c.MinWords
	}
	switch exerciseType {
	case types.ExerciseEssay:
		return defaultMinWordsEssay
	case types.ExerciseSynthesisNote:
		return defaultMinWordsSynthesis
	case types.ExerciseShortAnswer:
		return defaultMinWordsShortAnswer
	}
	return 0
}
