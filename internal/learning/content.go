package learning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content is the type-specific payload of an exercise. One variant is
// populated per exercise type; CLOSED_MULTIPLE and SHORT_ANSWER additionally
// carry optional sub-shapes (matching, gap-fill, multi-step).
type Content struct {
	// Closed types (plain): selectable options plus the answer key.
	Options        []Option `json:"options,omitempty"`
	CorrectOption  *int     `json:"correct_option,omitempty"`
	CorrectOptions []int    `json:"correct_options,omitempty"`

	// CLOSED_MULTIPLE sub-shapes.
	Matching *MatchingContent `json:"matching,omitempty"`
	GapFill  *GapFillContent  `json:"gap_fill,omitempty"`

	// SHORT_ANSWER multi-step sub-shape.
	Steps []StepPrompt `json:"steps,omitempty"`

	// Author-provided explanation shown with closed-type feedback.
	Explanation string `json:"explanation,omitempty"`

	// Free-text types.
	Prompt       string     `json:"prompt,omitempty"`
	Requirements string     `json:"requirements,omitempty"`
	WordLimit    *WordLimit `json:"word_limit,omitempty"`
	MinWords     *int       `json:"min_words,omitempty"`
}

type Option struct {
	Text string `json:"text"`
}

type MatchingContent struct {
	Left  []string `json:"left"`
	Right []string `json:"right"`
	// Pairs is the answer key: Pairs[i] is the right-column index matching
	// left-column item i.
	Pairs []int `json:"pairs,omitempty"`
}

type GapFillContent struct {
	Text string `json:"text"`
	Gaps []Gap  `json:"gaps"`
}

type Gap struct {
	Options []string `json:"options"`
	Correct *int     `json:"correct,omitempty"`
}

type StepPrompt struct {
	Prompt string `json:"prompt"`
}

type WordLimit struct {
	Min int `json:"min"`
	Max int `json:"max,omitempty"`
}

func ParseContent(raw []byte) (Content, error) {
	var c Content
	if len(raw) == 0 || string(raw) == "null" {
		return c, fmt.Errorf("empty exercise content")
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("decode exercise content: %w", err)
	}
	return c, nil
}

func (c Content) IsMatching() bool {
	return c.Matching != nil && len(c.Matching.Left) > 0
}

func (c Content) IsGapFill() bool {
	return c.GapFill != nil && len(c.GapFill.Gaps) > 0
}

func (c Content) IsMultiStep() bool {
	return len(c.Steps) > 0
}

// PromptText is the searchable text of an exercise: the prompt plus option
// texts, used by the catalog's full-text filter.
func (c Content) PromptText() string {
	parts := []string{strings.TrimSpace(c.Prompt)}
	for _, o := range c.Options {
		parts = append(parts, strings.TrimSpace(o.Text))
	}
	if c.GapFill != nil {
		parts = append(parts, strings.TrimSpace(c.GapFill.Text))
	}
	for _, s := range c.Steps {
		parts = append(parts, strings.TrimSpace(s.Prompt))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
