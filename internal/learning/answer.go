package learning

import (
	"encoding/json"
	"fmt"
)

// Answer mirrors the content shape of the exercise it responds to. Exactly
// the fields matching the exercise's variant are expected to be set.
type Answer struct {
	SelectedOption  *int  `json:"selected_option,omitempty"`
	SelectedOptions []int `json:"selected_options,omitempty"`

	// Matching: confirmed left->right assignments, Pairs[i] is the chosen
	// right index for left item i; nil entries are unconfirmed.
	Pairs []*int `json:"pairs,omitempty"`

	// Gap-fill: GapChoices[i] is the chosen option for gap i; nil is unset.
	GapChoices []*int `json:"gap_choices,omitempty"`

	// Multi-step short answer.
	Steps []string `json:"steps,omitempty"`

	// Free text (plain short answer, synthesis note, essay).
	Text string `json:"text,omitempty"`
}

func ParseAnswer(raw []byte) (Answer, error) {
	var a Answer
	if len(raw) == 0 || string(raw) == "null" {
		return a, fmt.Errorf("empty answer")
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return a, fmt.Errorf("decode answer: %w", err)
	}
	return a, nil
}

func (a Answer) ConfirmedPairs() int {
	n := 0
	for _, p := range a.Pairs {
		if p != nil {
			n++
		}
	}
	return n
}
