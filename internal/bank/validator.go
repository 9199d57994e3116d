package bank

import (
	"fmt"
	"strings"
)

// Validator checks a decoded draft before it becomes a Record.
// Implementations should be stateless; per-load state (ids already
// accepted) is passed in through seen.
type Validator interface {
	// Name returns a short identifier used in error messages and logs.
	Name() string

	// Validate returns nil if the draft passes.
	Validate(d *Draft, seen map[string]bool) *ValidationError
}

// DefaultValidators returns the standard chain, run in order; the first
// failure drops the record.
func DefaultValidators() []Validator {
	return []Validator{
		&StructuralValidator{},
		&CorrectChoiceValidator{},
		&DuplicateValidator{},
	}
}

// StructuralValidator checks required fields and the difficulty band.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(d *Draft, _ map[string]bool) *ValidationError {
	if strings.TrimSpace(d.ID) == "" {
		return &ValidationError{Validator: v.Name(), Message: "id is empty"}
	}
	if strings.TrimSpace(d.Domain) == "" {
		return &ValidationError{Validator: v.Name(), Message: "domain is empty"}
	}
	if _, ok := ParseDifficulty(d.Difficulty); !ok {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("difficulty %q must be \"easy\", \"medium\", or \"hard\"", d.Difficulty),
		}
	}
	if strings.TrimSpace(d.Prompt) == "" {
		return &ValidationError{Validator: v.Name(), Message: "prompt is empty"}
	}
	if len(d.Choices) < 2 {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("need at least 2 choices, got %d", len(d.Choices)),
		}
	}
	return nil
}

// CorrectChoiceValidator checks that correct_choice resolves to a choice,
// either as a 0-based index or as the exact text of one of the choices.
type CorrectChoiceValidator struct{}

func (v *CorrectChoiceValidator) Name() string { return "correct-choice" }

func (v *CorrectChoiceValidator) Validate(d *Draft, _ map[string]bool) *ValidationError {
	switch {
	case d.CorrectIndex != nil:
		if *d.CorrectIndex < 0 || *d.CorrectIndex >= len(d.Choices) {
			return &ValidationError{
				Validator: v.Name(),
				Message:   fmt.Sprintf("correct_choice index %d out of range [0,%d)", *d.CorrectIndex, len(d.Choices)),
			}
		}
	case d.CorrectText != nil:
		if indexOf(d.Choices, *d.CorrectText) < 0 {
			return &ValidationError{
				Validator: v.Name(),
				Message:   fmt.Sprintf("correct_choice %q does not match any choice", *d.CorrectText),
			}
		}
	default:
		return &ValidationError{Validator: v.Name(), Message: "correct_choice is missing"}
	}
	return nil
}

// DuplicateValidator rejects a record whose id was already accepted earlier
// in the same source. The first occurrence wins.
type DuplicateValidator struct{}

func (v *DuplicateValidator) Name() string { return "duplicate-id" }

func (v *DuplicateValidator) Validate(d *Draft, seen map[string]bool) *ValidationError {
	if seen[d.ID] {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("id %q already loaded", d.ID),
		}
	}
	return nil
}

// resolve turns a validated draft into a Record.
func resolve(d *Draft) Record {
	diff, _ := ParseDifficulty(d.Difficulty)

	correct := ""
	if d.CorrectIndex != nil {
		correct = d.Choices[*d.CorrectIndex]
	} else {
		correct = *d.CorrectText
	}

	choices := make([]string, len(d.Choices))
	copy(choices, d.Choices)

	var tags []string
	if len(d.Tags) > 0 {
		tags = make([]string, len(d.Tags))
		copy(tags, d.Tags)
	}

	return Record{
		ID:           d.ID,
		Domain:       strings.TrimSpace(d.Domain),
		Difficulty:   diff,
		Prompt:       d.Prompt,
		Choices:      choices,
		CorrectText:  correct,
		CorrectIndex: indexOf(choices, correct),
		Explanation:  d.Explanation,
		Tags:         tags,
	}
}

// indexOf returns the first position of s in arr, or -1.
func indexOf(arr []string, s string) int {
	for i, v := range arr {
		if v == s {
			return i
		}
	}
	return -1
}
