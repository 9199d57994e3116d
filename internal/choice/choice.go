// Package choice shuffles the answer choices of a question while keeping
// track of where the correct answer ended up.
package choice

import (
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/bank"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/random"
)

// Instance is one presentation of a question: its choices in the order a
// candidate sees them and the position of the correct one in that order.
type Instance struct {
	QuestionID string
	Domain     string
	Difficulty bank.Difficulty
	Prompt     string

	// Choices is the shuffled choice list.
	Choices []string

	// CorrectIndex is the first position of the original correct text in
	// Choices. It must never leave the server.
	CorrectIndex int

	Explanation string
}

// Randomize returns a freshly shuffled instance of rec. Each call draws an
// independent permutation from src; rec is not modified.
func Randomize(rec bank.Record, src random.Source) Instance {
	perm := random.Perm(src, len(rec.Choices))
	shuffled := make([]string, len(rec.Choices))
	for i, p := range perm {
		shuffled[i] = rec.Choices[p]
	}

	return Instance{
		QuestionID:   rec.ID,
		Domain:       rec.Domain,
		Difficulty:   rec.Difficulty,
		Prompt:       rec.Prompt,
		Choices:      shuffled,
		CorrectIndex: indexOf(shuffled, rec.CorrectText),
		Explanation:  rec.Explanation,
	}
}

// Public is the client view of an instance. It never carries the answer.
type Public struct {
	DisplayID  int      `json:"display_id"`
	Prompt     string   `json:"prompt"`
	Choices    []string `json:"choices"`
	Domain     string   `json:"domain"`
	Difficulty string   `json:"difficulty"`
}

// Public returns the client view with the given display id.
func (in Instance) Public(displayID int) Public {
	choices := make([]string, len(in.Choices))
	copy(choices, in.Choices)
	return Public{
		DisplayID:  displayID,
		Prompt:     in.Prompt,
		Choices:    choices,
		Domain:     in.Domain,
		Difficulty: string(in.Difficulty),
	}
}

// IsCorrect reports whether selected is the correct position.
func (in Instance) IsCorrect(selected int) bool {
	return selected >= 0 && selected == in.CorrectIndex
}

// indexOf searches by text rather than mapping the original index through
// the permutation, so duplicated texts resolve to their first occurrence.
func indexOf(arr []string, s string) int {
	for i, v := range arr {
		if v == s {
			return i
		}
	}
	return -1
}
