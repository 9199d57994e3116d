package bank

import "strings"

// Difficulty is the difficulty band a question belongs to.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// AllDifficulties returns the bands in ascending order.
func AllDifficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard}
}

// ParseDifficulty normalizes s and reports whether it names a known band.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case Easy, Medium, Hard:
		return d, true
	}
	return "", false
}

// Level returns the 1-based level of the band (easy=1, medium=2, hard=3).
func (d Difficulty) Level() int {
	switch d {
	case Easy:
		return 1
	case Medium:
		return 2
	case Hard:
		return 3
	}
	return 0
}

// DifficultyForLevel maps a 1-based level back to its band.
func DifficultyForLevel(level int) Difficulty {
	switch level {
	case 1:
		return Easy
	case 3:
		return Hard
	default:
		return Medium
	}
}

// Record is a validated question. Records are immutable once loaded; callers
// that need to reorder Choices must copy the slice first.
type Record struct {
	ID         string
	Domain     string
	Difficulty Difficulty
	Prompt     string

	// Choices is the original, ordered list of answer texts (at least 2).
	Choices []string

	// CorrectText is the text of the correct choice.
	CorrectText string

	// CorrectIndex is the first position of CorrectText in Choices.
	CorrectIndex int

	Explanation string
	Tags        []string
}

// Draft is a decoded but not yet validated question record. Validators
// inspect drafts; only drafts that pass every validator become Records.
type Draft struct {
	// Position is the 0-based position of the record in its source.
	Position int

	ID          string
	Domain      string
	Difficulty  string
	Prompt      string
	Choices     []string
	Explanation string
	Tags        []string

	// Exactly one of CorrectIndex / CorrectText is set when the source
	// carried a correct_choice value.
	CorrectIndex *int
	CorrectText  *string
}

// LoadReport summarizes a load: how many records were read and which were
// dropped.
type LoadReport struct {
	Source   string
	Total    int
	Accepted int
	Rejected []*MalformedRecordError
}
