package compose

import (
	"time"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/choice"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/scoring"
)

// Item is one question of a composed test.
type Item struct {
	DisplayID int `json:"display_id"`
	choice.Instance
}

// Test is a composed test. It lives only until it is graded; the answer
// positions it holds must not be sent to the client (use Public).
type Test struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	TestType     string      `json:"test_type"`
	GeneratedAt  time.Time   `json:"generated_at"`
	Items        []Item      `json:"items"`
	Shortfalls   []Shortfall `json:"shortfalls,omitempty"`
	HistoryReset bool        `json:"history_reset,omitempty"`
}

// PublicTest is the client view of a Test.
type PublicTest struct {
	TestID      string          `json:"test_id"`
	TestType    string          `json:"test_type"`
	GeneratedAt time.Time       `json:"generated_at"`
	Items       []choice.Public `json:"items"`
}

// Answer is a client's answer to one displayed item.
type Answer struct {
	DisplayID      int     `json:"display_id"`
	Selected       int     `json:"selected"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Public strips answers from the test.
func (t *Test) Public() PublicTest {
	items := make([]choice.Public, len(t.Items))
	for i, it := range t.Items {
		items[i] = it.Instance.Public(it.DisplayID)
	}
	return PublicTest{
		TestID:      t.ID,
		TestType:    t.TestType,
		GeneratedAt: t.GeneratedAt,
		Items:       items,
	}
}

// QuestionIDs returns the bank ids of the items in display order.
func (t *Test) QuestionIDs() []string {
	ids := make([]string, len(t.Items))
	for i, it := range t.Items {
		ids[i] = it.QuestionID
	}
	return ids
}

// DomainCounts returns how many items each domain contributed.
func (t *Test) DomainCounts() map[string]int {
	out := make(map[string]int)
	for _, it := range t.Items {
		out[it.Domain]++
	}
	return out
}

// Key returns the answer key for grading.
func (t *Test) Key() scoring.AnswerKey {
	key := make(scoring.AnswerKey, len(t.Items))
	for _, it := range t.Items {
		key[it.QuestionID] = scoring.KeyEntry{
			Domain:       it.Domain,
			Difficulty:   string(it.Difficulty),
			CorrectIndex: it.CorrectIndex,
		}
	}
	return key
}

// Responses maps display-id answers to graded responses. Answers for display
// ids outside the test are returned in unknown so the caller can report them.
func (t *Test) Responses(answers []Answer) (responses []scoring.Response, unknown []int) {
	byDisplay := make(map[int]string, len(t.Items))
	for _, it := range t.Items {
		byDisplay[it.DisplayID] = it.QuestionID
	}
	for _, a := range answers {
		id, ok := byDisplay[a.DisplayID]
		if !ok {
			unknown = append(unknown, a.DisplayID)
			continue
		}
		responses = append(responses, scoring.Response{
			QuestionID:     id,
			Selected:       a.Selected,
			ElapsedSeconds: a.ElapsedSeconds,
		})
	}
	return responses, unknown
}
