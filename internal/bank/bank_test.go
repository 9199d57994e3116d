package bank

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietOpts() LoadOptions {
	return LoadOptions{
		Source: "test",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

const mixedJSON = `[
  {"id": "q1", "domain": "verbal", "difficulty": "easy", "prompt": "p1",
   "choices": ["a", "b", "c"], "correct_choice": 1, "explanation": "b"},
  {"id": "q2", "domain": "verbal", "difficulty": "Hard", "prompt": "p2",
   "choices": ["x", "y"], "correct_choice": "y", "tags": ["synonyms"]},
  {"id": "q3", "domain": "", "difficulty": "easy", "prompt": "p3",
   "choices": ["a", "b"], "correct_choice": 0},
  {"id": "q4", "domain": "numerical", "difficulty": "extreme", "prompt": "p4",
   "choices": ["a", "b"], "correct_choice": 0},
  {"id": "q5", "domain": "numerical", "difficulty": "medium", "prompt": "p5",
   "choices": ["only"], "correct_choice": 0},
  {"id": "q6", "domain": "numerical", "difficulty": "medium", "prompt": "p6",
   "choices": ["a", "b"], "correct_choice": 5},
  {"id": "q7", "domain": "numerical", "difficulty": "medium", "prompt": "p7",
   "choices": ["a", "b"], "correct_choice": "c"},
  {"id": "q1", "domain": "numerical", "difficulty": "medium", "prompt": "dup",
   "choices": ["a", "b"], "correct_choice": 0},
  {"id": "q8", "domain": "numerical", "difficulty": "medium", "prompt": "p8",
   "choices": ["a", "b"]},
  {"id": "q9", "domain": "numerical", "difficulty": "medium", "prompt": "p9",
   "choices": ["same", "other", "same"], "correct_choice": 2}
]`

func TestLoad_DropsMalformedRecords(t *testing.T) {
	b, report, err := Load(strings.NewReader(mixedJSON), FormatJSON, quietOpts())
	require.NoError(t, err)

	assert.Equal(t, 10, report.Total)
	assert.Equal(t, 3, report.Accepted)
	require.Len(t, report.Rejected, 7)
	assert.Equal(t, 3, b.Len())

	var rejectedIDs []string
	for _, r := range report.Rejected {
		rejectedIDs = append(rejectedIDs, r.ID)
	}
	assert.Equal(t, []string{"q3", "q4", "q5", "q6", "q7", "q1", "q8"}, rejectedIDs)

	// The duplicate is reported at its own position; the first q1 survives.
	dup := report.Rejected[5]
	assert.Equal(t, 7, dup.Position)
	var verr *ValidationError
	require.True(t, errors.As(dup, &verr))
	assert.Equal(t, "duplicate-id", verr.Validator)

	q1, ok := b.Get("q1")
	require.True(t, ok)
	assert.Equal(t, "verbal", q1.Domain)
	assert.Equal(t, "b", q1.CorrectText)
	assert.Equal(t, 1, q1.CorrectIndex)

	q2, ok := b.Get("q2")
	require.True(t, ok)
	assert.Equal(t, Hard, q2.Difficulty)
	assert.Equal(t, 1, q2.CorrectIndex)
	assert.Equal(t, []string{"synonyms"}, q2.Tags)

	// Index 2 points at a duplicated text; the resolved index is its first occurrence.
	q9, ok := b.Get("q9")
	require.True(t, ok)
	assert.Equal(t, "same", q9.CorrectText)
	assert.Equal(t, 0, q9.CorrectIndex)
}

func TestLoad_QuestionsWrapperAndYAML(t *testing.T) {
	doc := `
questions:
  - id: y1
    domain: teamwork
    difficulty: medium
    prompt: "How do you handle conflict?"
    choices: ["Ignore it", "Talk it through", "Escalate"]
    correct_choice: "Talk it through"
  - id: y2
    domain: teamwork
    difficulty: easy
    prompt: "Who owns the sprint goal?"
    choices: ["The team", "The manager"]
    correct_choice: 0
`
	b, report, err := Load(strings.NewReader(doc), FormatYAML, quietOpts())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Accepted)
	assert.Empty(t, report.Rejected)
	assert.Equal(t, []string{"teamwork"}, b.Domains())

	y1, ok := b.Get("y1")
	require.True(t, ok)
	assert.Equal(t, 1, y1.CorrectIndex)
}

func TestLoad_ZeroValidRecords(t *testing.T) {
	doc := `[{"id": "bad", "domain": "x", "difficulty": "easy", "prompt": "p", "choices": ["a"], "correct_choice": 0}]`
	_, report, err := Load(strings.NewReader(doc), FormatJSON, quietOpts())
	require.Error(t, err)

	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "test", lerr.Source)
	assert.ErrorIs(t, err, ErrNoValidRecords)
	require.NotNil(t, report)
	assert.Len(t, report.Rejected, 1)
}

func TestLoad_Unparseable(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format Format
	}{
		{"bad json", `[{`, FormatJSON},
		{"bad yaml", "- id: [", FormatYAML},
		{"scalar document", `42`, FormatJSON},
		{"object without questions", `{"items": []}`, FormatJSON},
		{"empty list", `[]`, FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(strings.NewReader(tt.doc), tt.format, quietOpts())
			var lerr *LoadError
			assert.True(t, errors.As(err, &lerr), "got %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.json")
	require.NoError(t, os.WriteFile(path, []byte(mixedJSON), 0o644))

	b, report, err := LoadFile(path, LoadOptions{Logger: quietOpts().Logger})
	require.NoError(t, err)
	assert.Equal(t, path, report.Source)
	assert.Equal(t, 3, b.Len())

	_, _, err = LoadFile(filepath.Join(dir, "bank.txt"), quietOpts())
	assert.Error(t, err)

	_, _, err = LoadFile(filepath.Join(dir, "missing.json"), quietOpts())
	var lerr *LoadError
	assert.True(t, errors.As(err, &lerr))
}

func testRecords() []Record {
	mk := func(id, domain string, d Difficulty) Record {
		return Record{ID: id, Domain: domain, Difficulty: d, Prompt: id,
			Choices: []string{"a", "b"}, CorrectText: "a"}
	}
	return []Record{
		mk("v-e-1", "verbal", Easy),
		mk("v-e-2", "verbal", Easy),
		mk("v-m-1", "verbal", Medium),
		mk("n-h-1", "numerical", Hard),
		mk("n-e-1", "numerical", Easy),
	}
}

func TestBankIndices(t *testing.T) {
	b, err := New(testRecords())
	require.NoError(t, err)

	assert.Equal(t, []string{"numerical", "verbal"}, b.Domains())
	assert.True(t, b.HasDomain("verbal"))
	assert.False(t, b.HasDomain("spatial"))

	assert.Len(t, b.Band("verbal", Easy), 2)
	assert.Len(t, b.Band("verbal", Hard), 0)
	assert.Len(t, b.Band("spatial", Easy), 0)

	byDomain := b.ByDomain("numerical")
	require.Len(t, byDomain, 2)
	assert.Equal(t, "n-e-1", byDomain[0].ID)

	used := map[string]bool{"v-e-1": true, "n-h-1": true}
	assert.Len(t, b.AvailableBand("verbal", Easy, used), 1)
	assert.Len(t, b.Available(used), 3)
	assert.Equal(t, 3, b.CountAvailable(used))
	assert.Equal(t, 5, b.CountAvailable(nil))

	stats := b.Stats()
	assert.Equal(t, 2, stats["verbal"][Easy])
	assert.Equal(t, 1, stats["numerical"][Hard])
}

func TestBankNew_Errors(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoValidRecords)

	recs := testRecords()
	recs = append(recs, recs[0])
	_, err = New(recs)
	assert.Error(t, err)
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in   string
		want Difficulty
		ok   bool
	}{
		{"easy", Easy, true},
		{" Medium ", Medium, true},
		{"HARD", Hard, true},
		{"expert", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDifficulty(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}

	for _, d := range AllDifficulties() {
		assert.Equal(t, d, DifficultyForLevel(d.Level()))
	}
}

func TestLoader_SingleLoadUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := NewLoader(func() (*Bank, *LoadReport, error) {
		calls.Add(1)
		<-release
		b, err := New(testRecords())
		return b, &LoadReport{Accepted: b.Len()}, err
	})

	const n = 16
	var wg sync.WaitGroup
	results := make([]*Bank, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := l.Get(context.Background())
			assert.NoError(t, err)
			results[i] = b
		}(i)
	}
	close(release)
	wg.Wait()

	// Late callers hit the cache.
	b, err := l.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, b, r)
	}
	assert.Equal(t, 5, l.Report().Accepted)
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	l := NewLoader(func() (*Bank, *LoadReport, error) {
		if calls.Add(1) == 1 {
			return nil, nil, &LoadError{Source: "flaky", Err: io.ErrUnexpectedEOF}
		}
		b, err := New(testRecords())
		return b, nil, err
	})

	_, err := l.Get(context.Background())
	require.Error(t, err)
	assert.Nil(t, l.Report())

	b, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoader_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	l := NewLoader(func() (*Bank, *LoadReport, error) {
		<-release
		return nil, nil, io.EOF
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
