package scoring

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleKey() AnswerKey {
	return AnswerKey{
		"v1": {Domain: "verbal", Difficulty: "easy", CorrectIndex: 0},
		"v2": {Domain: "verbal", Difficulty: "medium", CorrectIndex: 2},
		"v3": {Domain: "verbal", Difficulty: "hard", CorrectIndex: 1},
		"n1": {Domain: "numerical", Difficulty: "easy", CorrectIndex: 3},
		"n2": {Domain: "numerical", Difficulty: "hard", CorrectIndex: 0},
	}
}

func sampleResponses() []Response {
	return []Response{
		{QuestionID: "v1", Selected: 0, ElapsedSeconds: 10},
		{QuestionID: "v2", Selected: 1, ElapsedSeconds: 20},
		{QuestionID: "v3", Selected: 1, ElapsedSeconds: 30},
		{QuestionID: "n1", Selected: Unanswered, ElapsedSeconds: 5},
		{QuestionID: "ghost", Selected: 0},
		{QuestionID: "v1", Selected: 3},
	}
}

func TestGrade(t *testing.T) {
	r := Grade(sampleResponses(), sampleKey(), Options{})

	assert.Equal(t, TestTypeGeneral, r.TestType)
	assert.Equal(t, 2, r.RawScore)
	assert.Equal(t, 5, r.Total)
	assert.Equal(t, 40, r.Percentage)
	assert.Equal(t, 2, r.Unanswered, "n1 was skipped and n2 never answered")
	assert.Equal(t, "Needs Improvement", r.PerformanceLevel)
	assert.Equal(t, []string{"ghost"}, r.Rejected)

	assert.Equal(t, DomainScore{Correct: 2, Total: 3, Percentage: 67, AvgSeconds: 20}, r.PerDomain["verbal"])
	assert.Equal(t, DomainScore{Correct: 0, Total: 2, Percentage: 0, AvgSeconds: 5}, r.PerDomain["numerical"])

	require.Len(t, r.Items, 5)
	assert.Equal(t, "n1", r.Items[0].QuestionID)
	assert.Equal(t, Unanswered, r.Items[1].Selected, "n2 has no response")
	assert.True(t, r.Items[2].Correct, "first v1 response wins over the duplicate")

	assert.Nil(t, r.Percentile)
	assert.Empty(t, r.PercentileNote)
	assert.Nil(t, r.Mastery)
}

func TestGrade_Idempotent(t *testing.T) {
	opts := Options{
		TestType:       TestTypeSituational,
		WithPercentile: true,
		Population:     []int{10, 40, 40, 90},
		Mastery: func(acc float64, avg time.Duration) string {
			if acc >= 0.5 {
				return "intermediate"
			}
			return "beginner"
		},
	}

	first, err := json.Marshal(Grade(sampleResponses(), sampleKey(), opts))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := json.Marshal(Grade(sampleResponses(), sampleKey(), opts))
		require.NoError(t, err)
		require.Equal(t, string(first), string(again))
	}
}

func TestGrade_EmptyKey(t *testing.T) {
	r := Grade([]Response{{QuestionID: "x", Selected: 0}}, AnswerKey{}, Options{})
	assert.Equal(t, 0, r.Total)
	assert.Equal(t, 0, r.Percentage)
	assert.Equal(t, []string{"x"}, r.Rejected)
	assert.NotNil(t, r.PerDomain)
}

func TestGrade_MasteryAndPercentile(t *testing.T) {
	key := AnswerKey{}
	var responses []Response
	for i, id := range []string{"a", "b", "c", "d"} {
		key[id] = KeyEntry{Domain: "logic", CorrectIndex: 1}
		sel := 1
		if i == 3 {
			sel = 0
		}
		responses = append(responses, Response{QuestionID: id, Selected: sel, ElapsedSeconds: 12})
	}

	var gotAcc float64
	var gotAvg time.Duration
	r := Grade(responses, key, Options{
		WithPercentile: true,
		Population:     []int{50, 75, 80, 100},
		Mastery: func(acc float64, avg time.Duration) string {
			gotAcc, gotAvg = acc, avg
			return "advanced"
		},
	})

	assert.Equal(t, 75, r.Percentage)
	assert.Equal(t, "Good", r.PerformanceLevel)
	assert.InDelta(t, 0.75, gotAcc, 1e-9)
	assert.Equal(t, 12*time.Second, gotAvg)
	assert.Equal(t, map[string]string{"logic": "advanced"}, r.Mastery)
	require.NotNil(t, r.Percentile)
	assert.Equal(t, 50.0, *r.Percentile)
}

func TestGrade_PercentileInsufficientData(t *testing.T) {
	r := Grade(sampleResponses(), sampleKey(), Options{WithPercentile: true})
	assert.Nil(t, r.Percentile)
	assert.Equal(t, InsufficientData, r.PercentileNote)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		correct, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 rounds half away from zero
		{10, 10, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.correct, tt.total), "%d/%d", tt.correct, tt.total)
	}
}

func TestPercentile(t *testing.T) {
	p, note := Percentile(70, []int{60, 70, 80})
	require.NotNil(t, p)
	assert.Empty(t, note)
	assert.Equal(t, 66.7, *p)

	p, _ = Percentile(0, []int{10})
	require.NotNil(t, p)
	assert.Equal(t, 0.0, *p)
}

func TestBandTables(t *testing.T) {
	tests := []struct {
		table BandTable
		pct   int
		want  string
	}{
		{GeneralBands, 100, "Excellent"},
		{GeneralBands, 90, "Excellent"},
		{GeneralBands, 89, "Very Good"},
		{GeneralBands, 70, "Good"},
		{GeneralBands, 60, "Fair"},
		{GeneralBands, 59, "Needs Improvement"},
		{SituationalBands, 85, "Exceptional"},
		{SituationalBands, 84, "Strong"},
		{SituationalBands, 65, "Competent"},
		{SituationalBands, 55, "Developing"},
		{SituationalBands, 54, "Needs Development"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.table.Level(tt.pct), "%d", tt.pct)
		assert.NoError(t, tt.table.Validate())
	}

	unsorted := BandTable{Bands: []Band{{Min: 50, Label: "ok"}, {Min: 80, Label: "great"}}, Fallback: "low"}
	assert.Equal(t, "great", unsorted.Level(85))
	assert.Equal(t, "ok", unsorted.Level(60))
	assert.Equal(t, "low", unsorted.Level(10))

	assert.Error(t, BandTable{Bands: []Band{{Min: 50, Label: "x"}}}.Validate())
	assert.Error(t, BandTable{Bands: []Band{{Min: 50, Label: "x"}, {Min: 50, Label: "y"}}, Fallback: "z"}.Validate())
	assert.Error(t, BandTable{Bands: []Band{{Min: 150, Label: "x"}}, Fallback: "z"}.Validate())
}

func TestGrade_TestTypeSelectsTable(t *testing.T) {
	key := AnswerKey{}
	var responses []Response
	for i := 0; i < 20; i++ {
		id := string(rune('a' + i))
		key[id] = KeyEntry{Domain: "teamwork", CorrectIndex: 0}
		sel := 0
		if i >= 17 {
			sel = 1
		}
		responses = append(responses, Response{QuestionID: id, Selected: sel})
	}

	// 17/20 = 85%
	assert.Equal(t, "Very Good", Grade(responses, key, Options{}).PerformanceLevel)
	assert.Equal(t, "Exceptional", Grade(responses, key, Options{TestType: TestTypeSituational}).PerformanceLevel)
	assert.Equal(t, "Very Good", Grade(responses, key, Options{TestType: "unknown"}).PerformanceLevel)
}
