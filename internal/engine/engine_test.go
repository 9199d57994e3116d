package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/adaptive"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/bank/banktest"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/compose"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/history"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/random"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/scoring"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
)

var epoch = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func testSpec() compose.Spec {
	return compose.Spec{
		TotalItems: 35,
		DomainQuotas: map[string]int{
			"abstract": 7, "numerical": 6, "logical": 5, "verbal": 4,
			"spatial": 4, "technical": 4, "teamwork": 3, "leadership": 2,
		},
		Ratios:          compose.Ratios{Easy: 0.4, Medium: 0.4, Hard: 0.2},
		CooldownSeconds: 3600,
	}
}

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore, *history.ManualClock) {
	t.Helper()
	mem := store.NewMemoryStore()
	clock := history.NewManualClock(epoch)
	e, err := New(Options{
		Bank:            banktest.Standard(t),
		Sessions:        mem,
		Scores:          mem,
		Events:          mem,
		Clock:           clock,
		Source:          random.New(5),
		CooldownEnabled: true,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return e, mem, clock
}

// answerAll answers the first correctCount items correctly and the rest
// with a wrong choice.
func answerAll(test *compose.Test, correctCount int) []compose.Answer {
	answers := make([]compose.Answer, len(test.Items))
	for i, it := range test.Items {
		sel := it.CorrectIndex
		if i >= correctCount {
			sel = (it.CorrectIndex + 1) % len(it.Choices)
		}
		answers[i] = compose.Answer{DisplayID: it.DisplayID, Selected: sel, ElapsedSeconds: 10}
	}
	return answers
}

func TestNew_RequiresBankAndStore(t *testing.T) {
	_, err := New(Options{Sessions: store.NewMemoryStore()})
	assert.Error(t, err)
	_, err = New(Options{Bank: banktest.Standard(t)})
	assert.Error(t, err)
}

func TestEngine_ComposeSubmitFlow(t *testing.T) {
	ctx := context.Background()
	e, mem, clock := newTestEngine(t)

	test, err := e.Compose(ctx, "alice", testSpec())
	require.NoError(t, err)
	_, ok := e.Pending(test.ID)
	assert.True(t, ok)

	report, err := e.Submit(ctx, test.ID, answerAll(test, 28), SubmitOptions{WithPercentile: true})
	require.NoError(t, err)
	assert.Equal(t, 28, report.RawScore)
	assert.Equal(t, 35, report.Total)
	assert.Equal(t, 80, report.Percentage)
	assert.Equal(t, "Very Good", report.PerformanceLevel)
	assert.Nil(t, report.Percentile)
	assert.Equal(t, scoring.InsufficientData, report.PercentileNote)
	assert.Len(t, report.Mastery, 8)

	// Graded questions are consumed and the cooldown starts.
	status, err := e.Status(ctx, "alice", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, history.StatusInCooldown, status.Status)
	assert.Equal(t, 35, status.UsedCount)
	assert.Equal(t, 85, status.Unused)
	assert.Equal(t, 3600, status.RemainingS)
	require.NotNil(t, status.LastAttempt)
	assert.Equal(t, epoch, *status.LastAttempt)

	scores, err := mem.Scores(ctx, scoring.TestTypeGeneral)
	require.NoError(t, err)
	assert.Equal(t, []int{80}, scores)

	events, err := e.Attempts(ctx, "alice", store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, store.EventAttemptGraded, events[0].Kind)
	assert.Equal(t, ModeComposed, events[0].Mode)
	assert.ElementsMatch(t, test.QuestionIDs(), events[0].QuestionIDs)

	// A test is graded once.
	_, err = e.Submit(ctx, test.ID, nil, SubmitOptions{})
	assert.ErrorIs(t, err, ErrUnknownTest)

	// Retake inside the cooldown is refused.
	_, err = e.Compose(ctx, "alice", testSpec())
	assert.True(t, compose.IsRetakeNotAllowed(err))

	clock.Advance(time.Hour)
	next, err := e.Compose(ctx, "alice", testSpec())
	require.NoError(t, err)
	for _, id := range next.QuestionIDs() {
		assert.NotContains(t, test.QuestionIDs(), id)
	}
}

func TestEngine_PercentileAgainstEarlierScores(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)
	for _, pct := range []int{40, 60, 80, 100} {
		require.NoError(t, mem.AppendScore(ctx, store.ScoreEntry{TestType: scoring.TestTypeGeneral, Percentage: pct}))
	}

	test, err := e.Compose(ctx, "bob", testSpec())
	require.NoError(t, err)
	report, err := e.Submit(ctx, test.ID, answerAll(test, 21), SubmitOptions{WithPercentile: true})
	require.NoError(t, err)

	assert.Equal(t, 60, report.Percentage)
	require.NotNil(t, report.Percentile)
	assert.Equal(t, 50.0, *report.Percentile)
}

func TestEngine_SubmitRejectsUnknownDisplayIDs(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	test, err := e.Compose(ctx, "carol", testSpec())
	require.NoError(t, err)
	answers := append(answerAll(test, 35)[:10], compose.Answer{DisplayID: 500, Selected: 0})

	report, err := e.Submit(ctx, test.ID, answers, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, 10, report.RawScore)
	assert.Equal(t, 25, report.Unanswered)
	assert.Equal(t, []string{"display:500"}, report.Rejected)
}

func TestEngine_LiveSession(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	s, err := e.StartLive(ctx, "dana", time.Hour)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		q, err := s.Next(ctx, "verbal")
		require.NoError(t, err)
		sel := 0
		for j, c := range q.Choices {
			if c == "correct" {
				sel = j
			}
		}
		_, err = s.Answer(sel, 5*time.Second)
		require.NoError(t, err)
	}
	assert.Equal(t, adaptive.MaxLevel, s.Controller().Level("verbal"))

	report, err := e.FinishLive(ctx, "dana", s, "", SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.RawScore)
	assert.Equal(t, adaptive.MasteryExpert, report.Mastery["verbal"])

	events, err := e.Attempts(ctx, "dana", store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ModeLive, events[0].Mode)

	_, err = e.StartLive(ctx, "dana", time.Hour)
	assert.True(t, compose.IsRetakeNotAllowed(err))
}

func TestEngine_ResetHistory(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	test, err := e.Compose(ctx, "erin", testSpec())
	require.NoError(t, err)
	_, err = e.Submit(ctx, test.ID, answerAll(test, 35), SubmitOptions{})
	require.NoError(t, err)

	require.NoError(t, e.ResetHistory(ctx, "erin", "admin request"))

	status, err := e.Status(ctx, "erin", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, history.StatusNew, status.Status)
	assert.Zero(t, status.UsedCount)
	assert.Nil(t, status.LastAttempt)

	events, err := e.Attempts(ctx, "erin", store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.EventHistoryReset, events[1].Kind)
	assert.Equal(t, "admin request", events[1].Note)
}

func TestEngine_GradeResponsesIsPure(t *testing.T) {
	e, _, _ := newTestEngine(t)
	key := scoring.AnswerKey{
		"q1": {Domain: "verbal", CorrectIndex: 2},
		"q2": {Domain: "verbal", CorrectIndex: 0},
	}
	responses := []scoring.Response{{QuestionID: "q1", Selected: 2}, {QuestionID: "q2", Selected: 1}}

	a := e.GradeResponses(responses, key, scoring.TestTypeSituational)
	b := e.GradeResponses(responses, key, scoring.TestTypeSituational)
	assert.Equal(t, a, b)
	assert.Equal(t, 50, a.Percentage)
	assert.Equal(t, "Needs Development", a.PerformanceLevel)

	status, err := e.Status(context.Background(), "nobody", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, history.StatusNew, status.Status)
}

func TestEngine_RecomposeAvoidsOutstandingTest(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	first, err := e.Compose(ctx, "frank", testSpec())
	require.NoError(t, err)
	second, err := e.Compose(ctx, "frank", testSpec())
	require.NoError(t, err)
	assert.False(t, second.HistoryReset)
	for _, id := range second.QuestionIDs() {
		assert.NotContains(t, first.QuestionIDs(), id)
	}

	// The replaced test can no longer be submitted.
	_, ok := e.Pending(first.ID)
	assert.False(t, ok)
	_, err = e.Submit(ctx, first.ID, nil, SubmitOptions{})
	assert.ErrorIs(t, err, ErrUnknownTest)

	_, err = e.Submit(ctx, second.ID, answerAll(second, 35), SubmitOptions{})
	require.NoError(t, err)
}

func TestEngine_PendingHoldsOneTestPerUser(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	for i := 0; i < 20; i++ {
		_, err := e.Compose(ctx, "gina", testSpec())
		require.NoError(t, err)
	}
	_, err := e.Compose(ctx, "hank", testSpec())
	require.NoError(t, err)

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Len(t, e.pending, 2)
	assert.Len(t, e.byUser, 2)
}

func TestEngine_EmptyLiveSessionIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)

	s, err := e.StartLive(ctx, "ivy", time.Hour)
	require.NoError(t, err)
	report, err := e.FinishLive(ctx, "ivy", s, "", SubmitOptions{WithPercentile: true})
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Equal(t, scoring.InsufficientData, report.PercentileNote)

	status, err := e.Status(ctx, "ivy", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, history.StatusNew, status.Status)

	scores, err := mem.Scores(ctx, scoring.TestTypeGeneral)
	require.NoError(t, err)
	assert.Empty(t, scores)

	events, err := e.Attempts(ctx, "ivy", store.QueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
