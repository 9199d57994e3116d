// Package engine wires the bank, composer, tracker, live sessions and
// grading into the operations a host application calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/adaptive"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/bank"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/compose"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/history"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/random"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/scoring"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
)

// Attempt modes recorded in the event log.
const (
	ModeComposed = "composed"
	ModeLive     = "live"
)

// ErrUnknownTest is returned when submitting a test id that was never
// composed or has already been graded.
var ErrUnknownTest = errors.New("unknown or already graded test")

// Options configures an Engine. Bank and Sessions are required.
type Options struct {
	Bank     *bank.Bank
	Sessions store.SessionStore

	// Scores and Events are optional. Without Scores every percentile is
	// "insufficient data"; without Events nothing is audited.
	Scores store.ScoreRepo
	Events store.EventRepo

	Clock           history.Clock
	Source          random.Source
	CooldownEnabled bool
	Adaptive        adaptive.Config
	Bands           map[string]scoring.BandTable
	Logger          *slog.Logger
}

// Engine is safe for concurrent use.
type Engine struct {
	bank     *bank.Bank
	tracker  *history.Tracker
	composer *compose.Composer
	scores   store.ScoreRepo
	events   store.EventRepo
	src      random.Source
	adaptive adaptive.Config
	bands    map[string]scoring.BandTable
	logger   *slog.Logger

	// pending holds at most one ungraded test per user, indexed by test id
	// and by user id.
	mu      sync.Mutex
	pending map[string]*compose.Test
	byUser  map[string]string
}

// New builds an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Bank == nil {
		return nil, fmt.Errorf("engine: bank is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("engine: session store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	src := opts.Source
	if src == nil {
		src = random.NewFromTime()
	}
	// Composer and live sessions share the source across goroutines.
	src = random.NewLocked(src)

	cfg := opts.Adaptive
	if cfg == (adaptive.Config{}) {
		cfg = adaptive.DefaultConfig()
	}
	bands := opts.Bands
	if bands == nil {
		bands = scoring.DefaultBandTables()
	}

	tracker := history.NewTracker(opts.Sessions, history.Options{
		Clock:           opts.Clock,
		CooldownEnabled: opts.CooldownEnabled,
		Logger:          logger,
	})
	return &Engine{
		bank:     opts.Bank,
		tracker:  tracker,
		composer: compose.New(opts.Bank, tracker, compose.Options{Source: src, Logger: logger}),
		scores:   opts.Scores,
		events:   opts.Events,
		src:      src,
		adaptive: cfg,
		bands:    bands,
		logger:   logger,
		pending:  make(map[string]*compose.Test),
		byUser:   make(map[string]string),
	}, nil
}

// Bank returns the engine's question bank.
func (e *Engine) Bank() *bank.Bank { return e.bank }

// Tracker returns the engine's history tracker.
func (e *Engine) Tracker() *history.Tracker { return e.tracker }

// Compose builds a test for userID and keeps its answer key until Submit.
// A user holds one pending test at a time: composing again replaces the
// outstanding test, and the new one avoids its questions.
func (e *Engine) Compose(ctx context.Context, userID string, spec compose.Spec) (*compose.Test, error) {
	var reserved map[string]bool
	e.mu.Lock()
	if prev, ok := e.pending[e.byUser[userID]]; ok {
		reserved = make(map[string]bool, len(prev.Items))
		for _, id := range prev.QuestionIDs() {
			reserved[id] = true
		}
	}
	e.mu.Unlock()

	test, err := e.composer.ComposeReserved(ctx, userID, spec, reserved)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if prevID, ok := e.byUser[userID]; ok {
		delete(e.pending, prevID)
		e.logger.Debug("pending test replaced", "user", userID, "test", prevID)
	}
	e.pending[test.ID] = test
	e.byUser[userID] = test.ID
	e.mu.Unlock()

	if test.HistoryReset {
		e.appendEvent(ctx, store.AttemptEventData{
			Kind:     store.EventHistoryReset,
			UserID:   userID,
			TestType: test.TestType,
			Note:     "unused pool exhausted",
		})
	}
	return test, nil
}

// Pending returns a composed test that has not been graded yet.
func (e *Engine) Pending(testID string) (*compose.Test, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.pending[testID]
	return t, ok
}

// SubmitOptions controls grading.
type SubmitOptions struct {
	WithPercentile bool
}

// Submit grades answers to a composed test, marks its questions as used for
// the test's user and records the score. A test can be submitted once.
func (e *Engine) Submit(ctx context.Context, testID string, answers []compose.Answer, opts SubmitOptions) (*scoring.Report, error) {
	e.mu.Lock()
	test, ok := e.pending[testID]
	if ok {
		delete(e.pending, testID)
		delete(e.byUser, test.UserID)
	}
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("submit %s: %w", testID, ErrUnknownTest)
	}

	report, err := e.SubmitTest(ctx, test, answers, opts)
	if err != nil {
		// Let the caller retry the submission unless a newer test took its place.
		e.mu.Lock()
		if _, taken := e.byUser[test.UserID]; !taken {
			e.pending[testID] = test
			e.byUser[test.UserID] = testID
		}
		e.mu.Unlock()
		return nil, err
	}
	return report, nil
}

// SubmitTest grades answers to a test the caller kept itself, such as one
// written to disk by the CLI. The engine does not check that test was
// graded before.
func (e *Engine) SubmitTest(ctx context.Context, test *compose.Test, answers []compose.Answer, opts SubmitOptions) (*scoring.Report, error) {
	responses, unknown := test.Responses(answers)
	report, err := e.grade(ctx, attempt{
		id:             test.ID,
		userID:         test.UserID,
		testType:       test.TestType,
		mode:           ModeComposed,
		responses:      responses,
		key:            test.Key(),
		questionIDs:    test.QuestionIDs(),
		withPercentile: opts.WithPercentile,
	})
	if err != nil {
		return nil, err
	}
	for _, id := range unknown {
		report.Rejected = append(report.Rejected, "display:"+strconv.Itoa(id))
	}
	return report, nil
}

// GradeResponses grades raw responses against a key without touching any
// history. It backs offline grading.
func (e *Engine) GradeResponses(responses []scoring.Response, key scoring.AnswerKey, testType string) scoring.Report {
	return scoring.Grade(responses, key, scoring.Options{
		TestType: testType,
		Bands:    e.bands,
		Mastery:  e.adaptive.Mastery.Label,
	})
}

// StartLive opens an adaptive session for userID that skips questions the
// user has already been graded on. cooldown is enforced like Compose.
func (e *Engine) StartLive(ctx context.Context, userID string, cooldown time.Duration) (*adaptive.Session, error) {
	ok, remaining, err := e.tracker.CanAttempt(ctx, userID, cooldown)
	if err != nil {
		return nil, fmt.Errorf("check cooldown: %w", err)
	}
	if !ok {
		return nil, &compose.RetakeNotAllowedError{Remaining: remaining}
	}
	hist, err := e.tracker.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return adaptive.NewSession(e.bank, adaptive.SessionOptions{
		Config:  e.adaptive,
		Source:  e.src,
		Exclude: hist.UsedIDs,
	}), nil
}

// FinishLive closes s, grades it and records the attempt like Submit. A
// session that served no questions is graded but not recorded, so it
// neither starts a cooldown nor adds to the score population.
func (e *Engine) FinishLive(ctx context.Context, userID string, s *adaptive.Session, testType string, opts SubmitOptions) (*scoring.Report, error) {
	s.Finish()
	res := s.Result()
	if len(res.Responses) == 0 {
		report := e.GradeResponses(nil, res.Key, testType)
		if opts.WithPercentile {
			report.PercentileNote = scoring.InsufficientData
		}
		e.logger.Info("empty live session not recorded", "user", userID)
		return &report, nil
	}
	report, err := e.grade(ctx, attempt{
		id:             uuid.NewString(),
		userID:         userID,
		testType:       testType,
		mode:           ModeLive,
		responses:      res.Responses,
		key:            res.Key,
		questionIDs:    res.QuestionIDs(),
		withPercentile: opts.WithPercentile,
	})
	if err != nil {
		return nil, err
	}
	// The controller saw every answer in order, so its labels win.
	if report.Mastery == nil && len(res.Mastery) > 0 {
		report.Mastery = make(map[string]string, len(res.Mastery))
	}
	for skill, label := range res.Mastery {
		report.Mastery[skill] = label
	}
	return report, nil
}

// ResetHistory clears a user's history and audits it.
func (e *Engine) ResetHistory(ctx context.Context, userID, note string) error {
	if err := e.tracker.ResetHistory(ctx, userID); err != nil {
		return err
	}
	e.logger.Info("history reset", "user", userID, "note", note)
	e.appendEvent(ctx, store.AttemptEventData{
		Kind:   store.EventHistoryReset,
		UserID: userID,
		Note:   note,
	})
	return nil
}

// UserStatus is a user's lifecycle summary.
type UserStatus struct {
	UserID      string         `json:"user_id"`
	Status      history.Status `json:"status"`
	Remaining   time.Duration  `json:"-"`
	RemainingS  int            `json:"remaining_seconds"`
	UsedCount   int            `json:"used_count"`
	Unused      int            `json:"unused_count"`
	LastAttempt *time.Time     `json:"last_attempt,omitempty"`
}

// Status reports where userID stands against cooldown.
func (e *Engine) Status(ctx context.Context, userID string, cooldown time.Duration) (UserStatus, error) {
	st, remaining, err := e.tracker.Status(ctx, userID, cooldown)
	if err != nil {
		return UserStatus{}, err
	}
	hist, err := e.tracker.Get(ctx, userID)
	if err != nil {
		return UserStatus{}, err
	}
	us := UserStatus{
		UserID:     userID,
		Status:     st,
		Remaining:  remaining,
		RemainingS: int(math.Ceil(remaining.Seconds())),
		UsedCount:  len(hist.UsedIDs),
		Unused:     e.bank.CountAvailable(hist.UsedIDs),
	}
	if !hist.LastAttempt.IsZero() {
		last := hist.LastAttempt
		us.LastAttempt = &last
	}
	return us, nil
}

// Attempts returns userID's audited events.
func (e *Engine) Attempts(ctx context.Context, userID string, opts store.QueryOpts) ([]store.AttemptEvent, error) {
	if e.events == nil {
		return nil, nil
	}
	events, err := e.events.AttemptEvents(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	return events, nil
}

type attempt struct {
	id             string
	userID         string
	testType       string
	mode           string
	responses      []scoring.Response
	key            scoring.AnswerKey
	questionIDs    []string
	withPercentile bool
}

// grade scores a, consumes its questions and stores the score. The
// percentile compares against scores recorded before this one.
func (e *Engine) grade(ctx context.Context, a attempt) (*scoring.Report, error) {
	var population []int
	if a.withPercentile && e.scores != nil {
		pop, err := e.scores.Scores(ctx, a.testType)
		if err != nil {
			return nil, fmt.Errorf("load score population: %w", err)
		}
		population = pop
	}

	report := scoring.Grade(a.responses, a.key, scoring.Options{
		TestType:       a.testType,
		Bands:          e.bands,
		WithPercentile: a.withPercentile,
		Population:     population,
		Mastery:        e.adaptive.Mastery.Label,
	})

	if _, err := e.tracker.RecordAttempt(ctx, a.userID, a.questionIDs); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}

	now := e.tracker.Now()
	if e.scores != nil {
		err := e.scores.AppendScore(ctx, store.ScoreEntry{
			AttemptID:  a.id,
			UserID:     a.userID,
			TestType:   report.TestType,
			Percentage: report.Percentage,
			Timestamp:  now,
		})
		if err != nil {
			// The attempt is already recorded; a missing score only thins
			// future percentile populations.
			e.logger.Error("store score", "attempt", a.id, "error", err)
		}
	}
	e.appendEvent(ctx, store.AttemptEventData{
		Kind:             store.EventAttemptGraded,
		Timestamp:        now,
		AttemptID:        a.id,
		UserID:           a.userID,
		TestType:         report.TestType,
		Mode:             a.mode,
		RawScore:         report.RawScore,
		Total:            report.Total,
		Percentage:       report.Percentage,
		PerformanceLevel: report.PerformanceLevel,
		QuestionIDs:      a.questionIDs,
	})

	e.logger.Info("attempt graded",
		"attempt", a.id,
		"user", a.userID,
		"mode", a.mode,
		"score", report.RawScore,
		"total", report.Total,
		"level", report.PerformanceLevel,
	)
	return &report, nil
}

func (e *Engine) appendEvent(ctx context.Context, data store.AttemptEventData) {
	if e.events == nil {
		return
	}
	if data.Timestamp.IsZero() {
		data.Timestamp = e.tracker.Now()
	}
	if err := e.events.AppendAttemptEvent(ctx, data); err != nil {
		e.logger.Error("append attempt event", "kind", data.Kind, "user", data.UserID, "error", err)
	}
}
