package adaptive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/bank"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/choice"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/random"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/scoring"
)

var (
	ErrSessionClosed  = errors.New("live session is closed")
	ErrAnswerPending  = errors.New("current question has not been answered")
	ErrNothingPending = errors.New("no question is waiting for an answer")
	ErrUnknownSkill   = errors.New("unknown skill")
	ErrSkillExhausted = errors.New("no unused question left for skill")
)

// SessionOptions configures a live Session.
type SessionOptions struct {
	Config Config

	// Source shuffles pools and choices. Defaults to a time-seeded source.
	Source random.Source

	// Exclude holds question ids the user has already been graded on.
	Exclude map[string]bool
}

// AnswerResult is the outcome of one answer.
type AnswerResult struct {
	QuestionID   string
	Correct      bool
	CorrectIndex int
	Transition   Transition
}

// Result is a finished (or expired) live session, ready for grading.
type Result struct {
	Responses []scoring.Response
	Key       scoring.AnswerKey
	Levels    map[string]int
	Mastery   map[string]string
	Expired   bool
}

// QuestionIDs returns every question served, in serving order.
func (r Result) QuestionIDs() []string {
	ids := make([]string, len(r.Responses))
	for i, resp := range r.Responses {
		ids[i] = resp.QuestionID
	}
	return ids
}

// Session serves one question at a time for one user and adapts the
// difficulty of each skill as answers come in. It never reads the clock;
// callers pass elapsed times. A Session is owned by one goroutine.
type Session struct {
	bank *bank.Bank
	ctrl *Controller
	src  random.Source
	used map[string]bool

	current   *choice.Instance
	served    int
	key       scoring.AnswerKey
	responses []scoring.Response
	closed    bool
	expired   bool
}

// NewSession starts a live session over b.
func NewSession(b *bank.Bank, opts SessionOptions) *Session {
	src := opts.Source
	if src == nil {
		src = random.NewFromTime()
	}
	used := make(map[string]bool, len(opts.Exclude))
	for id := range opts.Exclude {
		used[id] = true
	}
	return &Session{
		bank: b,
		ctrl: NewController(opts.Config),
		src:  src,
		used: used,
		key:  make(scoring.AnswerKey),
	}
}

// Controller exposes the session's controller for inspection.
func (s *Session) Controller() *Controller { return s.ctrl }

// Next draws an unused question for skill at the skill's current band, or
// the nearest band that still has questions, and returns its client view.
func (s *Session) Next(ctx context.Context, skill string) (choice.Public, error) {
	if err := ctx.Err(); err != nil {
		return choice.Public{}, err
	}
	if s.closed {
		return choice.Public{}, ErrSessionClosed
	}
	if s.current != nil {
		return choice.Public{}, ErrAnswerPending
	}
	if !s.bank.HasDomain(skill) {
		return choice.Public{}, fmt.Errorf("%w: %q", ErrUnknownSkill, skill)
	}

	band, ok := s.ctrl.Pick(skill, func(d bank.Difficulty) int {
		return len(s.bank.AvailableBand(skill, d, s.used))
	})
	if !ok {
		return choice.Public{}, fmt.Errorf("%w %q", ErrSkillExhausted, skill)
	}

	pool := s.bank.AvailableBand(skill, band, s.used)
	rec := pool[s.src.IntN(len(pool))]
	in := choice.Randomize(rec, s.src)

	s.used[rec.ID] = true
	s.current = &in
	s.served++
	s.key[rec.ID] = scoring.KeyEntry{
		Domain:       rec.Domain,
		Difficulty:   string(rec.Difficulty),
		CorrectIndex: in.CorrectIndex,
	}
	return in.Public(s.served), nil
}

// Answer scores the pending question and moves the skill's level before
// returning. selected may be scoring.Unanswered.
func (s *Session) Answer(selected int, elapsed time.Duration) (AnswerResult, error) {
	if s.closed {
		return AnswerResult{}, ErrSessionClosed
	}
	if s.current == nil {
		return AnswerResult{}, ErrNothingPending
	}
	in := *s.current
	s.current = nil

	correct := in.IsCorrect(selected)
	if selected < 0 {
		selected = scoring.Unanswered
	}
	s.responses = append(s.responses, scoring.Response{
		QuestionID:     in.QuestionID,
		Selected:       selected,
		ElapsedSeconds: elapsed.Seconds(),
	})
	tr := s.ctrl.Record(in.Domain, correct, elapsed)

	return AnswerResult{
		QuestionID:   in.QuestionID,
		Correct:      correct,
		CorrectIndex: in.CorrectIndex,
		Transition:   tr,
	}, nil
}

// Expire ends the session because its overall timer ran out. A pending
// question is scored as unanswered and can not be retried.
func (s *Session) Expire(elapsed time.Duration) {
	if s.closed {
		return
	}
	if s.current != nil {
		in := *s.current
		s.current = nil
		s.responses = append(s.responses, scoring.Response{
			QuestionID:     in.QuestionID,
			Selected:       scoring.Unanswered,
			ElapsedSeconds: elapsed.Seconds(),
		})
		s.ctrl.Record(in.Domain, false, elapsed)
	}
	s.expired = true
	s.closed = true
}

// Finish closes the session. A pending question is scored as unanswered.
func (s *Session) Finish() {
	if s.closed {
		return
	}
	if s.current != nil {
		in := *s.current
		s.current = nil
		s.responses = append(s.responses, scoring.Response{
			QuestionID: in.QuestionID,
			Selected:   scoring.Unanswered,
		})
		s.ctrl.Record(in.Domain, false, 0)
	}
	s.closed = true
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool { return s.closed }

// Result returns the session's responses and answer key. It may be called
// at any time; grading normally happens after Finish or Expire.
func (s *Session) Result() Result {
	responses := make([]scoring.Response, len(s.responses))
	copy(responses, s.responses)

	key := make(scoring.AnswerKey, len(s.responses))
	for _, r := range s.responses {
		key[r.QuestionID] = s.key[r.QuestionID]
	}

	levels := make(map[string]int)
	for _, skill := range s.ctrl.Skills() {
		levels[skill] = s.ctrl.Level(skill)
	}

	return Result{
		Responses: responses,
		Key:       key,
		Levels:    levels,
		Mastery:   s.ctrl.Mastery(),
		Expired:   s.expired,
	}
}
