// Package history tracks which questions each user has already been graded
// on and whether the user is inside a retake cooldown.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
)

// ErrContention is returned when a user's history kept changing underneath
// RecordAttempt or ResetHistory for MaxRetries attempts in a row.
var ErrContention = errors.New("history update lost too many races")

// Status is where a user is in the attempt lifecycle.
type Status string

const (
	StatusNew        Status = "new"
	StatusEligible   Status = "eligible"
	StatusInCooldown Status = "in_cooldown"
)

// Options configures a Tracker.
type Options struct {
	// Clock defaults to SystemClock.
	Clock Clock

	// CooldownEnabled turns retake cooldowns on. When false every
	// eligibility check passes and the Tracker says so in the log once.
	CooldownEnabled bool

	// MaxRetries bounds the compare-and-swap loop. Defaults to 16.
	MaxRetries int

	Logger *slog.Logger
}

// Tracker is the per-user history and cooldown service over a SessionStore.
// It holds no per-user state itself, so one Tracker serves every user.
type Tracker struct {
	store           store.SessionStore
	clock           Clock
	cooldownEnabled bool
	maxRetries      int
	logger          *slog.Logger
}

// NewTracker returns a Tracker over s.
func NewTracker(s store.SessionStore, opts Options) *Tracker {
	t := &Tracker{
		store:           s,
		clock:           opts.Clock,
		cooldownEnabled: opts.CooldownEnabled,
		maxRetries:      opts.MaxRetries,
		logger:          opts.Logger,
	}
	if t.clock == nil {
		t.clock = SystemClock
	}
	if t.maxRetries <= 0 {
		t.maxRetries = 16
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if !t.cooldownEnabled {
		t.logger.Warn("retake cooldown disabled by configuration")
	}
	return t
}

// CooldownEnabled reports the configured flag.
func (t *Tracker) CooldownEnabled() bool { return t.cooldownEnabled }

// Now returns the tracker's clock reading.
func (t *Tracker) Now() time.Time { return t.clock.Now() }

// Get returns the user's history, or an empty unstored record for a new user.
func (t *Tracker) Get(ctx context.Context, userID string) (*store.HistoryRecord, error) {
	rec, err := t.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get history for %s: %w", userID, err)
	}
	if rec == nil {
		return store.NewHistoryRecord(userID), nil
	}
	return rec, nil
}

// RecordAttempt unions ids into the user's used set and stamps the attempt
// time. Concurrent calls for the same user never lose ids.
func (t *Tracker) RecordAttempt(ctx context.Context, userID string, ids []string) (*store.HistoryRecord, error) {
	now := t.clock.Now()
	return t.update(ctx, userID, func(rec *store.HistoryRecord) {
		for _, id := range ids {
			rec.UsedIDs[id] = true
		}
		rec.LastAttempt = now
	})
}

// ResetHistory clears the used set and the attempt time.
func (t *Tracker) ResetHistory(ctx context.Context, userID string) error {
	_, err := t.update(ctx, userID, func(rec *store.HistoryRecord) {
		rec.UsedIDs = make(map[string]bool)
		rec.LastAttempt = time.Time{}
	})
	return err
}

// CanAttempt reports whether the user may start a test now and, if not, how
// long until they may.
func (t *Tracker) CanAttempt(ctx context.Context, userID string, cooldown time.Duration) (bool, time.Duration, error) {
	status, remaining, err := t.Status(ctx, userID, cooldown)
	if err != nil {
		return false, 0, err
	}
	return status != StatusInCooldown, remaining, nil
}

// Status reports the user's lifecycle state and the remaining cooldown.
func (t *Tracker) Status(ctx context.Context, userID string, cooldown time.Duration) (Status, time.Duration, error) {
	rec, err := t.Get(ctx, userID)
	if err != nil {
		return "", 0, err
	}
	if rec.LastAttempt.IsZero() {
		if rec.Version == 0 || len(rec.UsedIDs) == 0 {
			return StatusNew, 0, nil
		}
		return StatusEligible, 0, nil
	}
	if !t.cooldownEnabled || cooldown <= 0 {
		return StatusEligible, 0, nil
	}

	elapsed := t.clock.Now().Sub(rec.LastAttempt)
	if elapsed >= cooldown {
		return StatusEligible, 0, nil
	}
	return StatusInCooldown, cooldown - elapsed, nil
}

// update runs a read-modify-write on the user's history with
// compare-and-swap, retrying when another writer got there first.
func (t *Tracker) update(ctx context.Context, userID string, mutate func(*store.HistoryRecord)) (*store.HistoryRecord, error) {
	for attempt := 0; attempt < t.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cur, err := t.store.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("get history for %s: %w", userID, err)
		}
		var oldVersion int64
		next := store.NewHistoryRecord(userID)
		if cur != nil {
			oldVersion = cur.Version
			next = cur.Clone()
		}
		mutate(next)

		ok, err := t.store.CompareAndSwap(ctx, oldVersion, next)
		if err != nil {
			return nil, fmt.Errorf("save history for %s: %w", userID, err)
		}
		if ok {
			next.Version = oldVersion + 1
			return next, nil
		}
		t.logger.Debug("history version conflict, retrying", "user", userID, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("update history for %s: %w", userID, ErrContention)
}
