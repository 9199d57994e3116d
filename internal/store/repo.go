package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// HistoryRecord is one user's question history: every question id consumed by
// a graded attempt and the time of the last one.
type HistoryRecord struct {
	UserID      string
	UsedIDs     map[string]bool
	LastAttempt time.Time // zero if the user has never been graded

	// Version is the compare-and-swap token. 0 means the record has never
	// been stored; every successful write increments it.
	Version int64
}

// NewHistoryRecord returns an empty, unstored record for userID.
func NewHistoryRecord(userID string) *HistoryRecord {
	return &HistoryRecord{UserID: userID, UsedIDs: make(map[string]bool)}
}

// Clone returns a deep copy.
func (h *HistoryRecord) Clone() *HistoryRecord {
	c := *h
	c.UsedIDs = make(map[string]bool, len(h.UsedIDs))
	for id := range h.UsedIDs {
		c.UsedIDs[id] = true
	}
	return &c
}

// SessionStore persists HistoryRecords. Implementations must make
// CompareAndSwap atomic per user; no lock spans users.
type SessionStore interface {
	// Get returns the stored record, or nil if the user has none.
	Get(ctx context.Context, userID string) (*HistoryRecord, error)

	// Put stores rec unconditionally and bumps its version.
	Put(ctx context.Context, rec *HistoryRecord) error

	// CompareAndSwap stores rec only if the stored version equals
	// oldVersion (0 meaning "no record yet"). The stored version becomes
	// oldVersion+1. It reports false, with a nil error, on a version
	// mismatch.
	CompareAndSwap(ctx context.Context, oldVersion int64, rec *HistoryRecord) (bool, error)
}

// ScoreEntry is one graded percentage, kept to build percentile populations.
type ScoreEntry struct {
	AttemptID  string
	UserID     string
	TestType   string
	Percentage int
	Timestamp  time.Time
}

// ScoreRepo stores the historical score population per test type.
type ScoreRepo interface {
	// AppendScore records a graded percentage.
	AppendScore(ctx context.Context, e ScoreEntry) error

	// Scores returns every recorded percentage for testType in insertion order.
	Scores(ctx context.Context, testType string) ([]int, error)
}

// Event kinds written to the attempt log.
const (
	EventAttemptGraded = "attempt_graded"
	EventHistoryReset  = "history_reset"
)

// AttemptEventData describes a graded attempt or a history reset.
type AttemptEventData struct {
	Kind             string
	Timestamp        time.Time
	AttemptID        string
	UserID           string
	TestType         string
	Mode             string // "composed" or "live"
	RawScore         int
	Total            int
	Percentage       int
	PerformanceLevel string
	QuestionIDs      []string
	Note             string
}

// AttemptEvent is a stored AttemptEventData with its global sequence number.
type AttemptEvent struct {
	Sequence int64
	AttemptEventData
}

// EventRepo provides append and query access to the attempt log.
type EventRepo interface {
	// AppendAttemptEvent records an event and assigns its sequence number.
	AppendAttemptEvent(ctx context.Context, data AttemptEventData) error

	// AttemptEvents returns a user's events in sequence order. An empty
	// userID matches every user.
	AttemptEvents(ctx context.Context, userID string, opts QueryOpts) ([]AttemptEvent, error)
}

// matches reports whether e passes the filters in opts.
func (opts QueryOpts) matches(e AttemptEvent) bool {
	if opts.After > 0 && e.Sequence <= opts.After {
		return false
	}
	if opts.Before > 0 && e.Sequence >= opts.Before {
		return false
	}
	if !opts.From.IsZero() && e.Timestamp.Before(opts.From) {
		return false
	}
	if !opts.To.IsZero() && e.Timestamp.After(opts.To) {
		return false
	}
	return true
}
