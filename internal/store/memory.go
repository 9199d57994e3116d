package store

import (
	"context"
	"sync"
)

// MemoryStore keeps everything in process memory. It implements
// SessionStore, ScoreRepo and EventRepo and is what tests and the
// "memory" driver use.
type MemoryStore struct {
	mu      sync.Mutex
	history map[string]*HistoryRecord
	scores  map[string][]int
	events  []AttemptEvent
	seq     int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history: make(map[string]*HistoryRecord),
		scores:  make(map[string][]int),
	}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.history[userID]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, rec *HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var version int64
	if cur, ok := m.history[rec.UserID]; ok {
		version = cur.Version
	}
	stored := rec.Clone()
	stored.Version = version + 1
	m.history[rec.UserID] = stored
	return nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, oldVersion int64, rec *HistoryRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current int64
	if cur, ok := m.history[rec.UserID]; ok {
		current = cur.Version
	}
	if current != oldVersion {
		return false, nil
	}
	stored := rec.Clone()
	stored.Version = oldVersion + 1
	m.history[rec.UserID] = stored
	return true, nil
}

func (m *MemoryStore) AppendScore(_ context.Context, e ScoreEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[e.TestType] = append(m.scores[e.TestType], e.Percentage)
	return nil
}

func (m *MemoryStore) Scores(_ context.Context, testType string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.scores[testType]))
	copy(out, m.scores[testType])
	return out, nil
}

func (m *MemoryStore) AppendAttemptEvent(_ context.Context, data AttemptEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	data.QuestionIDs = append([]string(nil), data.QuestionIDs...)
	m.events = append(m.events, AttemptEvent{Sequence: m.seq, AttemptEventData: data})
	return nil
}

func (m *MemoryStore) AttemptEvents(_ context.Context, userID string, opts QueryOpts) ([]AttemptEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AttemptEvent
	for _, e := range m.events {
		if userID != "" && e.UserID != userID {
			continue
		}
		if !opts.matches(e) {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}
