package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// sequenceCounter manages the global monotonic sequence number of the
// attempt log. Rows are keyed by this sequence rather than an auto-increment
// id so the order survives exports and merges.
//
// Uses raw SQL outside the builder because the increment must be a single
// UPDATE ... RETURNING. The mutex serializes within the process; the
// RETURNING clause makes the increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

func (s *Store) AppendAttemptEvent(ctx context.Context, data AttemptEventData) error {
	seqNum, err := s.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	ids := data.QuestionIDs
	if ids == nil {
		ids = []string{}
	}
	rawIDs, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal question ids: %w", err)
	}

	query, args := s.builder().
		Insert(tableAttemptEvents).
		Columns(
			"sequence", "timestamp", "kind", "attempt_id", "user_id", "test_type",
			"mode", "raw_score", "total", "percentage", "performance_level",
			"question_ids", "note",
		).
		Values(
			seqNum, data.Timestamp.UnixNano(), data.Kind, data.AttemptID, data.UserID, data.TestType,
			data.Mode, data.RawScore, data.Total, data.Percentage, data.PerformanceLevel,
			string(rawIDs), data.Note,
		).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save attempt event: %w", err)
	}
	return nil
}

func (s *Store) AttemptEvents(ctx context.Context, userID string, opts QueryOpts) ([]AttemptEvent, error) {
	var preds []*entsql.Predicate
	if userID != "" {
		preds = append(preds, entsql.EQ("user_id", userID))
	}
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", opts.From.UnixNano()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", opts.To.UnixNano()))
	}

	sel := s.builder().
		Select(
			"sequence", "timestamp", "kind", "attempt_id", "user_id", "test_type",
			"mode", "raw_score", "total", "percentage", "performance_level",
			"question_ids", "note",
		).
		From(entsql.Table(tableAttemptEvents)).
		OrderBy(entsql.Asc("sequence"))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempt events: %w", err)
	}
	defer rows.Close()

	var out []AttemptEvent
	for rows.Next() {
		var (
			e      AttemptEvent
			tsNs   int64
			rawIDs string
		)
		err := rows.Scan(
			&e.Sequence, &tsNs, &e.Kind, &e.AttemptID, &e.UserID, &e.TestType,
			&e.Mode, &e.RawScore, &e.Total, &e.Percentage, &e.PerformanceLevel,
			&rawIDs, &e.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attempt event: %w", err)
		}
		e.Timestamp = time.Unix(0, tsNs).UTC()
		if err := json.Unmarshal([]byte(rawIDs), &e.QuestionIDs); err != nil {
			return nil, fmt.Errorf("unmarshal question ids: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
