package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

func (s *Store) AppendScore(ctx context.Context, e ScoreEntry) error {
	query, args := s.builder().
		Insert(tableScores).
		Columns("attempt_id", "user_id", "test_type", "percentage", "created_at").
		Values(e.AttemptID, e.UserID, e.TestType, e.Percentage, e.Timestamp.UnixNano()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}

func (s *Store) Scores(ctx context.Context, testType string) ([]int, error) {
	query, args := s.builder().
		Select("percentage").
		From(entsql.Table(tableScores)).
		Where(entsql.EQ("test_type", testType)).
		OrderBy(entsql.Asc("id")).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
