// Package pgstore is a PostgreSQL-backed store.SessionStore using a version
// column for compare-and-swap.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
)

const createTable = `
CREATE TABLE IF NOT EXISTS assessment_user_history (
	user_id      TEXT PRIMARY KEY,
	used_ids     JSONB NOT NULL DEFAULT '[]'::jsonb,
	last_attempt TIMESTAMPTZ,
	version      BIGINT NOT NULL DEFAULT 0
)`

// Store implements store.SessionStore on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL, pings, and creates the history table.
func Open(databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. Call Migrate before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the history table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Get(ctx context.Context, userID string) (*store.HistoryRecord, error) {
	var (
		rawIDs  string
		last    *time.Time
		version int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT used_ids::text, last_attempt, version
		FROM assessment_user_history
		WHERE user_id = $1
	`, userID).Scan(&rawIDs, &last, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	used, err := store.UnmarshalUsedIDs(rawIDs)
	if err != nil {
		return nil, err
	}
	rec := &store.HistoryRecord{UserID: userID, UsedIDs: used, Version: version}
	if last != nil {
		rec.LastAttempt = last.UTC()
	}
	return rec, nil
}

func (s *Store) Put(ctx context.Context, rec *store.HistoryRecord) error {
	rawIDs, err := store.MarshalUsedIDs(rec.UsedIDs)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO assessment_user_history (user_id, used_ids, last_attempt, version)
		VALUES ($1, $2::jsonb, $3, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET used_ids = EXCLUDED.used_ids,
			last_attempt = EXCLUDED.last_attempt,
			version = assessment_user_history.version + 1
	`, rec.UserID, rawIDs, nullableTime(rec.LastAttempt))
	if err != nil {
		return fmt.Errorf("put history: %w", err)
	}
	return nil
}

func (s *Store) CompareAndSwap(ctx context.Context, oldVersion int64, rec *store.HistoryRecord) (bool, error) {
	rawIDs, err := store.MarshalUsedIDs(rec.UsedIDs)
	if err != nil {
		return false, err
	}

	var query string
	args := []any{rec.UserID, rawIDs, nullableTime(rec.LastAttempt)}
	if oldVersion == 0 {
		query = `
			INSERT INTO assessment_user_history (user_id, used_ids, last_attempt, version)
			VALUES ($1, $2::jsonb, $3, 1)
			ON CONFLICT (user_id) DO NOTHING`
	} else {
		query = `
			UPDATE assessment_user_history
			SET used_ids = $2::jsonb, last_attempt = $3, version = $4 + 1
			WHERE user_id = $1 AND version = $4`
		args = append(args, oldVersion)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("swap history: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
