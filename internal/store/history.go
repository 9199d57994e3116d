package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

func (s *Store) Get(ctx context.Context, userID string) (*HistoryRecord, error) {
	query, args := s.builder().
		Select("used_ids", "last_attempt", "version").
		From(entsql.Table(tableUserHistory)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	var (
		rawIDs  string
		lastNs  int64
		version int64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&rawIDs, &lastNs, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	rec, err := decodeHistory(userID, rawIDs, lastNs)
	if err != nil {
		return nil, err
	}
	rec.Version = version
	return rec, nil
}

func (s *Store) Put(ctx context.Context, rec *HistoryRecord) error {
	rawIDs, lastNs, err := encodeHistory(rec)
	if err != nil {
		return err
	}

	query, args := s.builder().
		Insert(tableUserHistory).
		Columns("user_id", "used_ids", "last_attempt", "version").
		Values(rec.UserID, rawIDs, lastNs, 1).
		OnConflict(
			entsql.ConflictColumns("user_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("used_ids")
				u.SetExcluded("last_attempt")
				u.Add("version", 1)
			}),
		).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put history: %w", err)
	}
	return nil
}

func (s *Store) CompareAndSwap(ctx context.Context, oldVersion int64, rec *HistoryRecord) (bool, error) {
	rawIDs, lastNs, err := encodeHistory(rec)
	if err != nil {
		return false, err
	}

	var query string
	var args []any
	if oldVersion == 0 {
		query, args = s.builder().
			Insert(tableUserHistory).
			Columns("user_id", "used_ids", "last_attempt", "version").
			Values(rec.UserID, rawIDs, lastNs, 1).
			OnConflict(entsql.ConflictColumns("user_id"), entsql.DoNothing()).
			Query()
	} else {
		query, args = s.builder().
			Update(tableUserHistory).
			Set("used_ids", rawIDs).
			Set("last_attempt", lastNs).
			Set("version", oldVersion+1).
			Where(entsql.And(
				entsql.EQ("user_id", rec.UserID),
				entsql.EQ("version", oldVersion),
			)).
			Query()
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("swap history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap history: %w", err)
	}
	return n == 1, nil
}

// encodeHistory renders the used-id set and the last attempt as Unix
// nanoseconds (0 for never).
func encodeHistory(rec *HistoryRecord) (string, int64, error) {
	rawIDs, err := MarshalUsedIDs(rec.UsedIDs)
	if err != nil {
		return "", 0, err
	}
	var lastNs int64
	if !rec.LastAttempt.IsZero() {
		lastNs = rec.LastAttempt.UnixNano()
	}
	return rawIDs, lastNs, nil
}

func decodeHistory(userID, rawIDs string, lastNs int64) (*HistoryRecord, error) {
	used, err := UnmarshalUsedIDs(rawIDs)
	if err != nil {
		return nil, err
	}
	rec := &HistoryRecord{UserID: userID, UsedIDs: used}
	if lastNs != 0 {
		rec.LastAttempt = time.Unix(0, lastNs).UTC()
	}
	return rec, nil
}

// MarshalUsedIDs renders a used-id set as a sorted JSON list. Backends share
// it so a history exported from one can be read by another.
func MarshalUsedIDs(used map[string]bool) (string, error) {
	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal used ids: %w", err)
	}
	return string(b), nil
}

// UnmarshalUsedIDs parses the output of MarshalUsedIDs.
func UnmarshalUsedIDs(raw string) (map[string]bool, error) {
	var ids []string
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("unmarshal used ids: %w", err)
		}
	}
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		used[id] = true
	}
	return used, nil
}
