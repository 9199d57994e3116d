// Package redisstore is a Redis-backed store.SessionStore. Each user's
// history is one hash; compare-and-swap uses WATCH/MULTI on that key only.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
)

const (
	fieldUsedIDs     = "used_ids"
	fieldLastAttempt = "last_attempt"
	fieldVersion     = "version"
)

// Store implements store.SessionStore on Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// Open parses a redis:// URL, connects and pings.
func Open(redisURL, keyPrefix string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, keyPrefix), nil
}

// New wraps an existing client. keyPrefix defaults to "careerquest:".
func New(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "careerquest:"
	}
	return &Store{client: client, prefix: keyPrefix}
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(userID string) string {
	return s.prefix + "history:" + userID
}

func (s *Store) Get(ctx context.Context, userID string) (*store.HistoryRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decode(userID, fields)
}

func (s *Store) Put(ctx context.Context, rec *store.HistoryRecord) error {
	rawIDs, lastNs, err := encode(rec)
	if err != nil {
		return err
	}
	key := s.key(rec.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldUsedIDs, rawIDs, fieldLastAttempt, lastNs)
		pipe.HIncrBy(ctx, key, fieldVersion, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put history: %w", err)
	}
	return nil
}

func (s *Store) CompareAndSwap(ctx context.Context, oldVersion int64, rec *store.HistoryRecord) (bool, error) {
	rawIDs, lastNs, err := encode(rec)
	if err != nil {
		return false, err
	}
	key := s.key(rec.UserID)

	swapped := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != oldVersion {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldUsedIDs, rawIDs,
				fieldLastAttempt, lastNs,
				fieldVersion, oldVersion+1,
			)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, key)

	// Another writer touched the key between WATCH and EXEC.
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("swap history: %w", err)
	}
	return swapped, nil
}

func encode(rec *store.HistoryRecord) (string, int64, error) {
	rawIDs, err := store.MarshalUsedIDs(rec.UsedIDs)
	if err != nil {
		return "", 0, err
	}
	var lastNs int64
	if !rec.LastAttempt.IsZero() {
		lastNs = rec.LastAttempt.UnixNano()
	}
	return rawIDs, lastNs, nil
}

func decode(userID string, fields map[string]string) (*store.HistoryRecord, error) {
	used, err := store.UnmarshalUsedIDs(fields[fieldUsedIDs])
	if err != nil {
		return nil, err
	}
	rec := &store.HistoryRecord{UserID: userID, UsedIDs: used}

	if v := fields[fieldLastAttempt]; v != "" && v != "0" {
		ns, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse last_attempt: %w", err)
		}
		rec.LastAttempt = time.Unix(0, ns).UTC()
	}
	if v := fields[fieldVersion]; v != "" {
		rec.Version, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version: %w", err)
		}
	}
	return rec, nil
}
