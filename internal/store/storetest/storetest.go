// Package storetest holds behavior tests shared by every SessionStore
// backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
)

// RunSessionStore exercises s. User ids are prefixed with prefix so backends
// that share state between runs (Redis, Postgres) do not collide.
func RunSessionStore(t *testing.T, s store.SessionStore, prefix string) {
	t.Helper()
	ctx := context.Background()
	user := func(name string) string { return prefix + name }

	t.Run("get missing", func(t *testing.T) {
		rec, err := s.Get(ctx, user("nobody"))
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("create with version zero", func(t *testing.T) {
		id := user("create")
		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		rec := &store.HistoryRecord{UserID: id, UsedIDs: map[string]bool{"q1": true, "q2": true}, LastAttempt: at}

		ok, err := s.CompareAndSwap(ctx, 0, rec)
		require.NoError(t, err)
		require.True(t, ok)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, map[string]bool{"q1": true, "q2": true}, got.UsedIDs)
		assert.True(t, at.Equal(got.LastAttempt))

		// A second create loses.
		ok, err = s.CompareAndSwap(ctx, 0, rec)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("stale version loses", func(t *testing.T) {
		id := user("stale")
		ok, err := s.CompareAndSwap(ctx, 0, store.NewHistoryRecord(id))
		require.NoError(t, err)
		require.True(t, ok)

		next := store.NewHistoryRecord(id)
		next.UsedIDs["q9"] = true
		ok, err = s.CompareAndSwap(ctx, 1, next)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.CompareAndSwap(ctx, 1, store.NewHistoryRecord(id))
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.True(t, got.UsedIDs["q9"])
		assert.True(t, got.LastAttempt.IsZero())
	})

	t.Run("put overwrites and bumps version", func(t *testing.T) {
		id := user("put")
		require.NoError(t, s.Put(ctx, &store.HistoryRecord{UserID: id, UsedIDs: map[string]bool{"a": true}}))
		require.NoError(t, s.Put(ctx, &store.HistoryRecord{UserID: id, UsedIDs: map[string]bool{"b": true}}))

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.Equal(t, map[string]bool{"b": true}, got.UsedIDs)
	})

	t.Run("concurrent swaps serialize", func(t *testing.T) {
		id := user("race")
		const writers = 8

		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for {
					cur, err := s.Get(ctx, id)
					if !assert.NoError(t, err) {
						return
					}
					var version int64
					next := store.NewHistoryRecord(id)
					if cur != nil {
						version = cur.Version
						next = cur.Clone()
					}
					next.UsedIDs[fmt.Sprintf("q%d", w)] = true
					ok, err := s.CompareAndSwap(ctx, version, next)
					if !assert.NoError(t, err) {
						return
					}
					if ok {
						return
					}
				}
			}(w)
		}
		wg.Wait()

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.UsedIDs, writers, "no update may be lost")
		assert.Equal(t, int64(writers), got.Version)
	})
}
