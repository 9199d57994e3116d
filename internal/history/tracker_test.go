package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newTestTracker(t *testing.T, enabled bool) (*Tracker, *ManualClock, *store.MemoryStore) {
	t.Helper()
	clock := NewManualClock(t0)
	s := store.NewMemoryStore()
	tr := NewTracker(s, Options{
		Clock:           clock,
		CooldownEnabled: enabled,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return tr, clock, s
}

func TestCooldownLifecycle(t *testing.T) {
	tr, clock, _ := newTestTracker(t, true)
	ctx := context.Background()
	cooldown := 10 * time.Minute

	status, _, err := tr.Status(ctx, "alice", cooldown)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, status)

	ok, _, err := tr.CanAttempt(ctx, "alice", cooldown)
	require.NoError(t, err)
	assert.True(t, ok, "a new user may attempt")

	_, err = tr.RecordAttempt(ctx, "alice", []string{"q1", "q2"})
	require.NoError(t, err)

	ok, remaining, err := tr.CanAttempt(ctx, "alice", cooldown)
	require.NoError(t, err)
	assert.False(t, ok, "blocked immediately after a graded attempt")
	assert.Equal(t, cooldown, remaining)

	clock.Advance(cooldown - time.Second)
	status, remaining, err = tr.Status(ctx, "alice", cooldown)
	require.NoError(t, err)
	assert.Equal(t, StatusInCooldown, status)
	assert.Equal(t, time.Second, remaining)

	clock.Advance(time.Second)
	ok, remaining, err = tr.CanAttempt(ctx, "alice", cooldown)
	require.NoError(t, err)
	assert.True(t, ok, "eligible once the cooldown has fully elapsed")
	assert.Zero(t, remaining)

	status, _, err = tr.Status(ctx, "alice", cooldown)
	require.NoError(t, err)
	assert.Equal(t, StatusEligible, status)
}

func TestCooldownDisabled(t *testing.T) {
	tr, _, _ := newTestTracker(t, false)
	ctx := context.Background()
	assert.False(t, tr.CooldownEnabled())

	_, err := tr.RecordAttempt(ctx, "bob", []string{"q1"})
	require.NoError(t, err)

	ok, remaining, err := tr.CanAttempt(ctx, "bob", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, remaining)
}

func TestZeroCooldownAlwaysEligible(t *testing.T) {
	tr, _, _ := newTestTracker(t, true)
	ctx := context.Background()
	_, err := tr.RecordAttempt(ctx, "carol", []string{"q1"})
	require.NoError(t, err)

	ok, _, err := tr.CanAttempt(ctx, "carol", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecordAttemptUnionsIDs(t *testing.T) {
	tr, clock, _ := newTestTracker(t, true)
	ctx := context.Background()

	_, err := tr.RecordAttempt(ctx, "dave", []string{"a", "b"})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	rec, err := tr.RecordAttempt(ctx, "dave", []string{"b", "c"})
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, rec.UsedIDs)
	assert.Equal(t, t0.Add(time.Hour), rec.LastAttempt)
	assert.Equal(t, int64(2), rec.Version)

	got, err := tr.Get(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, rec.UsedIDs, got.UsedIDs)
}

func TestResetHistory(t *testing.T) {
	tr, _, _ := newTestTracker(t, true)
	ctx := context.Background()

	_, err := tr.RecordAttempt(ctx, "erin", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, tr.ResetHistory(ctx, "erin"))

	rec, err := tr.Get(ctx, "erin")
	require.NoError(t, err)
	assert.Empty(t, rec.UsedIDs)
	assert.True(t, rec.LastAttempt.IsZero())

	ok, _, err := tr.CanAttempt(ctx, "erin", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "reset clears the cooldown too")
}

func TestConcurrentRecordAttempt(t *testing.T) {
	tr, _, _ := newTestTracker(t, true)
	ctx := context.Background()

	const writers = 10
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			_, err := tr.RecordAttempt(ctx, "frank", []string{fmt.Sprintf("q%d", w)})
			assert.NoError(t, err)
		}(w)
	}
	// A different user is unaffected by frank's contention.
	_, err := tr.RecordAttempt(ctx, "grace", []string{"x"})
	require.NoError(t, err)
	wg.Wait()

	rec, err := tr.Get(ctx, "frank")
	require.NoError(t, err)
	assert.Len(t, rec.UsedIDs, writers)
}

// conflictingStore fails every compare-and-swap.
type conflictingStore struct {
	*store.MemoryStore
}

func (conflictingStore) CompareAndSwap(context.Context, int64, *store.HistoryRecord) (bool, error) {
	return false, nil
}

func TestRecordAttemptGivesUpUnderContention(t *testing.T) {
	tr := NewTracker(conflictingStore{store.NewMemoryStore()}, Options{
		CooldownEnabled: true,
		MaxRetries:      3,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	_, err := tr.RecordAttempt(context.Background(), "henry", []string{"a"})
	assert.True(t, errors.Is(err, ErrContention))
}

// failingStore returns an error from every call.
type failingStore struct{}

var errBackend = errors.New("backend down")

func (failingStore) Get(context.Context, string) (*store.HistoryRecord, error) {
	return nil, errBackend
}
func (failingStore) Put(context.Context, *store.HistoryRecord) error { return errBackend }
func (failingStore) CompareAndSwap(context.Context, int64, *store.HistoryRecord) (bool, error) {
	return false, errBackend
}

func TestStoreErrorsPropagate(t *testing.T) {
	tr := NewTracker(failingStore{}, Options{CooldownEnabled: true, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx := context.Background()

	_, _, err := tr.CanAttempt(ctx, "ivy", time.Minute)
	assert.ErrorIs(t, err, errBackend)
	_, err = tr.RecordAttempt(ctx, "ivy", nil)
	assert.ErrorIs(t, err, errBackend)
	assert.ErrorIs(t, tr.ResetHistory(ctx, "ivy"), errBackend)
}
