package statestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadScheduleEmpty(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadSchedule(context.Background())
	require.ErrorIs(t, err, ErrNoState)
}

func TestSaveAndLoadSchedule(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	anchor := time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.SaveSchedule(ctx, ScheduleState{Anchor: anchor, ConfigHash: "abc123"}))

	st, err := s.LoadSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, anchor, st.Anchor)
	assert.Equal(t, "abc123", st.ConfigHash)
	assert.False(t, st.SavedAt.IsZero())

	// second save replaces the single row
	later := anchor.Add(30 * time.Minute)
	require.NoError(t, s.SaveSchedule(ctx, ScheduleState{Anchor: later, ConfigHash: "def456"}))

	st, err = s.LoadSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, later, st.Anchor)
	assert.Equal(t, "def456", st.ConfigHash)
}

func TestRecordAndListBreaks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordBreak(ctx, BreakRecord{
			BreakID:   fmt.Sprintf("break-%d", i),
			StartedAt: start.Add(time.Duration(i) * time.Hour),
			EndedAt:   start.Add(time.Duration(i)*time.Hour + 5*time.Minute),
			Outcome:   "completed",
		}))
	}
	require.NoError(t, s.RecordBreak(ctx, BreakRecord{
		BreakID:   "break-degraded",
		StartedAt: start.Add(4 * time.Hour),
		EndedAt:   start.Add(4*time.Hour + 5*time.Minute),
		Outcome:   "degraded",
		Degraded:  true,
	}))

	recent, err := s.RecentBreaks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "break-degraded", recent[0].BreakID)
	assert.True(t, recent[0].Degraded)
	assert.Equal(t, "break-2", recent[1].BreakID)
}

func TestPruneKeepsRecentHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < historyKeep+25; i++ {
		require.NoError(t, s.RecordBreak(ctx, BreakRecord{
			BreakID:   fmt.Sprintf("break-%d", i),
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
			Outcome:   "completed",
		}))
	}

	pruned, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 25, pruned)

	recent, err := s.RecentBreaks(ctx, historyKeep+100)
	require.NoError(t, err)
	assert.Len(t, recent, historyKeep)
	assert.Equal(t, fmt.Sprintf("break-%d", historyKeep+24), recent[0].BreakID)
}
