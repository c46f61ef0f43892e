package services

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanup-game-system/models"
)

func newTestEngine(t *testing.T) (*StatsEngine, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	return NewStatsEngineWithClock(clock), clock
}

func kinds(events []models.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func types(events []models.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestApplyDeletionTotals(t *testing.T) {
	en, clock := newTestEngine(t)

	sizes := []int64{100, 200, 300}
	for _, size := range sizes {
		_, err := en.ApplyDeletion("S1", "u1", "Alice", "file.txt", size)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	snap := en.Snapshot("S1")
	require.Len(t, snap.Leaderboard, 1)
	assert.Equal(t, int64(3), snap.Leaderboard[0].Items)
	assert.Equal(t, int64(600), snap.Leaderboard[0].Bytes)
	assert.Equal(t, int64(600), snap.TotalBytes)
	assert.Equal(t, int64(3), snap.TotalItems)
}

func TestApplyDeletionRejectsNegativeSize(t *testing.T) {
	en, _ := newTestEngine(t)

	_, err := en.ApplyDeletion("S1", "u1", "Alice", "ok.txt", 10)
	require.NoError(t, err)

	_, err = en.ApplyDeletion("S1", "u1", "Alice", "bad.txt", -1)
	require.ErrorIs(t, err, ErrInvalidSize)

	// Nothing moved on the failed call.
	snap := en.Snapshot("S1")
	assert.Equal(t, int64(1), snap.Leaderboard[0].Items)
	assert.Equal(t, int64(10), snap.Leaderboard[0].Bytes)
}

func TestFirstBloodFiresExactlyOnce(t *testing.T) {
	en, clock := newTestEngine(t)

	events, err := en.ApplyDeletion("S1", "u1", "Alice", "a.txt", 1)
	require.NoError(t, err)
	assert.Contains(t, kinds(events), models.EventFirstBlood)
	assert.Equal(t, models.EventTick, events[0].Kind, "tick is always first")

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		events, err = en.ApplyDeletion("S1", "u1", "Alice", "b.txt", 1)
		require.NoError(t, err)
		assert.NotContains(t, kinds(events), models.EventFirstBlood)
	}
}

func TestLargestItemTiesKeepEarlier(t *testing.T) {
	en, clock := newTestEngine(t)

	_, err := en.ApplyDeletion("S1", "u1", "Alice", "first.bin", 500)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = en.ApplyDeletion("S1", "u1", "Alice", "tie.bin", 500)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = en.ApplyDeletion("S1", "u1", "Alice", "bigger.bin", 501)
	require.NoError(t, err)

	row := en.Snapshot("S1").Leaderboard[0]
	assert.Equal(t, "bigger.bin", row.LargestName)
	assert.Equal(t, int64(501), row.LargestSize)
}

func TestStreakIncrementsAndResets(t *testing.T) {
	en, clock := newTestEngine(t)

	for i := 0; i < 3; i++ {
		_, err := en.ApplyDeletion("S1", "u1", "Alice", "f", 1)
		require.NoError(t, err)
		clock.Advance(2 * time.Second)
	}
	assert.Equal(t, 3, en.Snapshot("S1").Leaderboard[0].Streak)

	// Gap over 8s resets the run to 1.
	clock.Advance(9 * time.Second)
	_, err := en.ApplyDeletion("S1", "u1", "Alice", "f", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, en.Snapshot("S1").Leaderboard[0].Streak)
}

func TestStreakMilestonesFirePerRun(t *testing.T) {
	en, clock := newTestEngine(t)

	var streakKinds []string
	for i := 0; i < 10; i++ {
		events, err := en.ApplyDeletion("S1", "u1", "Alice", "f", 1)
		require.NoError(t, err)
		for _, ev := range events {
			if ev.Type == models.EventStreak {
				streakKinds = append(streakKinds, ev.Kind)
			}
		}
		clock.Advance(time.Second)
	}
	assert.Equal(t, []string{"streak:3", "streak:5", "streak:8", "streak:10"}, streakKinds)

	// After a reset the same milestones can be re-earned.
	clock.Advance(time.Minute)
	streakKinds = nil
	for i := 0; i < 3; i++ {
		events, err := en.ApplyDeletion("S1", "u1", "Alice", "f", 1)
		require.NoError(t, err)
		for _, ev := range events {
			if ev.Type == models.EventStreak {
				streakKinds = append(streakKinds, ev.Kind)
			}
		}
		clock.Advance(time.Second)
	}
	assert.Equal(t, []string{"streak:3"}, streakKinds)
}

func TestChonkFiresOnEveryQualifyingAction(t *testing.T) {
	en, clock := newTestEngine(t)

	big := int64(50 * 1024 * 1024) // exactly at the threshold qualifies
	for i := 0; i < 2; i++ {
		events, err := en.ApplyDeletion("S1", "u1", "Alice", "huge.iso", big)
		require.NoError(t, err)
		assert.Contains(t, types(events), models.EventChonk)
		assert.Contains(t, kinds(events), models.EventBigFile)
		clock.Advance(time.Second)
	}

	events, err := en.ApplyDeletion("S1", "u1", "Alice", "small.txt", big-1)
	require.NoError(t, err)
	assert.NotContains(t, types(events), models.EventChonk)
}

func TestByteMilestonesFireOnce(t *testing.T) {
	en, clock := newTestEngine(t)

	// 60 MB, then another 60 MB crossing the 100 MB line.
	_, err := en.ApplyDeletion("S1", "u1", "Alice", "a", 60*1_000_000)
	require.NoError(t, err)
	clock.Advance(time.Second)

	events, err := en.ApplyDeletion("S1", "u1", "Alice", "b", 60*1_000_000)
	require.NoError(t, err)
	assert.Contains(t, kinds(events), "milestone:100MB")

	// Staying above the threshold never re-fires it.
	clock.Advance(time.Second)
	events, err = en.ApplyDeletion("S1", "u1", "Alice", "c", 1)
	require.NoError(t, err)
	assert.NotContains(t, types(events), models.EventMilestoneBytes)
}

func TestItemMilestonesFireOnce(t *testing.T) {
	en, clock := newTestEngine(t)

	var milestoneKinds []string
	for i := 0; i < 12; i++ {
		events, err := en.ApplyDeletion("S1", "u1", "Alice", "f", 1)
		require.NoError(t, err)
		for _, ev := range events {
			if ev.Type == models.EventMilestoneItems {
				milestoneKinds = append(milestoneKinds, ev.Kind)
			}
		}
		clock.Advance(time.Second)
	}
	assert.Equal(t, []string{"milestone:items:10"}, milestoneKinds)
}

// The spec scenario: a 100 KB delete followed 2s later by a 2 GB delete.
func TestBigDeleteScenario(t *testing.T) {
	en, clock := newTestEngine(t)

	_, err := en.ApplyDeletion("S1", "u1", "Alice", "notes.txt", 100_000)
	require.NoError(t, err)
	clock.Advance(2 * time.Second)

	events, err := en.ApplyDeletion("S1", "u1", "Alice", "backup.tar", 2_000_000_000)
	require.NoError(t, err)

	row := en.Snapshot("S1").Leaderboard[0]
	assert.Equal(t, int64(2), row.Items)
	assert.Equal(t, int64(2_000_100_000), row.Bytes)
	assert.Equal(t, int64(2_000_000_000), row.LargestSize)
	assert.Equal(t, 2, row.Streak)

	got := kinds(events)
	assert.Equal(t, models.EventTick, got[0])
	assert.Contains(t, got, models.EventBigFile)
	// One crossing fires every threshold passed, each exactly once.
	assert.Contains(t, got, "milestone:100MB")
	assert.Contains(t, got, "milestone:500MB")
	assert.Contains(t, got, "milestone:1000MB")
	assert.NotContains(t, got, "milestone:5000MB")

	for _, ev := range events {
		if ev.Type == models.EventMilestoneBytes && ev.Kind == "milestone:1000MB" {
			assert.EqualValues(t, 2000, ev.Payload["totalMB"])
		}
	}
}

func TestRateWindowEvicts(t *testing.T) {
	en, clock := newTestEngine(t)

	for i := 0; i < 5; i++ {
		_, err := en.ApplyDeletion("S1", "u1", "Alice", "f", 1)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	assert.Equal(t, 5, en.Snapshot("S1").Leaderboard[0].RatePerMin)

	clock.Advance(61 * time.Second)
	assert.Equal(t, 0, en.Snapshot("S1").Leaderboard[0].RatePerMin)
}

func TestSnapshotSortedByBytesDesc(t *testing.T) {
	en, clock := newTestEngine(t)

	_, err := en.ApplyDeletion("S1", "u1", "Alice", "a", 100)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = en.ApplyDeletion("S1", "u2", "Bob", "b", 300)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = en.ApplyDeletion("S1", "u3", "Cleo", "c", 200)
	require.NoError(t, err)

	snap := en.Snapshot("S1")
	require.Len(t, snap.Leaderboard, 3)
	assert.Equal(t, "u2", snap.Leaderboard[0].UserID)
	assert.Equal(t, "u3", snap.Leaderboard[1].UserID)
	assert.Equal(t, "u1", snap.Leaderboard[2].UserID)

	assert.InDelta(t, 600.0/1_000_000_000*0.2, snap.TotalCO2Kg, 1e-12)
}

func TestSnapshotTieBreakIsInsertionOrder(t *testing.T) {
	en, clock := newTestEngine(t)

	_, err := en.ApplyDeletion("S1", "zz", "Zoe", "a", 100)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = en.ApplyDeletion("S1", "aa", "Ann", "b", 100)
	require.NoError(t, err)

	snap := en.Snapshot("S1")
	assert.Equal(t, "zz", snap.Leaderboard[0].UserID, "equal bytes keep first-action order")
	assert.Equal(t, "aa", snap.Leaderboard[1].UserID)
}

func TestSessionsAreIndependent(t *testing.T) {
	en, _ := newTestEngine(t)

	_, err := en.ApplyDeletion("S1", "u1", "Alice", "a", 100)
	require.NoError(t, err)
	_, err = en.ApplyDeletion("S2", "u1", "Alice", "a", 900)
	require.NoError(t, err)

	assert.Equal(t, int64(100), en.Snapshot("S1").TotalBytes)
	assert.Equal(t, int64(900), en.Snapshot("S2").TotalBytes)

	en.Reset("S1")
	assert.Empty(t, en.Snapshot("S1").Leaderboard)
	assert.Equal(t, int64(900), en.Snapshot("S2").TotalBytes)
}

// Concurrent deletes on one session must land with exact totals and each
// fire-once milestone firing exactly once, no matter the interleaving.
func TestConcurrentActionsKeepExactTotals(t *testing.T) {
	en, _ := newTestEngine(t)

	const workers = 8
	const perWorker = 25

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []models.Event
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				events, err := en.ApplyDeletion("S1", "u1", "Alice", "f", 1_000_000)
				assert.NoError(t, err)
				mu.Lock()
				all = append(all, events...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	row := en.Snapshot("S1").Leaderboard[0]
	assert.Equal(t, int64(workers*perWorker), row.Items)
	assert.Equal(t, int64(workers*perWorker*1_000_000), row.Bytes)

	counts := map[string]int{}
	for _, ev := range all {
		counts[ev.Kind]++
	}
	for _, kind := range []string{
		"milestone:items:10", "milestone:items:25", "milestone:items:50",
		"milestone:items:100", "milestone:items:200", "milestone:100MB",
	} {
		assert.Equal(t, 1, counts[kind], kind)
	}
	assert.Equal(t, 1, counts[models.EventFirstBlood])
	assert.Equal(t, workers*perWorker, counts[models.EventTick])
}

func TestDisplayNameReconciled(t *testing.T) {
	en, clock := newTestEngine(t)

	_, err := en.ApplyDeletion("S1", "u1", "Alice", "a", 1)
	require.NoError(t, err)
	clock.Advance(time.Second)
	events, err := en.ApplyDeletion("S1", "u1", "Alicia", "b", 1)
	require.NoError(t, err)

	assert.Equal(t, "Alicia", events[0].DisplayName)
	assert.Equal(t, "Alicia", en.Snapshot("S1").Leaderboard[0].DisplayName)
}
