package leaderboard_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamlaman/trivia/internal/domain"
	"github.com/kamlaman/trivia/internal/leaderboard"
)

func TestAggregator_RecordAndSnapshot(t *testing.T) {
	a := leaderboard.NewAggregator()

	require.NoError(t, a.Record("Capital of France?", []domain.Winner{
		{SenderName: "alice", ResponseTime: 3 * time.Second},
	}))
	require.NoError(t, a.Record("What is 2+2?", nil))

	lb := a.Snapshot()
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, "Capital of France?", lb.Entries[0].Question)
	assert.Equal(t, "alice", lb.Entries[0].Winners[0].SenderName)
	assert.Empty(t, lb.Entries[1].Winners, "a round with no correct answers still gets an entry")
	assert.False(t, lb.Final)
}

func TestAggregator_SnapshotIsACopy(t *testing.T) {
	a := leaderboard.NewAggregator()
	require.NoError(t, a.Record("q1", []domain.Winner{{SenderName: "alice"}}))

	lb := a.Snapshot()
	lb.Entries[0].Winners[0].SenderName = "mallory"

	assert.Equal(t, "alice", a.Snapshot().Entries[0].Winners[0].SenderName)
}

func TestAggregator_FinalizeSealsTheTable(t *testing.T) {
	a := leaderboard.NewAggregator()
	require.NoError(t, a.Record("q1", nil))

	final := a.Finalize()
	assert.True(t, final.Final)

	err := a.Record("q2", nil)
	require.Error(t, err)
	assert.Len(t, a.Snapshot().Entries, 1)

	// Finalizing again is harmless.
	assert.True(t, a.Finalize().Final)
}

func TestAggregator_ResetLiftsTheSeal(t *testing.T) {
	a := leaderboard.NewAggregator()
	require.NoError(t, a.Record("q1", []domain.Winner{{SenderName: "alice"}}))
	a.Finalize()
	require.Error(t, a.Record("q2", nil))

	a.Reset()

	require.NoError(t, a.Record("q2", []domain.Winner{{SenderName: "bob"}}))
	lb := a.Snapshot()
	assert.False(t, lb.Final)
	require.Len(t, lb.Entries, 1, "reset drops the previous session's rounds")
	assert.Equal(t, "q2", lb.Entries[0].Question)
}

func TestAggregator_ConcurrentSnapshotAndRecord(t *testing.T) {
	a := leaderboard.NewAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = a.Record("q", nil)
		}()
		go func() {
			defer wg.Done()
			_ = a.Snapshot()
		}()
	}
	wg.Wait()

	assert.Len(t, a.Snapshot().Entries, 20)
}
