package leaderboard

import (
	"sync"

	"github.com/kamlaman/trivia/internal/domain"
	"github.com/kamlaman/trivia/internal/errors"
)

// Aggregator collects each completed round's ranked winners into the
// session-wide result table. Entries are append-only and keep question order;
// once finalized the table is read-only.
type Aggregator struct {
	mu      sync.RWMutex
	entries []domain.LeaderboardEntry
	final   bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record appends one completed round's result. Recording into a finalized
// table is rejected.
func (a *Aggregator) Record(question string, winners []domain.Winner) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("leaderboard already finalized: question=%q", question))
	}

	ws := make([]domain.Winner, len(winners))
	copy(ws, winners)
	a.entries = append(a.entries, domain.LeaderboardEntry{
		Question: question,
		Winners:  ws,
	})
	return nil
}

// Snapshot returns a copy of the full ordered table. Safe to call at any
// point, including concurrently with Record.
func (a *Aggregator) Snapshot() domain.Leaderboard {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

// Finalize seals the table and returns the final snapshot. Finalizing twice
// is harmless.
func (a *Aggregator) Finalize() domain.Leaderboard {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.final = true
	return a.snapshotLocked()
}

// Reset clears the table and lifts the seal so a new session can record
// into it. The previous session's results are gone after this; callers that
// want them must Snapshot first.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = nil
	a.final = false
}

func (a *Aggregator) snapshotLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, len(a.entries))
	for i, e := range a.entries {
		ws := make([]domain.Winner, len(e.Winners))
		copy(ws, e.Winners)
		entries[i] = domain.LeaderboardEntry{Question: e.Question, Winners: ws}
	}
	return domain.Leaderboard{Entries: entries, Final: a.final}
}
