package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Question is one trivia question with its accepted answers.
// Accepted holds pre-normalized strings; an empty set means the question is
// unanswerable (no submission can ever be correct).
type Question struct {
	Text     string
	Accepted map[string]struct{}
}

// Answerable reports whether the question has at least one accepted answer.
func (q Question) Answerable() bool { return len(q.Accepted) > 0 }

// RoundState is the phase of a round's lifecycle. Transitions are strictly
// linear: Open -> Locked -> Revealed -> Done.
type RoundState int

const (
	RoundOpen RoundState = iota
	RoundLocked
	RoundRevealed
	RoundDone
)

func (s RoundState) String() string {
	switch s {
	case RoundOpen:
		return "open"
	case RoundLocked:
		return "locked"
	case RoundRevealed:
		return "revealed"
	case RoundDone:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Message is one inbound chat event as delivered by the transport.
// Timestamp is the transport's server timestamp, not local arrival time.
type Message struct {
	ID         string
	SenderID   string
	SenderName string
	Body       string
	Timestamp  time.Time
}

// Submission is the scored record of one inbound message against a round.
// It is created once and never mutated afterwards.
type Submission struct {
	MessageID     string
	SenderID      string
	SenderName    string
	RawText       string
	Normalized    string
	Timestamp     time.Time
	Correct       bool
	ValidWindow   bool
	CountedWinner bool
}

// Winner is a submission that counted as one of a round's ranked correct
// answers. ResponseTime is the gap between the question post and the winning
// message's timestamp, always non-negative.
type Winner struct {
	SenderID     string
	SenderName   string
	MessageID    string
	Timestamp    time.Time
	ResponseTime time.Duration
}

// ResponseSeconds renders the response time the way the leaderboard shows it.
func (w Winner) ResponseSeconds() string {
	return fmt.Sprintf("%.1fs", w.ResponseTime.Seconds())
}

// LeaderboardEntry is one completed round's result: the question and its
// ranked winners (possibly empty).
type LeaderboardEntry struct {
	Question string
	Winners  []Winner
}

// Leaderboard is the session-wide result table, one entry per completed round
// in question order. Final is set once the session has ended.
type Leaderboard struct {
	Entries []LeaderboardEntry
	Final   bool
}

// Standing is a participant's cumulative points across rounds.
type Standing struct {
	SenderName string
	Points     decimal.Decimal
}
