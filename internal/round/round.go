// Package round implements the state machine and scoring record for a single
// trivia question: OPEN -> LOCKED -> REVEALED -> DONE.
package round

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kamlaman/trivia/internal/answer"
	"github.com/kamlaman/trivia/internal/domain"
)

// Round owns all mutable state for one question's lifecycle. Every method is
// safe for concurrent use: the admission path (Submit) and the transition
// methods are mutually exclusive on the round's own lock, so answers racing
// against phase timers always observe a consistent state.
type Round struct {
	mu sync.Mutex

	number     int
	question   domain.Question
	state      domain.RoundState
	postedAt   time.Time
	cutoffAt   time.Time
	maxWinners int

	submissions []domain.Submission
	winners     []domain.Winner
	seen        map[string]struct{}
}

// Open creates a round in the OPEN state. postedAt is the transport timestamp
// of the posted question; the answer window closes at postedAt+openFor,
// inclusive. postedAt and the cutoff are fixed here and never recomputed,
// regardless of when the phase timer actually fires.
func Open(number int, q domain.Question, postedAt time.Time, openFor time.Duration, maxWinners int) *Round {
	return &Round{
		number:     number,
		question:   q,
		state:      domain.RoundOpen,
		postedAt:   postedAt,
		cutoffAt:   postedAt.Add(openFor),
		maxWinners: maxWinners,
		seen:       make(map[string]struct{}),
	}
}

// Submit evaluates one inbound message against the round and records it.
// Every message that reaches an existing round is appended to the audit
// trail, whatever the outcome; only messages that arrive while the round is
// OPEN, inside the answer window, correct, first for their sender, and within
// the winner cap are counted as winners. The returned submission is the
// immutable record that was stored.
func (r *Round) Submit(msg domain.Message) domain.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := domain.Submission{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		RawText:    msg.Body,
		Normalized: answer.Normalize(msg.Body),
		Timestamp:  msg.Timestamp,
	}
	sub.Correct = answer.Match(sub.Normalized, r.question.Accepted)

	if r.state == domain.RoundOpen {
		sub.ValidWindow = r.inWindow(msg.Timestamp)
	}

	if sub.ValidWindow && sub.Correct {
		sub.CountedWinner = r.admitWinner(sub)
	}

	r.submissions = append(r.submissions, sub)
	return sub
}

// inWindow applies the validity rules: the timestamp must exist, must not
// precede the question post (out-of-order transport delivery), and must not
// exceed the cutoff. The cutoff boundary itself is valid. A negative response
// time is rejected outright; clock disorder must never produce an impossible
// winner.
func (r *Round) inWindow(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	if ts.Before(r.postedAt) || ts.After(r.cutoffAt) {
		return false
	}
	return ts.Sub(r.postedAt) >= 0
}

func (r *Round) admitWinner(sub domain.Submission) bool {
	if _, dup := r.seen[sub.SenderID]; dup {
		return false
	}
	if len(r.winners) >= r.maxWinners {
		return false
	}

	w := domain.Winner{
		SenderID:     sub.SenderID,
		SenderName:   sub.SenderName,
		MessageID:    sub.MessageID,
		Timestamp:    sub.Timestamp,
		ResponseTime: sub.Timestamp.Sub(r.postedAt),
	}

	// Keep winners ordered by response time; equal times keep arrival order.
	i := sort.Search(len(r.winners), func(i int) bool {
		return r.winners[i].ResponseTime > w.ResponseTime
	})
	r.winners = append(r.winners, domain.Winner{})
	copy(r.winners[i+1:], r.winners[i:])
	r.winners[i] = w

	r.seen[sub.SenderID] = struct{}{}
	return true
}

// Lock moves the round from OPEN to LOCKED, freezing the winner list. It
// reports whether this call performed the transition; locking an already
// locked (or later) round is a no-op, so a phase timer racing an explicit
// stop signal is harmless.
func (r *Round) Lock() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state >= domain.RoundLocked {
		return false
	}
	r.state = domain.RoundLocked
	return true
}

// Reveal moves the round from LOCKED to REVEALED and returns the fastest
// counted winner, or nil if nobody answered correctly. Calling Reveal again
// is a no-op returning the same winner. Revealing a round that was never
// locked is a programming defect and panics.
func (r *Round) Reveal() (first *domain.Winner, transitioned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state < domain.RoundLocked {
		panic(fmt.Sprintf("round %d: reveal out of order: state=%s", r.number, r.state))
	}
	transitioned = r.state == domain.RoundLocked
	r.state = max(r.state, domain.RoundRevealed)
	return r.firstLocked(), transitioned
}

// Complete moves the round from REVEALED to its terminal DONE state.
// Completing a round that was never revealed panics.
func (r *Round) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state < domain.RoundRevealed {
		panic(fmt.Sprintf("round %d: complete out of order: state=%s", r.number, r.state))
	}
	if r.state == domain.RoundDone {
		return false
	}
	r.state = domain.RoundDone
	return true
}

func (r *Round) Number() int { return r.number }

func (r *Round) Question() domain.Question { return r.question }

func (r *Round) PostedAt() time.Time { return r.postedAt }

func (r *Round) CutoffAt() time.Time { return r.cutoffAt }

func (r *Round) State() domain.RoundState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Winners returns a copy of the ranked winner list.
func (r *Round) Winners() []domain.Winner {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Winner, len(r.winners))
	copy(out, r.winners)
	return out
}

// Submissions returns a copy of the full audit trail in admission order.
func (r *Round) Submissions() []domain.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Submission, len(r.submissions))
	copy(out, r.submissions)
	return out
}

// First returns the fastest counted winner, if any.
func (r *Round) First() *domain.Winner {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstLocked()
}

func (r *Round) firstLocked() *domain.Winner {
	if len(r.winners) == 0 {
		return nil
	}
	w := r.winners[0]
	return &w
}
