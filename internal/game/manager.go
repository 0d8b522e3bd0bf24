// Package game sequences trivia rounds: it posts questions to the chat,
// drives the phase timers, routes inbound messages to the active round, and
// hands completed rounds to the leaderboard.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kamlaman/trivia/internal/domain"
	"github.com/kamlaman/trivia/internal/errors"
	"github.com/kamlaman/trivia/internal/event"
	"github.com/kamlaman/trivia/internal/leaderboard"
	"github.com/kamlaman/trivia/internal/round"
	"github.com/kamlaman/trivia/internal/telemetry"
)

// Sender posts messages to the group chat. Send returns the posted message so
// the round can anchor its answer window on the transport's own timestamp.
// Failures are logged by the manager, never retried.
type Sender interface {
	Send(ctx context.Context, text string) (domain.Message, error)
	Reply(ctx context.Context, text, quotedID string) error
}

// Durations are the three phase lengths of a round.
type Durations struct {
	Open         time.Duration
	RevealDelay  time.Duration
	AdvanceDelay time.Duration
}

type Config struct {
	EventBus   *event.Bus
	Sender     Sender
	Aggregator *leaderboard.Aggregator
	Clock      clockwork.Clock
	Durations  Durations
	MaxWinners int
}

// Manager owns exactly one active round at a time. Inbound messages and phase
// timers race freely: the round's own lock keeps scoring consistent, and the
// manager's lock only guards the active-round pointer and the pending timer,
// so OnMessage returns quickly.
type Manager struct {
	eb         *event.Bus
	out        Sender
	agg        *leaderboard.Aggregator
	clock      clockwork.Clock
	durations  Durations
	maxWinners int

	mu        sync.Mutex
	running   bool
	questions []domain.Question
	next      int
	active    *round.Round
	pending   *phaseTimer
	done      chan struct{}
}

type phaseTimer struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

func NewManager(c Config) *Manager {
	m := &Manager{
		eb:         c.EventBus,
		out:        c.Sender,
		agg:        c.Aggregator,
		clock:      c.Clock,
		durations:  c.Durations,
		maxWinners: c.MaxWinners,
		done:       make(chan struct{}),
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}

	m.eb.Subscribe(domain.EventNameMessageReceived, func(ctx context.Context, e event.Event) error {
		m.OnMessage(ctx, e.(domain.EventMessageReceived).Message)
		return nil
	})

	return m
}

// Start begins the session with the first round. It fails if a session is
// already running or the question list is empty. Starting again after a
// finished session resets the leaderboard and plays a fresh game.
func (m *Manager) Start(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("no questions to play"))
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session already running"))
	}
	m.running = true
	m.questions = questions
	m.next = 0
	// The done channel from a finished session stays closed for its
	// waiters; a fresh session gets a fresh one.
	select {
	case <-m.done:
		m.done = make(chan struct{})
	default:
	}
	m.mu.Unlock()

	m.agg.Reset()

	number, q, _ := m.nextQuestion()
	m.openRound(ctx, number, q)
	return nil
}

// Done is closed once the last round completes and the leaderboard is
// sealed. Valid before Start; a restart hands out a fresh channel.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// OnMessage routes one inbound chat message to the active round. Messages
// arriving before the session starts or after it ends are dropped. It never
// blocks on I/O; it only waits briefly for the round lock.
func (m *Manager) OnMessage(ctx context.Context, msg domain.Message) {
	m.mu.Lock()
	r := m.active
	m.mu.Unlock()

	if r == nil {
		telemetry.MessagesDropped.Inc()
		slog.DebugContext(ctx, "game: no active round, message dropped",
			"sender", msg.SenderName,
		)
		return
	}

	sub := r.Submit(msg)
	telemetry.ObserveSubmission(sub)

	if sub.CountedWinner {
		slog.InfoContext(ctx, "game: correct answer",
			"round", r.Number(),
			"sender", sub.SenderName,
			"response_time", sub.Timestamp.Sub(r.PostedAt()),
		)
	} else if sub.Correct && !sub.ValidWindow {
		slog.InfoContext(ctx, "game: late answer",
			"round", r.Number(),
			"sender", sub.SenderName,
			"cutoff", r.CutoffAt(),
		)
	}
}

// Stop is the explicit STOP signal: equivalent to the open-phase timer firing
// early. Stopping an already locked round is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	r, err := m.currentRound()
	if err != nil {
		return err
	}
	m.lockRound(ctx, r)
	return nil
}

// Reveal is the explicit REP signal. The round must already be locked.
func (m *Manager) Reveal(ctx context.Context) error {
	r, err := m.currentRound()
	if err != nil {
		return err
	}
	if r.State() < domain.RoundLocked {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("round %d is still open", r.Number()))
	}
	m.revealRound(ctx, r)
	return nil
}

// Advance is the explicit NEXT signal. The round must already be revealed.
func (m *Manager) Advance(ctx context.Context) error {
	r, err := m.currentRound()
	if err != nil {
		return err
	}
	if r.State() < domain.RoundRevealed {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("round %d is not revealed yet", r.Number()))
	}
	m.advanceRound(ctx, r)
	return nil
}

// Abort cancels the pending phase timer and detaches the active round. Used
// on shutdown; the session is not finalized.
func (m *Manager) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelPendingLocked()
	m.active = nil
	m.running = false
}

func (m *Manager) currentRound() (*round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no active round"))
	}
	return m.active, nil
}

func (m *Manager) nextQuestion() (number int, q domain.Question, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.next >= len(m.questions) {
		return 0, domain.Question{}, false
	}
	m.next++
	return m.next, m.questions[m.next-1], true
}

// openRound posts the question and opens a new round anchored on the posted
// message's transport timestamp, falling back to the local clock when the
// transport gives none. The active-round pointer is swapped atomically so no
// message is ever scored against a half-replaced round.
func (m *Manager) openRound(ctx context.Context, number int, q domain.Question) {
	posted, err := m.out.Send(ctx, fmt.Sprintf("Q%d: %s", number, q.Text))
	postedAt := posted.Timestamp
	if err != nil || postedAt.IsZero() {
		if err != nil {
			slog.ErrorContext(ctx, "game: post question failed", "round", number, "error", err)
		}
		postedAt = m.clock.Now()
	}

	r := round.Open(number, q, postedAt, m.durations.Open, m.maxWinners)

	m.mu.Lock()
	m.active = r
	m.schedulePhaseLocked(m.durations.Open, func() { m.lockRound(context.Background(), r) })
	m.mu.Unlock()

	telemetry.RoundsOpened.Inc()
	slog.InfoContext(ctx, "game: round opened",
		"round", number,
		"posted_at", postedAt,
		"cutoff_at", r.CutoffAt(),
	)
	m.eb.Publish(ctx, domain.EventRoundOpened{Number: number, Question: q})
}

// lockRound performs the OPEN -> LOCKED transition. A timer and an explicit
// signal may both call it; whoever loses the race is a no-op and must not
// reschedule or resend.
func (m *Manager) lockRound(ctx context.Context, r *round.Round) {
	if !r.Lock() {
		return
	}

	m.send(ctx, "STOP")
	slog.InfoContext(ctx, "game: round locked", "round", r.Number())
	m.eb.Publish(ctx, domain.EventRoundLocked{Number: r.Number()})

	m.schedulePhase(r, domain.RoundLocked, m.durations.RevealDelay, func() { m.revealRound(context.Background(), r) })
}

// revealRound performs LOCKED -> REVEALED: quote the fastest correct answer,
// or list the accepted answers when nobody scored.
func (m *Manager) revealRound(ctx context.Context, r *round.Round) {
	first, transitioned := r.Reveal()
	if !transitioned {
		return
	}

	if first != nil {
		if err := m.out.Reply(ctx, "REP", first.MessageID); err != nil {
			slog.ErrorContext(ctx, "game: send reveal failed", "round", r.Number(), "error", err)
		}
		slog.InfoContext(ctx, "game: round revealed",
			"round", r.Number(),
			"first", first.SenderName,
			"response_time", first.ResponseTime,
		)
	} else {
		m.send(ctx, "REP: "+strings.Join(sortedAccepted(r.Question()), " / "))
		slog.InfoContext(ctx, "game: round revealed, no correct answers", "round", r.Number())
	}

	m.eb.Publish(ctx, domain.EventRoundRevealed{
		Number:   r.Number(),
		First:    first,
		NoWinner: first == nil,
	})

	m.schedulePhase(r, domain.RoundRevealed, m.durations.AdvanceDelay, func() { m.advanceRound(context.Background(), r) })
}

// advanceRound performs REVEALED -> DONE, records the round on the
// leaderboard, and either opens the next round or finalizes the session.
func (m *Manager) advanceRound(ctx context.Context, r *round.Round) {
	if !r.Complete() {
		return
	}

	winners := r.Winners()
	if err := m.agg.Record(r.Question().Text, winners); err != nil {
		slog.ErrorContext(ctx, "game: record round failed", "round", r.Number(), "error", err)
	}

	telemetry.RoundsCompleted.Inc()
	m.eb.Publish(ctx, domain.EventRoundDone{
		Number:   r.Number(),
		Question: r.Question().Text,
		Winners:  winners,
	})

	number, q, ok := m.nextQuestion()
	if !ok {
		m.finalize(ctx)
		return
	}

	m.send(ctx, "NEXT")
	m.openRound(ctx, number, q)
}

func (m *Manager) finalize(ctx context.Context) {
	m.mu.Lock()
	m.cancelPendingLocked()
	m.active = nil
	m.running = false
	done := m.done
	m.mu.Unlock()

	lb := m.agg.Finalize()
	slog.InfoContext(ctx, "game: session ended", "rounds", len(lb.Entries))
	m.eb.Publish(ctx, domain.EventSessionEnded{Leaderboard: lb})

	close(done)
}

// schedulePhase installs the timer that will move r out of inState. The
// round can move on while the caller is posting to the chat: an explicit
// signal landing in that window advances the phase and installs the next
// timer, and replacing that with a stale one would strand the session. The
// timer is therefore only installed while r is still the active round and
// still in inState.
func (m *Manager) schedulePhase(r *round.Round, inState domain.RoundState, d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != r || r.State() != inState {
		return
	}
	m.schedulePhaseLocked(d, fn)
}

func (m *Manager) schedulePhaseLocked(d time.Duration, fn func()) {
	m.cancelPendingLocked()

	pt := &phaseTimer{
		timer:  m.clock.NewTimer(d),
		cancel: make(chan struct{}),
	}
	m.pending = pt

	go func() {
		select {
		case <-pt.timer.Chan():
			fn()
		case <-pt.cancel:
		}
	}()
}

func (m *Manager) cancelPendingLocked() {
	if m.pending == nil {
		return
	}
	m.pending.timer.Stop()
	close(m.pending.cancel)
	m.pending = nil
}

func (m *Manager) send(ctx context.Context, text string) {
	if _, err := m.out.Send(ctx, text); err != nil {
		slog.ErrorContext(ctx, "game: send failed", "text", text, "error", err)
	}
}

func sortedAccepted(q domain.Question) []string {
	out := make([]string, 0, len(q.Accepted))
	for a := range q.Accepted {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
