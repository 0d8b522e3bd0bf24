package round_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamlaman/trivia/internal/domain"
	"github.com/kamlaman/trivia/internal/round"
)

var t0 = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

func parisQuestion() domain.Question {
	return domain.Question{
		Text:     "Capital of France?",
		Accepted: map[string]struct{}{"paris": {}},
	}
}

func msg(sender, body string, at time.Time) domain.Message {
	return domain.Message{
		ID:         fmt.Sprintf("m-%s-%d", sender, at.UnixNano()),
		SenderID:   sender + "@chat",
		SenderName: sender,
		Body:       body,
		Timestamp:  at,
	}
}

func TestRound_Submit(t *testing.T) {
	type inputs struct {
		openFor    time.Duration
		maxWinners int
		accepted   map[string]struct{}
		messages   []domain.Message
	}

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"correct answer in window becomes winner": {
			arrange: func() inputs {
				return inputs{
					openFor:    15 * time.Second,
					maxWinners: 5,
					messages: []domain.Message{
						msg("alice", " Paris! ", t0.Add(3*time.Second)),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.winners, 1)
				assert.Equal(t, "alice", out.winners[0].SenderName)
				assert.Equal(t, 3*time.Second, out.winners[0].ResponseTime)

				require.Len(t, out.submissions, 1)
				assert.Equal(t, "paris", out.submissions[0].Normalized)
				assert.True(t, out.submissions[0].Correct)
				assert.True(t, out.submissions[0].ValidWindow)
				assert.True(t, out.submissions[0].CountedWinner)
			},
		},

		"late answer is recorded but never a winner": {
			arrange: func() inputs {
				return inputs{
					openFor:    15 * time.Second,
					maxWinners: 5,
					messages: []domain.Message{
						msg("alice", "paris", t0.Add(20*time.Second)),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.winners)
				require.Len(t, out.submissions, 1)
				assert.True(t, out.submissions[0].Correct)
				assert.False(t, out.submissions[0].ValidWindow)
				assert.False(t, out.submissions[0].CountedWinner)
			},
		},

		"answer exactly at cutoff is valid": {
			arrange: func() inputs {
				return inputs{
					openFor:    15 * time.Second,
					maxWinners: 5,
					messages: []domain.Message{
						msg("alice", "paris", t0.Add(15*time.Second)),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.winners, 1)
				assert.Equal(t, 15*time.Second, out.winners[0].ResponseTime)
			},
		},

		"answer timestamped before the question is invalid": {
			arrange: func() inputs {
				return inputs{
					openFor:    15 * time.Second,
					maxWinners: 5,
					messages: []domain.Message{
						msg("alice", "paris", t0.Add(-2*time.Second)),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.winners)
				require.Len(t, out.submissions, 1)
				assert.False(t, out.submissions[0].ValidWindow)
			},
		},

		"missing timestamp is invalid but recorded": {
			arrange: func() inputs {
				return inputs{
					openFor:    15 * time.Second,
					maxWinners: 5,
					messages: []domain.Message{
						msg("alice", "paris", time.Time{}),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.winners)
				require.Len(t, out.submissions, 1)
				assert.False(t, out.submissions[0].ValidWindow)
			},
		},

		"same-timestamp tie keeps arrival order": {
			arrange: func() inputs {
				return inputs{
					openFor:    15 * time.Second,
					maxWinners: 5,
					messages: []domain.Message{
						msg("alice", "paris", t0.Add(2*time.Second)),
						msg("bob", "paris", t0.Add(2*time.Second)),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.winners, 2)
				assert.Equal(t, "alice", out.winners[0].SenderName)
				assert.Equal(t, "bob", out.winners[1].SenderName)
			},
		},

		"winners are ranked by response time even when arrival order differs": {
			arrange: func() inputs {
				return inputs{
					openFor:    15 * time.Second,
					maxWinners: 5,
					messages: []domain.Message{
						msg("alice", "paris", t0.Add(5*time.Second)),
						msg("bob", "paris", t0.Add(2*time.Second)),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.winners, 2)
				assert.Equal(t, "bob", out.winners[0].SenderName)
				assert.Equal(t, "alice", out.winners[1].SenderName)
			},
		},

		"a sender's second correct answer is excluded from winners": {
			arrange: func() inputs {
				return inputs{
					openFor:    15 * time.Second,
					maxWinners: 5,
					messages: []domain.Message{
						msg("alice", "paris", t0.Add(1*time.Second)),
						msg("alice", "Paris", t0.Add(5*time.Second)),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.winners, 1)
				assert.Equal(t, 1*time.Second, out.winners[0].ResponseTime)
				require.Len(t, out.submissions, 2)
				assert.True(t, out.submissions[1].Correct)
				assert.False(t, out.submissions[1].CountedWinner)
			},
		},

		"winner list is capped": {
			arrange: func() inputs {
				var ms []domain.Message
				for i := 0; i < 8; i++ {
					ms = append(ms, msg(fmt.Sprintf("u%d", i), "paris", t0.Add(time.Duration(i+1)*time.Second)))
				}
				return inputs{openFor: 15 * time.Second, maxWinners: 5, messages: ms}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.winners, 5)
				assert.Len(t, out.submissions, 8)
				for i := 1; i < len(out.winners); i++ {
					assert.LessOrEqual(t, out.winners[i-1].ResponseTime, out.winners[i].ResponseTime)
				}
			},
		},

		"wrong answers are recorded without winning": {
			arrange: func() inputs {
				return inputs{
					openFor:    15 * time.Second,
					maxWinners: 5,
					messages: []domain.Message{
						msg("alice", "london", t0.Add(2*time.Second)),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.winners)
				require.Len(t, out.submissions, 1)
				assert.False(t, out.submissions[0].Correct)
				assert.True(t, out.submissions[0].ValidWindow)
			},
		},

		"empty accepted set never produces a winner": {
			arrange: func() inputs {
				return inputs{
					openFor:    15 * time.Second,
					maxWinners: 5,
					accepted:   map[string]struct{}{},
					messages: []domain.Message{
						msg("alice", "anything", t0.Add(2*time.Second)),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.winners)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			q := parisQuestion()
			if in.accepted != nil {
				q.Accepted = in.accepted
			}
			r := round.Open(1, q, t0, in.openFor, in.maxWinners)

			for _, m := range in.messages {
				r.Submit(m)
			}

			tt.assert(t, outputsOf(r))
		})
	}
}

type outputs struct {
	winners     []domain.Winner
	submissions []domain.Submission
}

func outputsOf(r *round.Round) outputs {
	return outputs{winners: r.Winners(), submissions: r.Submissions()}
}

func TestRound_SubmitAfterLockIsAuditOnly(t *testing.T) {
	r := round.Open(1, parisQuestion(), t0, 15*time.Second, 5)
	require.True(t, r.Lock())

	sub := r.Submit(msg("alice", "paris", t0.Add(2*time.Second)))

	assert.True(t, sub.Correct)
	assert.False(t, sub.ValidWindow, "submissions after lock are never scored")
	assert.False(t, sub.CountedWinner)
	assert.Empty(t, r.Winners())
	assert.Len(t, r.Submissions(), 1)
}

func TestRound_TransitionsAreIdempotent(t *testing.T) {
	r := round.Open(1, parisQuestion(), t0, 15*time.Second, 5)
	r.Submit(msg("alice", "paris", t0.Add(3*time.Second)))

	require.True(t, r.Lock())
	assert.False(t, r.Lock(), "second lock must be a no-op")
	assert.Equal(t, domain.RoundLocked, r.State())

	first, transitioned := r.Reveal()
	require.True(t, transitioned)
	require.NotNil(t, first)
	assert.Equal(t, "alice", first.SenderName)

	again, transitioned := r.Reveal()
	assert.False(t, transitioned, "second reveal must be a no-op")
	require.NotNil(t, again)
	assert.Equal(t, *first, *again)

	require.True(t, r.Complete())
	assert.False(t, r.Complete())
	assert.Equal(t, domain.RoundDone, r.State())
	assert.Len(t, r.Winners(), 1, "winners are immutable after done")
}

func TestRound_RevealWithNoWinners(t *testing.T) {
	r := round.Open(1, parisQuestion(), t0, 15*time.Second, 5)
	r.Submit(msg("alice", "london", t0.Add(2*time.Second)))

	r.Lock()
	first, transitioned := r.Reveal()
	assert.True(t, transitioned)
	assert.Nil(t, first)
}

func TestRound_OutOfOrderTransitionPanics(t *testing.T) {
	assert.Panics(t, func() {
		r := round.Open(1, parisQuestion(), t0, 15*time.Second, 5)
		r.Reveal()
	}, "reveal without lock must fail loudly")

	assert.Panics(t, func() {
		r := round.Open(1, parisQuestion(), t0, 15*time.Second, 5)
		r.Lock()
		r.Complete()
	}, "complete without reveal must fail loudly")
}

func TestRound_ConcurrentSubmissions(t *testing.T) {
	const senders = 50

	r := round.Open(1, parisQuestion(), t0, 60*time.Second, 5)

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Submit(msg(fmt.Sprintf("u%d", i), "paris", t0.Add(time.Duration(i+1)*time.Second)))
		}(i)
	}
	wg.Wait()

	winners := r.Winners()
	require.Len(t, winners, 5)
	seen := make(map[string]struct{})
	for i, w := range winners {
		assert.GreaterOrEqual(t, w.ResponseTime, time.Duration(0))
		if i > 0 {
			assert.LessOrEqual(t, winners[i-1].ResponseTime, w.ResponseTime)
		}
		_, dup := seen[w.SenderID]
		assert.False(t, dup, "at most one winner per sender")
		seen[w.SenderID] = struct{}{}
	}
	assert.Len(t, r.Submissions(), senders)
}
