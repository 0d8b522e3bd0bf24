package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/kamlaman/trivia/internal/domain"
	"github.com/kamlaman/trivia/internal/errors"
	"github.com/kamlaman/trivia/internal/event"
)

const publishInterval = 200 * time.Millisecond

// rank 1 earns 5 points, down to 1 point for rank 5.
func rankPoints(rank int) decimal.Decimal {
	p := 6 - rank
	if p < 1 {
		p = 1
	}
	return decimal.NewFromInt(int64(p))
}

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	Session  string
}

// Standings keeps the cumulative points table for a session in redis, fed by
// round.done events. It is a live view alongside the in-memory aggregator:
// the aggregator is the audit record, the standings are the running score.
type Standings struct {
	eb      *event.Bus
	redis   redis.UniversalClient
	prefix  string
	session string
}

func NewStandings(c Config) *Standings {
	s := &Standings{
		eb:      c.EventBus,
		redis:   c.Redis,
		prefix:  c.Prefix,
		session: c.Session,
	}

	s.eb.Subscribe(domain.EventNameRoundDone, func(ctx context.Context, e event.Event) error {
		return s.AwardRound(ctx, e.(domain.EventRoundDone))
	})

	return s
}

// AwardRound credits each of the round's winners with rank points.
func (s *Standings) AwardRound(ctx context.Context, e domain.EventRoundDone) error {
	for i, w := range e.Winners {
		pts, _ := rankPoints(i + 1).Float64()
		if err := s.redis.ZIncrBy(ctx, s.standingsKey(), pts, w.SenderName).Err(); err != nil {
			return fmt.Errorf("award round %d: %w", e.Number, err)
		}
	}

	return s.schedulePublish(ctx)
}

// GetStandings returns the session's points table, highest first.
func (s *Standings) GetStandings(ctx context.Context) ([]domain.Standing, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.standingsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get standings: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("standings not found: session=%s", s.session))
	}

	standings := make([]domain.Standing, 0, len(res))
	for _, z := range res {
		standings = append(standings, domain.Standing{
			SenderName: z.Member.(string),
			Points:     decimal.NewFromFloat(z.Score),
		})
	}

	return standings, nil
}

// schedulePublish publishes the standings at most once per interval; rounds
// completing back to back collapse into one leaderboard.updated event.
func (s *Standings) schedulePublish(ctx context.Context) error {
	ok, err := s.redis.SetNX(ctx, s.timeKey(), time.Now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publish(ctx)
}

func (s *Standings) publish(ctx context.Context) error {
	standings, err := s.GetStandings(ctx)
	if err != nil {
		return fmt.Errorf("publish standings: session=%s: %w", s.session, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Standings: standings,
	})

	return nil
}

func (s *Standings) standingsKey() string {
	return fmt.Sprintf("%s:%s:standings", s.prefix, s.session)
}

func (s *Standings) timeKey() string {
	return fmt.Sprintf("%s:%s:time", s.prefix, s.session)
}
