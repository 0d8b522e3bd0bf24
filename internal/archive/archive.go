// Package archive persists completed rounds to Postgres so results survive
// process restarts. It is an optional consumer: the game runs fine without a
// database, the archive just listens on the bus when one is configured.
package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kamlaman/trivia/internal/domain"
	"github.com/kamlaman/trivia/internal/errors"
	"github.com/kamlaman/trivia/internal/event"
)

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
	// Session scopes the archive rows so multiple games can share one
	// database.
	Session string
}

type Service struct {
	db      *pgxpool.Pool
	session string
}

func NewService(c Config) *Service {
	s := &Service{
		db:      c.DB,
		session: c.Session,
	}

	c.EventBus.Subscribe(domain.EventNameRoundDone, func(ctx context.Context, e event.Event) error {
		done := e.(domain.EventRoundDone)
		if err := s.ArchiveRound(ctx, done); err != nil {
			slog.Error("archive: store round failed", "round", done.Number, "error", err)
			return err
		}
		return nil
	})

	return s
}

// ArchiveRound stores a finished round and its winner list in one
// transaction.
func (s *Service) ArchiveRound(ctx context.Context, done domain.EventRoundDone) error {
	const insertRound = `
INSERT INTO rounds (session_id, number, question)
VALUES ($1, $2, $3)
ON CONFLICT (session_id, number) DO NOTHING;`

	const insertWinner = `
INSERT INTO round_winners (session_id, round_number, rank, sender_id, sender_name, message_id, answer_time, response_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id, round_number, rank) DO NOTHING;`

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertRound, s.session, done.Number, done.Question); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for rank, w := range done.Winners {
		batch.Queue(insertWinner,
			s.session, done.Number, rank+1,
			w.SenderID, w.SenderName, w.MessageID,
			w.Timestamp, w.ResponseTime.Milliseconds(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListWinners returns the archived winner list for one round, fastest first.
func (s *Service) ListWinners(ctx context.Context, roundNumber int) ([]domain.Winner, error) {
	const stmt = `
SELECT sender_id, sender_name, message_id, answer_time, response_ms
FROM round_winners
WHERE session_id = $1 AND round_number = $2
ORDER BY rank;`

	rows, err := s.db.Query(ctx, stmt, s.session, roundNumber)
	if err != nil {
		return nil, err
	}

	winners, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Winner, error) {
		var (
			w  domain.Winner
			ms int64
		)
		if err := r.Scan(&w.SenderID, &w.SenderName, &w.MessageID, &w.Timestamp, &ms); err != nil {
			return domain.Winner{}, err
		}
		w.ResponseTime = time.Duration(ms) * time.Millisecond
		return w, nil
	})
	if err != nil {
		return nil, err
	}

	if len(winners) == 0 {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no archived winners for round %d", roundNumber))
	}
	return winners, nil
}
