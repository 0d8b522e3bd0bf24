// Package server wires the trivia engine together: chat gateway, game
// manager, leaderboard consumers and the operator HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kamlaman/trivia/internal/api"
	"github.com/kamlaman/trivia/internal/archive"
	"github.com/kamlaman/trivia/internal/chat"
	"github.com/kamlaman/trivia/internal/domain"
	"github.com/kamlaman/trivia/internal/event"
	"github.com/kamlaman/trivia/internal/export"
	"github.com/kamlaman/trivia/internal/game"
	"github.com/kamlaman/trivia/internal/leaderboard"
	"github.com/kamlaman/trivia/internal/questions"
	"github.com/kamlaman/trivia/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	// Redis powers the live standings view. Leave Addrs empty to run
	// without it.
	Redis struct {
		Standings struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	// Postgres persists completed rounds. Leave Addr empty to run without
	// it.
	Postgres struct {
		Archive struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Game struct {
		Session       string
		QuestionsFile string
		ExportFile    string

		OpenSeconds         int
		RevealDelaySeconds  int
		AdvanceDelaySeconds int
		MaxWinners          int
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			standings redis.UniversalClient
		}

		postgres struct {
			archive *pgxpool.Pool
		}
	}

	service struct {
		hub        *chat.Hub
		manager    *game.Manager
		aggregator *leaderboard.Aggregator
		standings  *leaderboard.Standings
		archive    *archive.Service
	}

	questions []domain.Question

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	qs, err := questions.LoadFile(c.Game.QuestionsFile)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	s.questions = qs

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	if len(s.c.Redis.Standings.Addrs) == 0 {
		slog.Info("server: redis not configured, live standings disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Standings.Addrs,
		Password: s.c.Redis.Standings.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("standings: %w", err)
	}

	s.infra.redis.standings = r
	return nil
}

func (s *Server) initPostgres() error {
	pg := s.c.Postgres.Archive
	if pg.Addr == "" {
		slog.Info("server: postgres not configured, round archive disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pg.User, pg.Pass, pg.Addr, pg.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	s.infra.postgres.archive = db
	return nil
}

func (s *Server) initService() {
	s.service.hub = chat.NewHub(chat.Config{
		EventBus: s.eb,
	})

	s.service.aggregator = leaderboard.NewAggregator()

	s.service.manager = game.NewManager(game.Config{
		EventBus:   s.eb,
		Sender:     s.service.hub,
		Aggregator: s.service.aggregator,
		Durations: game.Durations{
			Open:         time.Duration(s.c.Game.OpenSeconds) * time.Second,
			RevealDelay:  time.Duration(s.c.Game.RevealDelaySeconds) * time.Second,
			AdvanceDelay: time.Duration(s.c.Game.AdvanceDelaySeconds) * time.Second,
		},
		MaxWinners: s.c.Game.MaxWinners,
	})

	if s.infra.redis.standings != nil {
		s.service.standings = leaderboard.NewStandings(leaderboard.Config{
			EventBus: s.eb,
			Redis:    s.infra.redis.standings,
			Prefix:   s.c.Redis.Standings.Prefix,
			Session:  s.c.Game.Session,
		})
	}

	if s.infra.postgres.archive != nil {
		s.service.archive = archive.NewService(archive.Config{
			EventBus: s.eb,
			DB:       s.infra.postgres.archive,
			Session:  s.c.Game.Session,
		})
	}

	s.eb.Subscribe(domain.EventNameSessionEnded, func(_ context.Context, e event.Event) error {
		return s.exportResults(e.(domain.EventSessionEnded).Leaderboard)
	})
}

// exportResults runs once the last round completes: the final table goes to
// the console and, when configured, to the leaderboard CSV.
func (s *Server) exportResults(lb domain.Leaderboard) error {
	export.RenderLeaderboard(os.Stdout, lb)

	if s.c.Game.ExportFile == "" {
		return nil
	}
	if err := export.SaveLeaderboardCSV(s.c.Game.ExportFile, lb); err != nil {
		slog.Error("server: export leaderboard failed", "file", s.c.Game.ExportFile, "error", err)
		return err
	}
	slog.Info("server: leaderboard exported", "file", s.c.Game.ExportFile)
	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Engine:     e,
		EventBus:   s.eb,
		Manager:    s.service.manager,
		Aggregator: s.service.aggregator,
		Standings:  s.service.standings,
		Chat:       s.service.hub,
		Questions:  s.questions,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.service.manager.Abort()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	slog.InfoContext(ctx, "server: shutdown completed")
}
