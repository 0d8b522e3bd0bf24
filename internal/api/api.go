// Package api exposes the operator HTTP surface: starting a session, driving
// round phases by hand, and reading the leaderboard. Players join over the
// websocket endpoint, not this API.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kamlaman/trivia/internal/domain"
	"github.com/kamlaman/trivia/internal/errors"
	"github.com/kamlaman/trivia/internal/event"
	"github.com/kamlaman/trivia/internal/game"
	"github.com/kamlaman/trivia/internal/leaderboard"
)

type Config struct {
	Engine   *gin.Engine
	EventBus *event.Bus

	Manager    *game.Manager
	Aggregator *leaderboard.Aggregator
	// Standings is nil when no redis is configured; the standings endpoint
	// then reports unavailable.
	Standings *leaderboard.Standings
	Chat      Chat

	// Questions is the loaded bank a started session plays through.
	Questions []domain.Question
}

// Chat is the slice of the websocket hub the API needs.
type Chat interface {
	Handle(c *gin.Context)
	Announce(standings []domain.Standing)
	ClientCount() int
}

type API struct {
	manager    *game.Manager
	aggregator *leaderboard.Aggregator
	standings  *leaderboard.Standings
	chat       Chat
	questions  []domain.Question
}

func New(c Config) *API {
	a := &API{
		manager:    c.Manager,
		aggregator: c.Aggregator,
		standings:  c.Standings,
		chat:       c.Chat,
		questions:  c.Questions,
	}

	e := c.Engine
	e.GET("/healthz", a.Healthz)
	e.GET("/ws", a.chat.Handle)

	g := e.Group("/api")
	g.POST("/session/start", a.StartSession)
	g.POST("/round/stop", a.StopRound)
	g.POST("/round/reveal", a.RevealRound)
	g.POST("/round/advance", a.AdvanceRound)
	g.GET("/leaderboard", a.GetLeaderboard)
	g.GET("/standings", a.GetStandings)

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(_ context.Context, e event.Event) error {
		a.chat.Announce(e.(domain.EventLeaderboardUpdated).Standings)
		return nil
	})

	return a
}

func (a *API) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "players": a.chat.ClientCount()})
}

func (a *API) StartSession(c *gin.Context) {
	if err := a.manager.Start(c.Request.Context(), a.questions); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": len(a.questions)})
}

func (a *API) StopRound(c *gin.Context) {
	a.signal(c, a.manager.Stop)
}

func (a *API) RevealRound(c *gin.Context) {
	a.signal(c, a.manager.Reveal)
}

func (a *API) AdvanceRound(c *gin.Context) {
	a.signal(c, a.manager.Advance)
}

func (a *API) signal(c *gin.Context, fn func(ctx context.Context) error) {
	if err := fn(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type winnerResponse struct {
	SenderID     string `json:"senderId"`
	SenderName   string `json:"senderName"`
	AnswerTime   string `json:"answerTime"`
	ResponseTime string `json:"responseTime"`
}

type entryResponse struct {
	Question string           `json:"question"`
	Winners  []winnerResponse `json:"winners"`
}

type leaderboardResponse struct {
	Final   bool            `json:"final"`
	Entries []entryResponse `json:"entries"`
}

func (a *API) GetLeaderboard(c *gin.Context) {
	lb := a.aggregator.Snapshot()

	resp := leaderboardResponse{
		Final:   lb.Final,
		Entries: make([]entryResponse, 0, len(lb.Entries)),
	}
	for _, e := range lb.Entries {
		entry := entryResponse{
			Question: e.Question,
			Winners:  make([]winnerResponse, 0, len(e.Winners)),
		}
		for _, w := range e.Winners {
			entry.Winners = append(entry.Winners, winnerResponse{
				SenderID:     w.SenderID,
				SenderName:   w.SenderName,
				AnswerTime:   w.Timestamp.Format("15:04:05"),
				ResponseTime: w.ResponseSeconds(),
			})
		}
		resp.Entries = append(resp.Entries, entry)
	}

	c.JSON(http.StatusOK, resp)
}

type standingResponse struct {
	Name   string `json:"name"`
	Points string `json:"points"`
}

func (a *API) GetStandings(c *gin.Context) {
	if a.standings == nil {
		abortWithError(c, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("standings are not enabled")))
		return
	}

	standings, err := a.standings.GetStandings(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := make([]standingResponse, 0, len(standings))
	for _, s := range standings {
		resp = append(resp, standingResponse{Name: s.SenderName, Points: s.Points.String()})
	}
	c.JSON(http.StatusOK, gin.H{"standings": resp})
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e.Error()})
}
