// Package chat is the websocket group-chat gateway. Players connect with
// userId and name query params; every text they send becomes a chat message
// on the event bus, and everything the game engine posts is broadcast back
// to the room.
package chat

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/kamlaman/trivia/internal/domain"
	"github.com/kamlaman/trivia/internal/event"
	"github.com/kamlaman/trivia/internal/telemetry"
)

const (
	// HostName is the sender name on frames posted by the game engine.
	HostName = "quizmaster"

	sendBuffer = 16
)

type inboundFrame struct {
	Body string `json:"body"`
}

type outboundFrame struct {
	Type      string            `json:"type"`
	ID        string            `json:"id,omitempty"`
	QuotedID  string            `json:"quotedId,omitempty"`
	Sender    string            `json:"sender,omitempty"`
	Body      string            `json:"body,omitempty"`
	SentAt    int64             `json:"sentAt,omitempty"`
	Standings []standingPayload `json:"standings,omitempty"`
}

type standingPayload struct {
	Name   string `json:"name"`
	Points string `json:"points"`
}

type client struct {
	userID string
	name   string
	send   chan outboundFrame
}

type Config struct {
	EventBus *event.Bus
	Clock    clockwork.Clock
}

// Hub fans chat frames between connected websocket clients and the event
// bus. It is the transport behind the game manager's outbound messages.
type Hub struct {
	eb       *event.Bus
	clock    clockwork.Clock
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(c Config) *Hub {
	clock := c.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		eb:    c.EventBus,
		clock: clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handle upgrades the request and pumps frames until the client disconnects.
func (h *Hub) Handle(c *gin.Context) {
	userID := c.Query("userId")
	name := c.Query("name")
	if userID == "" || name == "" {
		c.String(http.StatusBadRequest, "missing userId or name")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("chat: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	cl := &client{userID: userID, name: name, send: make(chan outboundFrame, sendBuffer)}
	h.register(cl)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for frame := range cl.send {
			if err := conn.WriteJSON(frame); err != nil {
				slog.Debug("chat: write failed", "user", cl.userID, "error", err)
				return
			}
		}
	}()

	for {
		var in inboundFrame
		if err := conn.ReadJSON(&in); err != nil {
			break
		}
		h.receive(c.Request.Context(), cl, in)
	}

	// Unregister before closing so no broadcaster can hit a closed channel.
	h.unregister(cl)
	close(cl.send)
	<-writerDone
}

// receive stamps an inbound frame with a message id and the server's
// receive time and puts it on the bus. Response times rank winners, so a
// client-supplied timestamp is never trusted.
func (h *Hub) receive(ctx context.Context, cl *client, in inboundFrame) {
	if in.Body == "" {
		return
	}

	msg := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   cl.userID,
		SenderName: cl.name,
		Body:       in.Body,
		Timestamp:  h.clock.Now(),
	}

	telemetry.MessagesReceived.Inc()
	h.eb.Publish(ctx, domain.EventMessageReceived{Message: msg})
}

// Send broadcasts a host message to the room and returns it so the caller
// can anchor timing on the broadcast timestamp.
func (h *Hub) Send(ctx context.Context, text string) (domain.Message, error) {
	msg := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   HostName,
		SenderName: HostName,
		Body:       text,
		Timestamp:  h.clock.Now(),
	}
	h.broadcast(outboundFrame{
		Type:   "chat",
		ID:     msg.ID,
		Sender: msg.SenderName,
		Body:   msg.Body,
		SentAt: msg.Timestamp.UnixMilli(),
	})
	return msg, nil
}

// Reply broadcasts a host message quoting an earlier message id.
func (h *Hub) Reply(ctx context.Context, text, quotedID string) error {
	now := h.clock.Now()
	h.broadcast(outboundFrame{
		Type:     "chat",
		ID:       uuid.NewString(),
		QuotedID: quotedID,
		Sender:   HostName,
		Body:     text,
		SentAt:   now.UnixMilli(),
	})
	return nil
}

// Announce pushes the current standings to every connected client.
func (h *Hub) Announce(standings []domain.Standing) {
	payload := make([]standingPayload, 0, len(standings))
	for _, s := range standings {
		payload = append(payload, standingPayload{Name: s.SenderName, Points: s.Points.String()})
	}
	h.broadcast(outboundFrame{Type: "standings", Standings: payload})
}

// ClientCount reports how many players are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl] = struct{}{}
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, cl)
}

func (h *Hub) broadcast(frame outboundFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		select {
		case cl.send <- frame:
		default:
			// Slow consumer, drop rather than stall the round.
			slog.Warn("chat: dropping frame for slow client", "user", cl.userID)
		}
	}
}
