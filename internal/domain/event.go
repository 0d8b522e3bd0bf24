package domain

const (
	EventNameMessageReceived    = "chat.message.received"
	EventNameRoundOpened        = "round.opened"
	EventNameRoundLocked        = "round.locked"
	EventNameRoundRevealed      = "round.revealed"
	EventNameRoundDone          = "round.done"
	EventNameSessionEnded       = "session.ended"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventMessageReceived carries one inbound chat message from the transport.
type EventMessageReceived struct {
	Message Message
}

func (EventMessageReceived) Name() string { return EventNameMessageReceived }

type EventRoundOpened struct {
	Number   int
	Question Question
}

func (EventRoundOpened) Name() string { return EventNameRoundOpened }

type EventRoundLocked struct {
	Number int
}

func (EventRoundLocked) Name() string { return EventNameRoundLocked }

type EventRoundRevealed struct {
	Number int
	// First is the fastest counted winner, if any.
	First    *Winner
	NoWinner bool
}

func (EventRoundRevealed) Name() string { return EventNameRoundRevealed }

// EventRoundDone is published when a round reaches its terminal state, with
// the round's final winner list.
type EventRoundDone struct {
	Number   int
	Question string
	Winners  []Winner
}

func (EventRoundDone) Name() string { return EventNameRoundDone }

// EventSessionEnded is published after the last round completes and the
// leaderboard has been sealed.
type EventSessionEnded struct {
	Leaderboard Leaderboard
}

func (EventSessionEnded) Name() string { return EventNameSessionEnded }

type EventLeaderboardUpdated struct {
	Standings []Standing
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
