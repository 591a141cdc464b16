// internal/engine/commands.go
package engine

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/models"
)

// Command is an input to the engine loop.
type Command interface {
	// origin is the session that issued the command, uuid.Nil for internal ones.
	origin() uuid.UUID
	// errorEvent names the event a failure is reported on.
	errorEvent() string
}

// From identifies the issuing session.
type From struct {
	SessionID uuid.UUID
}

func (f From) origin() uuid.UUID { return f.SessionID }

type system struct{}

func (system) origin() uuid.UUID { return uuid.Nil }
func (system) errorEvent() string { return "" }

// Connect registers a new connection.
type Connect struct{ From }

// Disconnect runs the full cascade for a closed connection.
type Disconnect struct{ From }

// Authenticate binds a user id to the session.
type Authenticate struct {
	From
	Token string
}

type JoinQueue struct {
	From
	Mode string
}

type LeaveQueue struct {
	From
	Mode string // optional; empty matches any mode
}

type CreateParty struct{ From }

type JoinParty struct {
	From
	PartyID uuid.UUID
}

type LeaveParty struct{ From }

type PartyJoinQueue struct {
	From
	Mode string
}

type PartyLeaveQueue struct {
	From
	Mode string
}

type PlayerReady struct {
	From
	MatchID uuid.UUID
}

type DeclineMatch struct {
	From
	MatchID uuid.UUID
}

// ReportResult carries raw JSON numbers so non-integral scores can be rejected.
type ReportResult struct {
	From
	MatchID   uuid.UUID
	ScoreRed  float64
	ScoreBlue float64
}

// Tick runs one formation pass over every pool.
type Tick struct{ system }

// expireReadyCheck is posted by a ready check timer.
type expireReadyCheck struct {
	system
	matchID uuid.UUID
}

// Stats fills Out with a snapshot of the engine tables.
type Stats struct {
	system
	Out *Snapshot
}

// Snapshot summarises engine state for health checks.
type Snapshot struct {
	Sessions       int                          `json:"sessions"`
	ByStatus       map[models.SessionStatus]int `json:"byStatus"`
	Parties        int                          `json:"parties"`
	Pools          map[models.Mode]int          `json:"pools"`
	Waiting        map[models.Mode][]uuid.UUID  `json:"waiting"` // user ids in queue order
	PendingMatches int                          `json:"pendingMatches"`
	ActiveMatches  int                          `json:"activeMatches"`
}

func (Connect) errorEvent() string { return models.EventAuthError }
func (Disconnect) errorEvent() string { return "" }
func (Authenticate) errorEvent() string { return models.EventAuthError }
func (JoinQueue) errorEvent() string { return models.EventQueueError }
func (LeaveQueue) errorEvent() string { return models.EventQueueError }
func (CreateParty) errorEvent() string { return models.EventPartyError }
func (JoinParty) errorEvent() string { return models.EventPartyError }
func (LeaveParty) errorEvent() string { return models.EventPartyError }
func (PartyJoinQueue) errorEvent() string { return models.EventPartyError }
func (PartyLeaveQueue) errorEvent() string { return models.EventPartyError }
func (PlayerReady) errorEvent() string { return models.EventMatchError }
func (DeclineMatch) errorEvent() string { return models.EventMatchError }
func (ReportResult) errorEvent() string { return models.EventMatchResultError }
