// internal/models/events.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Outbound event names pushed to sessions or rooms.
const (
	EventAuthenticated    = "authenticated"
	EventAuthError        = "auth-error"
	EventQueueJoined      = "queue-joined"
	EventQueueLeft        = "queue-left"
	EventQueueError       = "queue-error"
	EventPartyUpdated     = "party-updated"
	EventPartyError       = "party-error"
	EventMatchFound       = "match-found"
	EventReadyUpdate      = "ready-update"
	EventMatchAborted     = "match-aborted"
	EventMatchActive      = "match-active"
	EventPlayerConnection = "player-connection"
	EventMatchError       = "match-error"
	EventMatchConcluded   = "match-concluded"
	EventMatchResultError = "match-result-error"
)

// Inbound action names accepted from a session.
const (
	ActionAuthenticate    = "authenticate"
	ActionJoinQueue       = "join-queue"
	ActionLeaveQueue      = "leave-queue"
	ActionCreateParty     = "create-party"
	ActionJoinParty       = "join-party"
	ActionLeaveParty      = "leave-party"
	ActionPartyJoinQueue  = "party-join-queue"
	ActionPartyLeaveQueue = "party-leave-queue"
	ActionPlayerReady     = "player-ready"
	ActionDeclineMatch    = "decline-match"
	ActionReportResult    = "report-result"
)

// Abort reasons carried by match-aborted.
const (
	AbortTimeout    = "timeout"
	AbortDeclined   = "declined"
	AbortDisconnect = "disconnect"
	AbortInternal   = "internal-error"
	AbortAbandoned  = "abandoned"
)

// PlayerConnectionPayload tells an active match room that a participant
// dropped or came back.
type PlayerConnectionPayload struct {
	MatchID   uuid.UUID `json:"matchId"`
	UserID    uuid.UUID `json:"userId"`
	Connected bool      `json:"connected"`
}

// ErrorPayload is the body of every *-error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type AuthenticatedPayload struct {
	UserID   uuid.UUID `json:"userId"`
	Nickname string    `json:"nickname"`
}

// QueueJoinedPayload acknowledges a queue join with the pool status.
type QueueJoinedPayload struct {
	Mode     Mode      `json:"mode"`
	PartyID  uuid.UUID `json:"partyId"`
	PoolSize int       `json:"poolSize"`
	Window   int       `json:"window"`
}

type QueueLeftPayload struct {
	Mode    Mode      `json:"mode"`
	PartyID uuid.UUID `json:"partyId"`
	Reason  string    `json:"reason,omitempty"`
}

// MatchFoundPayload starts the ready check on the client.
type MatchFoundPayload struct {
	MatchID    uuid.UUID     `json:"matchId"`
	Mode       Mode          `json:"mode"`
	Roster     Roster        `json:"roster"`
	HostUserID uuid.UUID     `json:"hostUserId"`
	Settings   MatchSettings `json:"settings"`
	Deadline   time.Time     `json:"deadline"`
}

type ReadyUpdatePayload struct {
	MatchID uuid.UUID `json:"matchId"`
	UserID  uuid.UUID `json:"userId"`
	Ready   int       `json:"ready"`
	Total   int       `json:"total"`
}

type MatchAbortedPayload struct {
	MatchID  uuid.UUID `json:"matchId"`
	Reason   string    `json:"reason"`
	Requeued bool      `json:"requeued"`
}

type MatchActivePayload struct {
	MatchID    uuid.UUID     `json:"matchId"`
	Mode       Mode          `json:"mode"`
	Roster     Roster        `json:"roster"`
	HostUserID uuid.UUID     `json:"hostUserId"`
	Settings   MatchSettings `json:"settings"`
	StartedAt  time.Time     `json:"startedAt"`
}

// MatchConcludedPayload is sent individually so each player sees their own delta.
type MatchConcludedPayload struct {
	MatchID      uuid.UUID `json:"matchId"`
	ScoreRed     int       `json:"scoreRed"`
	ScoreBlue    int       `json:"scoreBlue"`
	Team         Team      `json:"team"`
	Outcome      Outcome   `json:"outcome"`
	RatingBefore int       `json:"ratingBefore"`
	RatingAfter  int       `json:"ratingAfter"`
	Delta        int       `json:"delta"`
}

// Lifecycle record types pushed to the event log.
const (
	LifecycleFormed    = "formed"
	LifecycleConfirmed = "confirmed"
	LifecycleAborted   = "aborted"
	LifecycleCompleted = "completed"
)

// LifecycleEvent is one match lifecycle record consumed by the historian.
type LifecycleEvent struct {
	MatchID   uuid.UUID      `json:"match_id"`
	Mode      Mode           `json:"mode"`
	Type      string         `json:"type"`
	Reason    string         `json:"reason,omitempty"`
	UserIDs   []uuid.UUID    `json:"user_ids,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// PeerSetup is the signaling handoff for a confirmed match.
type PeerSetup struct {
	MatchID    uuid.UUID `json:"match_id"`
	Mode       Mode      `json:"mode"`
	HostUserID uuid.UUID `json:"host_user_id"`
	Roster     Roster    `json:"roster"`
	IssuedAt   int64     `json:"issued_at"`
}

// PartyUpdatedPayload carries the full party snapshot after every mutation.
type PartyUpdatedPayload struct {
	Party     Party  `json:"party"`
	Dissolved bool   `json:"dissolved"`
	Reason    string `json:"reason,omitempty"`
}
