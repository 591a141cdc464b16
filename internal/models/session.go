// internal/models/session.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus tracks where a live connection currently sits in the match flow.
type SessionStatus string

const (
	StatusIdle       SessionStatus = "idle"
	StatusQueued     SessionStatus = "queued"
	StatusReadyCheck SessionStatus = "ready-check"
	StatusInMatch    SessionStatus = "in-match"
)

// Session is the ephemeral record for one websocket connection.
type Session struct {
	ID       uuid.UUID     `json:"id"`
	UserID   uuid.UUID     `json:"userId"` // uuid.Nil until authenticated
	Nickname string        `json:"nickname"`
	Status   SessionStatus `json:"status"`

	QueueMode     Mode      `json:"queueMode,omitempty"`
	MatchID       uuid.UUID `json:"matchId"`
	PartyID       uuid.UUID `json:"partyId"`
	IsPartyLeader bool      `json:"isPartyLeader"`

	ConnectedAt time.Time `json:"connectedAt"`
}

// Authenticated reports whether a user id has been bound to the session.
func (s Session) Authenticated() bool {
	return s.UserID != uuid.Nil
}

// InParty reports whether the session belongs to a party.
func (s Session) InParty() bool {
	return s.PartyID != uuid.Nil
}

// SessionPatch is a partial update for a Session. Nil fields are left untouched.
type SessionPatch struct {
	UserID        *uuid.UUID
	Nickname      *string
	Status        *SessionStatus
	QueueMode     *Mode
	MatchID       *uuid.UUID
	PartyID       *uuid.UUID
	IsPartyLeader *bool
}

// Apply copies every set field of the patch onto s.
func (p SessionPatch) Apply(s *Session) {
	if p.UserID != nil {
		s.UserID = *p.UserID
	}
	if p.Nickname != nil {
		s.Nickname = *p.Nickname
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.QueueMode != nil {
		s.QueueMode = *p.QueueMode
	}
	if p.MatchID != nil {
		s.MatchID = *p.MatchID
	}
	if p.PartyID != nil {
		s.PartyID = *p.PartyID
	}
	if p.IsPartyLeader != nil {
		s.IsPartyLeader = *p.IsPartyLeader
	}
}
