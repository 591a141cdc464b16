// internal/models/party.go
package models

import "github.com/google/uuid"

// PartyMember is one seat in a party, in join order.
type PartyMember struct {
	SessionID uuid.UUID `json:"sessionId"`
	UserID    uuid.UUID `json:"userId"`
	Nickname  string    `json:"nickname"`
}

// Party groups sessions that queue and leave as a single block under one leader.
type Party struct {
	ID              uuid.UUID     `json:"id"`
	LeaderSessionID uuid.UUID     `json:"leaderSessionId"`
	Members         []PartyMember `json:"members"`
	QueuedMode      *Mode         `json:"queuedMode"` // nil when the party is not queued
}

// Size returns the member count.
func (p *Party) Size() int {
	return len(p.Members)
}

// HasMember reports whether the session is a member.
func (p *Party) HasMember(sessionID uuid.UUID) bool {
	return p.memberIndex(sessionID) >= 0
}

// RemoveMember drops a session from the member list, preserving order.
func (p *Party) RemoveMember(sessionID uuid.UUID) bool {
	idx := p.memberIndex(sessionID)
	if idx < 0 {
		return false
	}
	p.Members = append(p.Members[:idx], p.Members[idx+1:]...)
	return true
}

// SessionIDs returns the member session ids in join order.
func (p *Party) SessionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.SessionID)
	}
	return ids
}

// Snapshot returns a deep copy that is safe to hand to the transport.
func (p *Party) Snapshot() Party {
	cp := *p
	cp.Members = append([]PartyMember(nil), p.Members...)
	if p.QueuedMode != nil {
		m := *p.QueuedMode
		cp.QueuedMode = &m
	}
	return cp
}

func (p *Party) memberIndex(sessionID uuid.UUID) int {
	for i, m := range p.Members {
		if m.SessionID == sessionID {
			return i
		}
	}
	return -1
}
