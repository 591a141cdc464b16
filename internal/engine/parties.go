// internal/engine/parties.go
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
)

func (e *Engine) createParty(sessionID uuid.UUID) error {
	if _, err := e.requireAuth(sessionID); err != nil {
		return err
	}
	_, err := e.parties.Create(sessionID)
	return err
}

func (e *Engine) joinParty(sessionID, partyID uuid.UUID) error {
	s, err := e.requireAuth(sessionID)
	if err != nil {
		return err
	}
	if _, matched := e.byUser[s.UserID]; matched {
		return apperr.ErrAlreadyQueued.Withf("user is still in a match")
	}
	_, err = e.parties.Join(sessionID, partyID)
	return err
}

// leaveParty withdraws any queued party block before the membership change.
func (e *Engine) leaveParty(_ context.Context, sessionID uuid.UUID) error {
	s, err := e.requireAuth(sessionID)
	if err != nil {
		return err
	}
	if !s.InParty() {
		return apperr.ErrNotInParty
	}
	e.withdrawParty(s.PartyID, "party changed")
	_, err = e.parties.Leave(sessionID)
	return err
}

func (e *Engine) partyJoinQueue(ctx context.Context, sessionID uuid.UUID, rawMode string) error {
	if _, err := e.requireAuth(sessionID); err != nil {
		return err
	}
	p, mode, err := e.parties.CheckQueue(sessionID, rawMode)
	if err != nil {
		return err
	}

	b := &models.Block{Mode: mode, PartyID: p.ID}
	for _, member := range p.Members {
		s, ok := e.sessions.Get(member.SessionID)
		if !ok {
			return apperr.ErrNotInParty.Withf("member %s is gone", member.SessionID)
		}
		if err := e.checkAvailable(s); err != nil {
			return err
		}
		entry, err := e.entryFor(ctx, s, mode)
		if err != nil {
			return err
		}
		b.Entries = append(b.Entries, entry)
	}
	if err := e.queue.Join(b); err != nil {
		return err
	}
	e.markQueued(b)
	e.parties.SetQueued(p.ID, &mode)
	e.transport.Broadcast(p.ID, models.EventQueueJoined, e.joinedPayload(b))

	e.tick(ctx)
	return nil
}

func (e *Engine) partyLeaveQueue(_ context.Context, sessionID uuid.UUID, rawMode string) error {
	if _, err := e.requireAuth(sessionID); err != nil {
		return err
	}
	p, err := e.parties.CheckLeaveQueue(sessionID)
	if err != nil {
		return err
	}
	if rawMode != "" && p.QueuedMode != nil && models.Mode(rawMode) != *p.QueuedMode {
		return apperr.ErrNotQueued.Withf("party is queued for %s", *p.QueuedMode)
	}
	e.withdrawParty(p.ID, "left")
	return nil
}

// withdrawParty removes the party's block from its pool, if any.
func (e *Engine) withdrawParty(partyID uuid.UUID, reason string) {
	b, ok := e.queue.RemoveParty(partyID)
	if !ok {
		return
	}
	e.releaseBlock(b, reason)
}
