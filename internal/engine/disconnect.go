// internal/engine/disconnect.go
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/sirupsen/logrus"
)

// disconnect is the single teardown path for a closed connection: abort a
// pending ready check, withdraw the queue block, leave the party, then drop
// the session. An active match is left running for the host to report.
func (e *Engine) disconnect(ctx context.Context, sessionID uuid.UUID) {
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		return
	}
	log := e.logger.WithFields(logrus.Fields{"session_id": sessionID, "user_id": s.UserID})

	if s.Authenticated() {
		if matchID, pending := e.ready.MatchOf(s.UserID); pending {
			if m, ok := e.matches[matchID]; ok {
				outcome, _ := e.ready.Cancel(matchID)
				e.abort(ctx, m, outcome, models.AbortDisconnect, sessionID)
			}
		}

		if b, queued := e.queue.BlockOf(s.UserID); queued {
			if _, err := e.queue.LeaveUser(s.UserID); err == nil {
				e.releaseBlock(b, "member disconnected")
			}
		}

		if matchID, inMatch := e.byUser[s.UserID]; inMatch {
			if m, ok := e.matches[matchID]; ok && m.Status == models.MatchActive && m.HasUser(s.UserID) {
				e.transport.Leave(matchID, sessionID)
				e.transport.Broadcast(matchID, models.EventPlayerConnection, models.PlayerConnectionPayload{
					MatchID: matchID,
					UserID:  s.UserID,
				})
				log.WithField("match_id", matchID).Warn("participant disconnected from active match")
			}
		}
	}

	if s.InParty() {
		e.withdrawParty(s.PartyID, "party changed")
		if _, err := e.parties.Leave(sessionID); err != nil {
			log.WithError(err).Debug("party leave on disconnect")
		}
	}

	e.sessions.Destroy(sessionID)
	log.Info("session disconnected")
}
