// internal/engine/authenticate.go
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/sirupsen/logrus"
)

func (e *Engine) authenticate(ctx context.Context, c Authenticate) error {
	if e.verifier == nil {
		return apperr.Internal(fmt.Errorf("no token verifier configured"), "authentication unavailable")
	}
	userID, err := e.verifier.VerifyToken(c.Token)
	if err != nil {
		return apperr.ErrInvalidToken
	}
	s, ok := e.sessions.Get(c.SessionID)
	if !ok {
		return apperr.ErrAuthRequired.Withf("session %s is not connected", c.SessionID)
	}
	if s.Authenticated() && s.UserID != userID && (s.Status != models.StatusIdle || s.InParty()) {
		return apperr.ErrAlreadyQueued.Withf("cannot switch identity while %s", s.Status)
	}

	nickname := s.Nickname
	if !s.Authenticated() || s.UserID != userID {
		nickname = e.nickname(ctx, userID)
	}
	s, err = e.sessions.Bind(c.SessionID, userID, nickname)
	if err != nil {
		return err
	}

	e.resumeMatch(s)

	e.logger.WithFields(logrus.Fields{"session_id": s.ID, "user_id": userID}).Info("session authenticated")
	e.transport.Notify(s.ID, models.EventAuthenticated, models.AuthenticatedPayload{UserID: userID, Nickname: nickname})
	return nil
}

// nickname looks up the account name, falling back to a generated guest name.
func (e *Engine) nickname(ctx context.Context, userID uuid.UUID) string {
	if e.store != nil {
		sctx, cancel := e.storeCtx(ctx)
		defer cancel()
		u, err := e.store.GetUserByID(sctx, userID)
		if err == nil && u.Username != "" {
			return u.Username
		}
		if err != nil {
			e.logger.WithError(err).WithField("user_id", userID).Debug("nickname lookup failed")
		}
	}
	return "User_" + userID.String()[:8]
}

// resumeMatch relinks a reconnecting user to the active match they never left.
func (e *Engine) resumeMatch(s models.Session) {
	matchID, ok := e.byUser[s.UserID]
	if !ok {
		return
	}
	m, ok := e.matches[matchID]
	if !ok || m.Status != models.MatchActive {
		return
	}
	status := models.StatusInMatch
	e.sessions.Update(s.ID, models.SessionPatch{Status: &status, MatchID: &m.ID})
	for _, team := range [][]models.RosterPlayer{m.Roster.Red, m.Roster.Blue} {
		for i := range team {
			if team[i].UserID == s.UserID {
				team[i].SessionID = s.ID
			}
		}
	}
	e.transport.Broadcast(m.ID, models.EventPlayerConnection, models.PlayerConnectionPayload{
		MatchID:   m.ID,
		UserID:    s.UserID,
		Connected: true,
	})
	e.transport.Join(m.ID, s.ID)
	e.transport.Notify(s.ID, models.EventMatchActive, activePayload(m))
	e.logger.WithFields(logrus.Fields{"session_id": s.ID, "match_id": m.ID}).Info("session resumed active match")
}
