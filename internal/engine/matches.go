// internal/engine/matches.go
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jason-s-yu/arena/internal/rating"
	"github.com/jason-s-yu/arena/internal/readycheck"
	"github.com/sirupsen/logrus"
)

// lookupMatch finds a live match, telling finished ones apart from unknown ids.
func (e *Engine) lookupMatch(matchID uuid.UUID) (*models.Match, error) {
	if m, ok := e.matches[matchID]; ok {
		return m, nil
	}
	if _, done := e.archive[matchID]; done {
		return nil, apperr.ErrMatchNotActive
	}
	return nil, apperr.ErrMatchNotFound
}

func (e *Engine) pendingMatch(sessionID, matchID uuid.UUID) (models.Session, *models.Match, error) {
	s, err := e.requireAuth(sessionID)
	if err != nil {
		return s, nil, err
	}
	m, err := e.lookupMatch(matchID)
	if err != nil {
		return s, nil, err
	}
	if m.Status != models.MatchPendingReady {
		return s, nil, apperr.ErrMatchNotActive.Withf("match is %s", m.Status)
	}
	if !m.HasUser(s.UserID) {
		return s, nil, apperr.ErrNotInMatch
	}
	return s, m, nil
}

func (e *Engine) playerReady(ctx context.Context, sessionID, matchID uuid.UUID) error {
	s, m, err := e.pendingMatch(sessionID, matchID)
	if err != nil {
		return err
	}
	progress, err := e.ready.MarkReady(m.ID, s.UserID)
	if err != nil {
		return err
	}
	e.transport.Broadcast(m.ID, models.EventReadyUpdate, models.ReadyUpdatePayload{
		MatchID: m.ID,
		UserID:  s.UserID,
		Ready:   progress.Ready,
		Total:   progress.Total,
	})
	if progress.AllReady {
		e.confirm(ctx, m)
	}
	return nil
}

func (e *Engine) declineMatch(ctx context.Context, sessionID, matchID uuid.UUID) error {
	s, m, err := e.pendingMatch(sessionID, matchID)
	if err != nil {
		return err
	}
	outcome, err := e.ready.Decline(m.ID, s.UserID)
	if err != nil {
		return err
	}
	e.abort(ctx, m, outcome, models.AbortDeclined, uuid.Nil)
	return nil
}

// expire handles a ready check timer. Stale timers are ignored.
func (e *Engine) expire(ctx context.Context, matchID uuid.UUID) {
	outcome, ok := e.ready.Expire(matchID)
	if !ok {
		return
	}
	m, ok := e.matches[matchID]
	if !ok {
		return
	}
	e.abort(ctx, m, outcome, models.AbortTimeout, uuid.Nil)
}

// confirm activates a match once every player acknowledged: persist, hand off
// to peer setup, then move everyone in-match.
func (e *Engine) confirm(ctx context.Context, m *models.Match) {
	now := e.clock.Now()
	m.Status = models.MatchActive
	m.StartedAt = &now

	sctx, cancel := e.storeCtx(ctx)
	err := e.store.CreateMatch(sctx, m)
	cancel()
	if err != nil {
		e.logger.WithError(err).WithField("match_id", m.ID).Error("failed to persist confirmed match")
		m.Status = models.MatchPendingReady
		m.StartedAt = nil
		all := readycheck.Outcome{MatchID: m.ID}
		for _, p := range m.Roster.Players() {
			all.Ready = append(all.Ready, p.UserID)
		}
		e.abort(ctx, m, all, models.AbortInternal, uuid.Nil)
		return
	}

	status := models.StatusInMatch
	for _, p := range m.Roster.Players() {
		e.sessions.Update(p.SessionID, models.SessionPatch{Status: &status, MatchID: &m.ID})
	}

	if e.signaler != nil {
		sctx, cancel := e.storeCtx(ctx)
		err := e.signaler.BeginPeerSetup(sctx, models.PeerSetup{
			MatchID:    m.ID,
			Mode:       m.Mode,
			HostUserID: m.HostUserID,
			Roster:     m.Roster,
			IssuedAt:   now.UnixMilli(),
		})
		cancel()
		if err != nil {
			e.logger.WithError(err).WithField("match_id", m.ID).Warn("peer setup handoff failed")
		}
	}

	e.transport.Broadcast(m.ID, models.EventMatchActive, activePayload(m))
	e.logger.WithFields(logrus.Fields{"match_id": m.ID, "mode": m.Mode, "host": m.HostUserID}).Info("match active")
	e.publish(ctx, m, models.LifecycleConfirmed, "", nil, nil)
}

func activePayload(m *models.Match) models.MatchActivePayload {
	p := models.MatchActivePayload{
		MatchID:    m.ID,
		Mode:       m.Mode,
		Roster:     m.Roster,
		HostUserID: m.HostUserID,
		Settings:   m.Settings,
	}
	if m.StartedAt != nil {
		p.StartedAt = *m.StartedAt
	}
	return p
}

// abort ends a pending match. A block goes back to the head of its pool only
// if every member confirmed and is still connected; otherwise its members are
// released to idle. departed is a session already being torn down.
func (e *Engine) abort(ctx context.Context, m *models.Match, outcome readycheck.Outcome, reason string, departed uuid.UUID) {
	m.Status = models.MatchAborted
	readySet := make(map[uuid.UUID]bool, len(outcome.Ready))
	for _, uid := range outcome.Ready {
		readySet[uid] = true
	}

	var requeue []*models.Block
	requeued := make(map[uuid.UUID]bool)
	for _, b := range m.Blocks {
		if e.canRequeue(b, readySet, departed) {
			requeue = append(requeue, b)
			for _, sid := range b.SessionIDs() {
				requeued[sid] = true
			}
		}
	}

	for _, p := range m.Roster.Players() {
		delete(e.byUser, p.UserID)
		e.transport.Leave(m.ID, p.SessionID)
		if p.SessionID == departed {
			continue
		}
		if _, ok := e.sessions.Get(p.SessionID); !ok {
			continue
		}
		e.sessions.Release(p.SessionID)
		e.transport.Notify(p.SessionID, models.EventMatchAborted, models.MatchAbortedPayload{
			MatchID:  m.ID,
			Reason:   reason,
			Requeued: requeued[p.SessionID],
		})
	}

	delete(e.matches, m.ID)
	e.archive[m.ID] = models.MatchAborted

	e.queue.Requeue(requeue)
	for _, b := range requeue {
		if _, ok := e.queue.BlockOf(b.Entries[0].UserID); !ok {
			continue
		}
		e.markQueued(b)
		if b.IsParty() {
			mode := b.Mode
			e.parties.SetQueued(b.PartyID, &mode)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"match_id":  m.ID,
		"reason":    reason,
		"not_ready": outcome.NotReady,
		"requeued":  len(requeue),
	}).Warn("match aborted")
	// Non-ready players are the hook for a future penalty system.
	e.publish(ctx, m, models.LifecycleAborted, reason, outcome.NotReady, map[string]any{
		"requeued_blocks": len(requeue),
	})

	if len(requeue) > 0 {
		e.tick(ctx)
	}
}

func (e *Engine) canRequeue(b *models.Block, ready map[uuid.UUID]bool, departed uuid.UUID) bool {
	for _, entry := range b.Entries {
		if !ready[entry.UserID] || entry.SessionID == departed {
			return false
		}
		s, ok := e.sessions.Get(entry.SessionID)
		if !ok || s.UserID != entry.UserID {
			return false
		}
		if b.IsParty() && s.PartyID != b.PartyID {
			return false
		}
	}
	if b.IsParty() {
		p, ok := e.parties.Get(b.PartyID)
		if !ok || p.Size() != b.Size() {
			return false
		}
	}
	return true
}

// reportResult validates a host's score report and applies ratings. Nothing
// is mutated unless validation and persistence both succeed.
func (e *Engine) reportResult(ctx context.Context, c ReportResult) error {
	s, err := e.requireAuth(c.SessionID)
	if err != nil {
		return err
	}
	m, err := e.lookupMatch(c.MatchID)
	if err != nil {
		return err
	}
	if m.Status != models.MatchActive {
		return apperr.ErrMatchNotActive.Withf("match is %s", m.Status)
	}
	if s.UserID != m.HostUserID {
		return apperr.ErrNotAuthorizedReporter
	}
	if err := rating.ValidateScore(c.ScoreRed, c.ScoreBlue, m.Settings.ScoreLimit); err != nil {
		return err
	}

	endedAt := e.clock.Now()
	res := rating.Compute(m, int(c.ScoreRed), int(c.ScoreBlue), e.cfg.KFactor, endedAt)

	sctx, cancel := e.storeCtx(ctx)
	err = e.store.RecordResult(sctx, res)
	cancel()
	if err != nil {
		if errors.Is(err, apperr.ErrMatchNotActive) {
			// the persisted row was closed elsewhere, usually by the stale sweep
			e.abandon(ctx, m)
			return apperr.ErrMatchNotActive.Withf("match %s was closed before the result arrived", m.ID)
		}
		return apperr.Internal(err, "failed to record match result")
	}

	m.Status = models.MatchCompleted
	m.EndedAt = &endedAt
	m.ScoreRed, m.ScoreBlue = &res.ScoreRed, &res.ScoreBlue

	for _, p := range res.Participants {
		delete(e.byUser, p.UserID)
		sid := p.SessionID
		if cur, ok := e.sessions.ByUser(p.UserID); ok {
			sid = cur.ID
		}
		e.transport.Leave(m.ID, sid)
		cur, ok := e.sessions.Get(sid)
		if !ok {
			continue
		}
		e.transport.Notify(sid, models.EventMatchConcluded, models.MatchConcludedPayload{
			MatchID:      m.ID,
			ScoreRed:     res.ScoreRed,
			ScoreBlue:    res.ScoreBlue,
			Team:         p.Team,
			Outcome:      p.Outcome,
			RatingBefore: p.RatingBefore,
			RatingAfter:  p.RatingAfter,
			Delta:        p.Delta,
		})
		if cur.MatchID == m.ID {
			e.sessions.Release(sid)
		}
	}

	delete(e.matches, m.ID)
	e.archive[m.ID] = models.MatchCompleted

	e.logger.WithFields(logrus.Fields{
		"match_id":   m.ID,
		"score_red":  res.ScoreRed,
		"score_blue": res.ScoreBlue,
		"duration":   matchDuration(m).String(),
	}).Info("match completed")
	e.publish(ctx, m, models.LifecycleCompleted, "", nil, map[string]any{
		"score_red":  res.ScoreRed,
		"score_blue": res.ScoreBlue,
	})
	return nil
}

// abandon drops an active match whose stored row is already closed and returns
// its participants to idle.
func (e *Engine) abandon(ctx context.Context, m *models.Match) {
	m.Status = models.MatchAbandoned
	userIDs := make([]uuid.UUID, 0, len(m.Roster.Red)+len(m.Roster.Blue))
	for _, p := range m.Roster.Players() {
		userIDs = append(userIDs, p.UserID)
		delete(e.byUser, p.UserID)
		sid := p.SessionID
		if cur, ok := e.sessions.ByUser(p.UserID); ok {
			sid = cur.ID
		}
		e.transport.Leave(m.ID, sid)
		cur, ok := e.sessions.Get(sid)
		if !ok || cur.MatchID != m.ID {
			continue
		}
		e.sessions.Release(sid)
		e.transport.Notify(sid, models.EventMatchAborted, models.MatchAbortedPayload{
			MatchID: m.ID,
			Reason:  models.AbortAbandoned,
		})
	}

	delete(e.matches, m.ID)
	e.archive[m.ID] = models.MatchAbandoned

	e.logger.WithField("match_id", m.ID).Warn("match row already closed, dropping active match")
	e.publish(ctx, m, models.LifecycleAborted, models.AbortAbandoned, userIDs, nil)
}

func matchDuration(m *models.Match) time.Duration {
	if m.StartedAt == nil || m.EndedAt == nil {
		return 0
	}
	return m.EndedAt.Sub(*m.StartedAt)
}
