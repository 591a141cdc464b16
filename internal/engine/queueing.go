// internal/engine/queueing.go
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/formation"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/sirupsen/logrus"
)

func (e *Engine) joinQueue(ctx context.Context, sessionID uuid.UUID, rawMode string) error {
	s, err := e.requireAuth(sessionID)
	if err != nil {
		return err
	}
	if s.InParty() {
		if s.IsPartyLeader {
			return e.partyJoinQueue(ctx, sessionID, rawMode)
		}
		return apperr.ErrNotLeader.Withf("only the party leader may queue the party")
	}
	mode, err := models.ParseMode(rawMode)
	if err != nil {
		return apperr.ErrInvalidMode.Withf("%v", err)
	}
	if err := e.checkAvailable(s); err != nil {
		return err
	}

	entry, err := e.entryFor(ctx, s, mode)
	if err != nil {
		return err
	}
	b := &models.Block{Mode: mode, Entries: []models.QueueEntry{entry}}
	if err := e.queue.Join(b); err != nil {
		return err
	}
	e.markQueued(b)
	e.transport.Notify(sessionID, models.EventQueueJoined, e.joinedPayload(b))

	e.tick(ctx)
	return nil
}

func (e *Engine) leaveQueue(ctx context.Context, sessionID uuid.UUID, rawMode string) error {
	s, err := e.requireAuth(sessionID)
	if err != nil {
		return err
	}
	if s.InParty() {
		if s.IsPartyLeader {
			return e.partyLeaveQueue(ctx, sessionID, rawMode)
		}
		return apperr.ErrNotLeader.Withf("only the party leader may withdraw the party")
	}
	b, ok := e.queue.BlockOf(s.UserID)
	if !ok {
		return apperr.ErrNotQueued
	}
	if rawMode != "" && models.Mode(rawMode) != b.Mode {
		return apperr.ErrNotQueued.Withf("not queued for %s", rawMode)
	}
	if _, err := e.queue.LeaveUser(s.UserID); err != nil {
		return err
	}
	e.releaseBlock(b, "left")
	return nil
}

// checkAvailable enforces one queue, ready check or match per user.
func (e *Engine) checkAvailable(s models.Session) error {
	if s.Status != models.StatusIdle {
		return apperr.ErrAlreadyQueued.Withf("session is %s", s.Status)
	}
	if _, queued := e.queue.BlockOf(s.UserID); queued {
		return apperr.ErrAlreadyQueued
	}
	if _, matched := e.byUser[s.UserID]; matched {
		return apperr.ErrAlreadyQueued.Withf("user is still in a match")
	}
	return nil
}

// entryFor snapshots the user's current rating into a queue entry.
func (e *Engine) entryFor(ctx context.Context, s models.Session, mode models.Mode) (models.QueueEntry, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	rec, err := e.store.GetRating(sctx, s.UserID, mode)
	if err != nil {
		return models.QueueEntry{}, apperr.Internal(err, "failed to load rating")
	}
	return models.QueueEntry{
		UserID:    s.UserID,
		Nickname:  s.Nickname,
		Rating:    rec.Rating,
		SessionID: s.ID,
		Mode:      mode,
		PartyID:   s.PartyID,
	}, nil
}

func (e *Engine) markQueued(b *models.Block) {
	status := models.StatusQueued
	for _, sid := range b.SessionIDs() {
		mode := b.Mode
		e.sessions.Update(sid, models.SessionPatch{Status: &status, QueueMode: &mode})
	}
}

func (e *Engine) joinedPayload(b *models.Block) models.QueueJoinedPayload {
	return models.QueueJoinedPayload{
		Mode:     b.Mode,
		PartyID:  b.PartyID,
		PoolSize: e.queue.PoolSize(b.Mode),
		Window:   e.queue.Window(b, e.clock.Now()),
	}
}

// releaseBlock returns a withdrawn block's sessions to idle and tells them why.
func (e *Engine) releaseBlock(b *models.Block, reason string) {
	payload := models.QueueLeftPayload{Mode: b.Mode, PartyID: b.PartyID, Reason: reason}
	for _, sid := range b.SessionIDs() {
		if _, ok := e.sessions.Get(sid); !ok {
			continue
		}
		e.sessions.Release(sid)
		e.transport.Notify(sid, models.EventQueueLeft, payload)
	}
	if b.IsParty() {
		e.parties.SetQueued(b.PartyID, nil)
	}
	e.logger.WithFields(logrus.Fields{"mode": b.Mode, "block_id": b.ID, "reason": reason}).Info("block left queue")
}

// tick runs one formation pass and starts a ready check for every proposal.
func (e *Engine) tick(ctx context.Context) {
	for _, p := range e.queue.Tick(e.clock.Now()) {
		e.formMatch(ctx, p)
	}
}

// formMatch turns a proposal into a pending-ready match. rating-before is
// re-read from the store so the baseline is fixed at formation time.
func (e *Engine) formMatch(ctx context.Context, p formation.Proposal) {
	m := &models.Match{
		ID:        uuid.New(),
		Mode:      p.Mode,
		Status:    models.MatchPendingReady,
		Settings:  models.MatchSettings{ScoreLimit: e.cfg.scoreLimit(p.Mode)},
		CreatedAt: e.clock.Now(),
		Blocks:    p.Blocks(),
	}
	m.Roster.Red = e.rosterFor(ctx, p.Red)
	m.Roster.Blue = e.rosterFor(ctx, p.Blue)
	m.HostUserID = m.Roster.Red[0].UserID
	e.matches[m.ID] = m

	status := models.StatusReadyCheck
	var noMode models.Mode
	userIDs := make([]uuid.UUID, 0, p.Mode.PlayerCount())
	for _, pl := range m.Roster.Players() {
		userIDs = append(userIDs, pl.UserID)
		e.byUser[pl.UserID] = m.ID
		e.sessions.Update(pl.SessionID, models.SessionPatch{Status: &status, QueueMode: &noMode, MatchID: &m.ID})
		e.transport.Join(m.ID, pl.SessionID)
	}
	for _, b := range m.Blocks {
		if b.IsParty() {
			e.parties.SetQueued(b.PartyID, nil)
		}
	}

	deadline := e.ready.Start(m.ID, userIDs, func(id uuid.UUID) {
		e.post(ctx, expireReadyCheck{matchID: id})
	})
	e.transport.Broadcast(m.ID, models.EventMatchFound, models.MatchFoundPayload{
		MatchID:    m.ID,
		Mode:       m.Mode,
		Roster:     m.Roster,
		HostUserID: m.HostUserID,
		Settings:   m.Settings,
		Deadline:   deadline,
	})

	e.logger.WithFields(logrus.Fields{
		"match_id": m.ID,
		"mode":     m.Mode,
		"red_avg":  m.Roster.AverageRating(models.TeamRed),
		"blue_avg": m.Roster.AverageRating(models.TeamBlue),
	}).Info("match formed")
	e.publish(ctx, m, models.LifecycleFormed, "", userIDs, map[string]any{
		"red_avg":  m.Roster.AverageRating(models.TeamRed),
		"blue_avg": m.Roster.AverageRating(models.TeamBlue),
	})
}

func (e *Engine) rosterFor(ctx context.Context, blocks []*models.Block) []models.RosterPlayer {
	var out []models.RosterPlayer
	for _, b := range blocks {
		for _, entry := range b.Entries {
			out = append(out, models.RosterPlayer{
				UserID:       entry.UserID,
				SessionID:    entry.SessionID,
				Nickname:     entry.Nickname,
				RatingBefore: e.currentRating(ctx, entry),
				PartyID:      b.PartyID,
			})
		}
	}
	return out
}

func (e *Engine) currentRating(ctx context.Context, entry models.QueueEntry) int {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	rec, err := e.store.GetRating(sctx, entry.UserID, entry.Mode)
	if err != nil {
		e.logger.WithError(err).WithField("user_id", entry.UserID).Warn("rating snapshot failed, using queue rating")
		return entry.Rating
	}
	return rec.Rating
}
