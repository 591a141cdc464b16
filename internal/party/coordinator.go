// Package party groups sessions so they queue and leave as one block under a leader.
package party

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jason-s-yu/arena/internal/session"
	"github.com/sirupsen/logrus"
)

// Rooms is the slice of the transport the coordinator needs. Party rooms are
// keyed by party id.
type Rooms interface {
	Join(room, sessionID uuid.UUID)
	Leave(room, sessionID uuid.UUID)
	Broadcast(room uuid.UUID, event string, payload any)
}

// Coordinator owns the party table. It is not safe for concurrent use; the
// engine loop is its only caller.
type Coordinator struct {
	parties  map[uuid.UUID]*models.Party
	registry *session.Registry
	rooms    Rooms
	maxSize  int
	logger   logrus.FieldLogger
}

// NewCoordinator creates a Coordinator. maxSize caps membership independent of mode.
func NewCoordinator(registry *session.Registry, rooms Rooms, maxSize int, logger logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		parties:  make(map[uuid.UUID]*models.Party),
		registry: registry,
		rooms:    rooms,
		maxSize:  maxSize,
		logger:   logger,
	}
}

// LeaveResult describes the effect of a leave.
type LeaveResult struct {
	Party     models.Party // snapshot after the leave
	Dissolved bool
	Members   []uuid.UUID // sessions affected, including the leaver
}

// Get returns a snapshot of a party.
func (c *Coordinator) Get(partyID uuid.UUID) (models.Party, bool) {
	p, ok := c.parties[partyID]
	if !ok {
		return models.Party{}, false
	}
	return p.Snapshot(), true
}

// Count returns the number of live parties.
func (c *Coordinator) Count() int {
	return len(c.parties)
}

// Create allocates a party with the caller as sole member and leader.
func (c *Coordinator) Create(sessionID uuid.UUID) (models.Party, error) {
	s, err := c.idleSession(sessionID)
	if err != nil {
		return models.Party{}, err
	}
	if s.InParty() {
		return models.Party{}, apperr.ErrAlreadyInParty
	}

	p := &models.Party{
		ID:              uuid.New(),
		LeaderSessionID: sessionID,
		Members:         []models.PartyMember{{SessionID: sessionID, UserID: s.UserID, Nickname: s.Nickname}},
	}
	c.parties[p.ID] = p

	leader := true
	c.registry.Update(sessionID, models.SessionPatch{PartyID: &p.ID, IsPartyLeader: &leader})
	c.rooms.Join(p.ID, sessionID)

	c.logger.WithFields(logrus.Fields{"party_id": p.ID, "session_id": sessionID}).Info("party created")
	c.broadcast(p, false, "created")
	return p.Snapshot(), nil
}

// Join adds the caller to an existing party. The party id doubles as the invite code.
func (c *Coordinator) Join(sessionID, partyID uuid.UUID) (models.Party, error) {
	s, err := c.idleSession(sessionID)
	if err != nil {
		return models.Party{}, err
	}
	if s.InParty() {
		return models.Party{}, apperr.ErrAlreadyInParty
	}
	p, ok := c.parties[partyID]
	if !ok {
		return models.Party{}, apperr.ErrPartyNotFound
	}
	if c.busy(p) {
		return models.Party{}, apperr.ErrPartyQueued
	}
	if p.Size() >= c.maxSize {
		return models.Party{}, apperr.ErrPartyFull.Withf("party already has %d members", p.Size())
	}

	p.Members = append(p.Members, models.PartyMember{SessionID: sessionID, UserID: s.UserID, Nickname: s.Nickname})
	leader := false
	c.registry.Update(sessionID, models.SessionPatch{PartyID: &p.ID, IsPartyLeader: &leader})
	c.rooms.Join(p.ID, sessionID)

	c.logger.WithFields(logrus.Fields{"party_id": p.ID, "session_id": sessionID, "size": p.Size()}).Info("party joined")
	c.broadcast(p, false, "joined")
	return p.Snapshot(), nil
}

// Leave removes the caller. A leaving leader dissolves the party; there is no
// promotion. Withdrawing a queued block is the caller's responsibility and
// must happen first.
func (c *Coordinator) Leave(sessionID uuid.UUID) (LeaveResult, error) {
	s, ok := c.registry.Get(sessionID)
	if !ok || !s.InParty() {
		return LeaveResult{}, apperr.ErrNotInParty
	}
	p, ok := c.parties[s.PartyID]
	if !ok {
		c.clearMembership(sessionID)
		return LeaveResult{}, apperr.ErrPartyNotFound
	}

	log := c.logger.WithFields(logrus.Fields{"party_id": p.ID, "session_id": sessionID})
	p.QueuedMode = nil

	if p.LeaderSessionID == sessionID {
		members := p.SessionIDs()
		c.broadcast(p, true, "leader left")
		for _, sid := range members {
			c.clearMembership(sid)
			c.rooms.Leave(p.ID, sid)
		}
		delete(c.parties, p.ID)
		log.WithField("members", len(members)).Info("party dissolved")
		return LeaveResult{Party: p.Snapshot(), Dissolved: true, Members: members}, nil
	}

	p.RemoveMember(sessionID)
	c.clearMembership(sessionID)
	c.rooms.Leave(p.ID, sessionID)
	if p.Size() == 0 {
		delete(c.parties, p.ID)
		log.Info("party emptied")
		return LeaveResult{Party: p.Snapshot(), Dissolved: true, Members: []uuid.UUID{sessionID}}, nil
	}
	log.WithField("size", p.Size()).Info("party member left")
	c.broadcast(p, false, "member left")
	return LeaveResult{Party: p.Snapshot(), Members: []uuid.UUID{sessionID}}, nil
}

// CheckQueue validates a party queue action without mutating anything.
func (c *Coordinator) CheckQueue(sessionID uuid.UUID, rawMode string) (models.Party, models.Mode, error) {
	p, err := c.ledParty(sessionID)
	if err != nil {
		return models.Party{}, "", err
	}
	mode, err := models.ParseMode(rawMode)
	if err != nil {
		return models.Party{}, "", apperr.ErrInvalidMode.Withf("%v", err)
	}
	if p.Size() > mode.TeamSize() {
		return models.Party{}, "", apperr.ErrPartyTooLarge.Withf("party of %d does not fit a %s team", p.Size(), mode)
	}
	if c.busy(p) {
		return models.Party{}, "", apperr.ErrPartyQueued
	}
	return p.Snapshot(), mode, nil
}

// CheckLeaveQueue validates a leader withdrawing the party block.
func (c *Coordinator) CheckLeaveQueue(sessionID uuid.UUID) (models.Party, error) {
	p, err := c.ledParty(sessionID)
	if err != nil {
		return models.Party{}, err
	}
	if p.QueuedMode == nil {
		return models.Party{}, apperr.ErrNotQueued
	}
	return p.Snapshot(), nil
}

// SetQueued records the party's queue goal (nil clears it) and re-broadcasts.
func (c *Coordinator) SetQueued(partyID uuid.UUID, mode *models.Mode) {
	p, ok := c.parties[partyID]
	if !ok {
		return
	}
	if mode != nil {
		m := *mode
		p.QueuedMode = &m
	} else {
		p.QueuedMode = nil
	}
	reason := "queue left"
	if mode != nil {
		reason = "queued " + mode.String()
	}
	c.broadcast(p, false, reason)
}

func (c *Coordinator) ledParty(sessionID uuid.UUID) (*models.Party, error) {
	s, ok := c.registry.Get(sessionID)
	if !ok || !s.InParty() {
		return nil, apperr.ErrNotInParty
	}
	p, ok := c.parties[s.PartyID]
	if !ok {
		return nil, apperr.ErrPartyNotFound
	}
	if p.LeaderSessionID != sessionID {
		return nil, apperr.ErrNotLeader
	}
	return p, nil
}

func (c *Coordinator) idleSession(sessionID uuid.UUID) (models.Session, error) {
	s, ok := c.registry.Get(sessionID)
	if !ok || !s.Authenticated() {
		return models.Session{}, apperr.ErrAuthRequired
	}
	if s.Status != models.StatusIdle {
		return models.Session{}, apperr.ErrAlreadyQueued.Withf("session is %s", s.Status)
	}
	return s, nil
}

// busy reports whether the party is queued or any member sits in a match flow.
func (c *Coordinator) busy(p *models.Party) bool {
	if p.QueuedMode != nil {
		return true
	}
	for _, m := range p.Members {
		if s, ok := c.registry.Get(m.SessionID); ok && s.Status != models.StatusIdle {
			return true
		}
	}
	return false
}

func (c *Coordinator) clearMembership(sessionID uuid.UUID) {
	none := uuid.Nil
	leader := false
	c.registry.Update(sessionID, models.SessionPatch{PartyID: &none, IsPartyLeader: &leader})
}

func (c *Coordinator) broadcast(p *models.Party, dissolved bool, reason string) {
	c.rooms.Broadcast(p.ID, models.EventPartyUpdated, models.PartyUpdatedPayload{
		Party:     p.Snapshot(),
		Dissolved: dissolved,
		Reason:    reason,
	})
}
