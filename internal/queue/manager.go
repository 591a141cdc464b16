// Package queue holds the per-mode waiting pools.
package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/formation"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Config controls rating window growth.
type Config struct {
	InitialWindow int
	WindowStep    int
	MaxWindow     int
	TickInterval  time.Duration
}

// Manager owns one ordered pool per supported mode. Pool order is matching
// order. It is not safe for concurrent use; the engine loop is its only caller.
type Manager struct {
	cfg     Config
	pools   map[models.Mode][]*models.Block
	byUser  map[uuid.UUID]*models.Block
	byParty map[uuid.UUID]*models.Block

	clock  clockwork.Clock
	logger logrus.FieldLogger
}

// NewManager creates empty pools for every supported mode.
func NewManager(cfg Config, clock clockwork.Clock, logger logrus.FieldLogger) *Manager {
	m := &Manager{
		cfg:     cfg,
		pools:   make(map[models.Mode][]*models.Block, len(models.SupportedModes)),
		byUser:  make(map[uuid.UUID]*models.Block),
		byParty: make(map[uuid.UUID]*models.Block),
		clock:   clock,
		logger:  logger,
	}
	for _, mode := range models.SupportedModes {
		m.pools[mode] = nil
	}
	return m
}

// Join appends a block to the tail of its mode's pool.
func (m *Manager) Join(b *models.Block) error {
	if _, ok := m.pools[b.Mode]; !ok {
		return apperr.ErrInvalidMode.Withf("no pool for mode %q", b.Mode)
	}
	if b.Size() == 0 {
		return apperr.ErrNotQueued.Withf("empty block")
	}
	if b.Size() > b.Mode.TeamSize() {
		return apperr.ErrPartyTooLarge.Withf("block of %d does not fit a %s team", b.Size(), b.Mode)
	}
	if err := m.checkFree(b); err != nil {
		return err
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.EnqueuedAt.IsZero() {
		b.EnqueuedAt = m.clock.Now()
	}
	for i := range b.Entries {
		b.Entries[i].Mode = b.Mode
		b.Entries[i].PartyID = b.PartyID
		if b.Entries[i].EnqueuedAt.IsZero() {
			b.Entries[i].EnqueuedAt = b.EnqueuedAt
		}
	}

	m.pools[b.Mode] = append(m.pools[b.Mode], b)
	m.index(b)
	m.logger.WithFields(logrus.Fields{
		"mode":     b.Mode,
		"block_id": b.ID,
		"party_id": b.PartyID,
		"size":     b.Size(),
		"rating":   b.Rating(),
	}).Info("block queued")
	return nil
}

// LeaveUser removes the whole block containing the user.
func (m *Manager) LeaveUser(userID uuid.UUID) (*models.Block, error) {
	b, ok := m.byUser[userID]
	if !ok {
		return nil, apperr.ErrNotQueued
	}
	m.remove(b)
	return b, nil
}

// RemoveParty withdraws a party's block, if queued.
func (m *Manager) RemoveParty(partyID uuid.UUID) (*models.Block, bool) {
	b, ok := m.byParty[partyID]
	if !ok {
		return nil, false
	}
	m.remove(b)
	return b, true
}

// BlockOf returns the block holding the user.
func (m *Manager) BlockOf(userID uuid.UUID) (*models.Block, bool) {
	b, ok := m.byUser[userID]
	return b, ok
}

// Requeue puts blocks back at the head of their pools, keeping their relative
// order and original enqueue time.
func (m *Manager) Requeue(blocks []*models.Block) {
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		if err := m.checkFree(b); err != nil {
			m.logger.WithField("block_id", b.ID).WithError(err).Warn("skipping requeue")
			continue
		}
		m.pools[b.Mode] = append([]*models.Block{b}, m.pools[b.Mode]...)
		m.index(b)
		m.logger.WithFields(logrus.Fields{"mode": b.Mode, "block_id": b.ID}).Info("block requeued at head")
	}
}

// Window is the acceptable rating distance for a block at the given instant.
// It widens by one step per full tick interval waited, up to the ceiling.
func (m *Manager) Window(b *models.Block, now time.Time) int {
	w := m.cfg.InitialWindow
	if m.cfg.TickInterval > 0 {
		waited := now.Sub(b.EnqueuedAt)
		if waited > 0 {
			w += m.cfg.WindowStep * int(waited/m.cfg.TickInterval)
		}
	}
	if w > m.cfg.MaxWindow {
		w = m.cfg.MaxWindow
	}
	return w
}

// Tick runs formation over every pool and removes consumed blocks.
func (m *Manager) Tick(now time.Time) []formation.Proposal {
	var out []formation.Proposal
	for _, mode := range models.SupportedModes {
		pool := m.pools[mode]
		if len(pool) == 0 {
			continue
		}
		proposals := formation.Form(mode, pool, func(b *models.Block) int {
			return m.Window(b, now)
		})
		for _, p := range proposals {
			for _, b := range p.Blocks() {
				m.remove(b)
			}
		}
		if len(proposals) > 0 {
			m.logger.WithFields(logrus.Fields{
				"mode":      mode,
				"proposals": len(proposals),
				"remaining": len(m.pools[mode]),
			}).Debug("queue tick formed matches")
		}
		out = append(out, proposals...)
	}
	return out
}

// PoolSize counts waiting players in a mode.
func (m *Manager) PoolSize(mode models.Mode) int {
	n := 0
	for _, b := range m.pools[mode] {
		n += b.Size()
	}
	return n
}

// Pool returns the mode's blocks in queue order.
func (m *Manager) Pool(mode models.Mode) []*models.Block {
	return append([]*models.Block(nil), m.pools[mode]...)
}

func (m *Manager) checkFree(b *models.Block) error {
	for _, e := range b.Entries {
		if _, queued := m.byUser[e.UserID]; queued {
			return apperr.ErrAlreadyQueued
		}
	}
	if b.IsParty() {
		if _, queued := m.byParty[b.PartyID]; queued {
			return apperr.ErrPartyQueued
		}
	}
	return nil
}

func (m *Manager) index(b *models.Block) {
	for _, e := range b.Entries {
		m.byUser[e.UserID] = b
	}
	if b.IsParty() {
		m.byParty[b.PartyID] = b
	}
}

func (m *Manager) remove(b *models.Block) {
	pool := m.pools[b.Mode]
	for i, cur := range pool {
		if cur.ID == b.ID {
			m.pools[b.Mode] = append(pool[:i:i], pool[i+1:]...)
			break
		}
	}
	for _, e := range b.Entries {
		if m.byUser[e.UserID] == b {
			delete(m.byUser, e.UserID)
		}
	}
	if b.IsParty() && m.byParty[b.PartyID] == b {
		delete(m.byParty, b.PartyID)
	}
}
