// internal/session/registry.go
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Registry tracks every live connection's ephemeral Session.
// Reads return copies so callers never hold a pointer into the table.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.Session
	byUser   map[uuid.UUID]uuid.UUID // user id -> session id, authenticated sessions only

	clock  clockwork.Clock
	logger logrus.FieldLogger
}

// NewRegistry initializes an empty Registry.
func NewRegistry(clock clockwork.Clock, logger logrus.FieldLogger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*models.Session),
		byUser:   make(map[uuid.UUID]uuid.UUID),
		clock:    clock,
		logger:   logger,
	}
}

// Create registers a new idle, unauthenticated session. Creating an id that
// already exists returns the existing session unchanged.
func (r *Registry) Create(sessionID uuid.UUID) models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, exists := r.sessions[sessionID]; exists {
		r.logger.WithField("session_id", sessionID).Warn("session already registered")
		return *s
	}
	s := &models.Session{
		ID:          sessionID,
		Status:      models.StatusIdle,
		ConnectedAt: r.clock.Now(),
	}
	r.sessions[sessionID] = s
	r.logger.WithField("session_id", sessionID).Debug("session created")
	return *s
}

// Get returns a copy of the session.
func (r *Registry) Get(sessionID uuid.UUID) (models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Session{}, false
	}
	return *s, true
}

// ByUser returns the live session bound to the user, if any.
func (r *Registry) ByUser(userID uuid.UUID) (models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byUser[userID]
	if !ok {
		return models.Session{}, false
	}
	return *r.sessions[sid], true
}

// Bind attaches an authenticated identity. A user may hold only one live session.
func (r *Registry) Bind(sessionID, userID uuid.UUID, nickname string) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Session{}, apperr.ErrAuthRequired.Withf("session %s is not registered", sessionID)
	}
	if other, taken := r.byUser[userID]; taken && other != sessionID {
		return models.Session{}, apperr.ErrAlreadyConnected
	}
	if s.Authenticated() && s.UserID != userID {
		delete(r.byUser, s.UserID)
	}
	s.UserID = userID
	s.Nickname = nickname
	r.byUser[userID] = sessionID
	return *s, nil
}

// Update applies a patch and returns the updated copy.
func (r *Registry) Update(sessionID uuid.UUID, patch models.SessionPatch) (models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Session{}, false
	}
	prevUser := s.UserID
	patch.Apply(s)
	if prevUser != s.UserID {
		delete(r.byUser, prevUser)
		if s.UserID != uuid.Nil {
			r.byUser[s.UserID] = sessionID
		}
	}
	return *s, true
}

// Release returns a session to idle with no queue or match linkage. Party
// membership is untouched.
func (r *Registry) Release(sessionID uuid.UUID) {
	idle := models.StatusIdle
	var noMode models.Mode
	noMatch := uuid.Nil
	r.Update(sessionID, models.SessionPatch{Status: &idle, QueueMode: &noMode, MatchID: &noMatch})
}

// Destroy removes the session and returns its last state. Cascading into the
// queue, party and match tables is the caller's job.
func (r *Registry) Destroy(sessionID uuid.UUID) (models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Session{}, false
	}
	delete(r.sessions, sessionID)
	if s.Authenticated() && r.byUser[s.UserID] == sessionID {
		delete(r.byUser, s.UserID)
	}
	r.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"user_id":    s.UserID,
		"lifetime":   r.clock.Since(s.ConnectedAt).String(),
	}).Debug("session destroyed")
	return *s, true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CountByStatus tallies live sessions per status.
func (r *Registry) CountByStatus() map[models.SessionStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[models.SessionStatus]int)
	for _, s := range r.sessions {
		out[s.Status]++
	}
	return out
}

