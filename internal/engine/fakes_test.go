// internal/engine/fakes_test.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
)

type sent struct {
	event   string
	payload any
}

// recordingTransport delivers events into per-session inboxes instead of WS.
type recordingTransport struct {
	mu    sync.Mutex
	inbox map[uuid.UUID][]sent
	rooms map[uuid.UUID]map[uuid.UUID]bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		inbox: make(map[uuid.UUID][]sent),
		rooms: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (r *recordingTransport) Notify(sid uuid.UUID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbox[sid] = append(r.inbox[sid], sent{event, payload})
}

func (r *recordingTransport) Broadcast(room uuid.UUID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid := range r.rooms[room] {
		r.inbox[sid] = append(r.inbox[sid], sent{event, payload})
	}
}

func (r *recordingTransport) Join(room, sid uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[uuid.UUID]bool)
	}
	r.rooms[room][sid] = true
}

func (r *recordingTransport) Leave(room, sid uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms[room], sid)
}

// last returns the newest payload of the given event delivered to sid.
func (r *recordingTransport) last(sid uuid.UUID, event string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.inbox[sid]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].event == event {
			return msgs[i].payload, true
		}
	}
	return nil, false
}

func (r *recordingTransport) count(sid uuid.UUID, event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.inbox[sid] {
		if m.event == event {
			n++
		}
	}
	return n
}

// memStore is an in-memory Store with switchable failures.
type memStore struct {
	mu          sync.Mutex
	ratings     map[uuid.UUID]map[models.Mode]models.RatingRecord
	matches     map[uuid.UUID]models.Match
	results     []models.MatchResult
	failCreate  int
	failRecord  int
	closed      map[uuid.UUID]bool
	defaultRate int
}

func newMemStore() *memStore {
	return &memStore{
		ratings:     make(map[uuid.UUID]map[models.Mode]models.RatingRecord),
		matches:     make(map[uuid.UUID]models.Match),
		closed:      make(map[uuid.UUID]bool),
		defaultRate: 1200,
	}
}

func (s *memStore) setRating(userID uuid.UUID, rating int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[userID] = make(map[models.Mode]models.RatingRecord)
	for _, mode := range models.SupportedModes {
		s.ratings[userID][mode] = models.RatingRecord{UserID: userID, Mode: mode, Rating: rating}
	}
}

func (s *memStore) rating(userID uuid.UUID, mode models.Mode) models.RatingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratings[userID][mode]
}

func (s *memStore) GetRating(_ context.Context, userID uuid.UUID, mode models.Mode) (models.RatingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.ratings[userID][mode]; ok {
		return rec, nil
	}
	return models.RatingRecord{UserID: userID, Mode: mode, Rating: s.defaultRate}, nil
}

func (s *memStore) CreateMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate > 0 {
		s.failCreate--
		return errors.New("insert match: connection reset")
	}
	s.matches[m.ID] = *m
	return nil
}

func (s *memStore) RecordResult(_ context.Context, res models.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecord > 0 {
		s.failRecord--
		return errors.New("update ratings: deadlock detected")
	}
	if s.closed[res.MatchID] {
		return fmt.Errorf("failed to record result for match %s: %w", res.MatchID,
			apperr.ErrMatchNotActive.Withf("match row is missing or no longer active"))
	}
	s.results = append(s.results, res)
	for _, p := range res.Participants {
		if s.ratings[p.UserID] == nil {
			s.ratings[p.UserID] = make(map[models.Mode]models.RatingRecord)
		}
		rec := s.ratings[p.UserID][res.Mode]
		rec.UserID, rec.Mode, rec.Rating = p.UserID, res.Mode, p.RatingAfter
		switch p.Outcome {
		case models.OutcomeWin:
			rec.Wins++
		case models.OutcomeLoss:
			rec.Losses++
		}
		ended := res.EndedAt
		rec.LastPlayed = &ended
		s.ratings[p.UserID][res.Mode] = rec
	}
	return nil
}

func (s *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id, Username: "player-" + id.String()[:4]}, nil
}

// closeRow marks the stored match as closed, as the stale sweep would.
func (s *memStore) closeRow(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed[id] = true
}

func (s *memStore) resultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func (s *memStore) persisted(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.matches[id]
	return ok
}

type memEvents struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
	setups []models.PeerSetup
}

func (m *memEvents) PublishLifecycle(_ context.Context, ev models.LifecycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memEvents) BeginPeerSetup(_ context.Context, setup models.PeerSetup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setups = append(m.setups, setup)
	return nil
}

func (m *memEvents) ofType(kind string) []models.LifecycleEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LifecycleEvent
	for _, ev := range m.events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

// uuidVerifier accepts a user id string as its own token.
type uuidVerifier struct{}

func (uuidVerifier) VerifyToken(token string) (uuid.UUID, error) {
	return uuid.Parse(token)
}
