// internal/handlers/hub.go
package handlers

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Envelope is the wire shape of every server push.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client is one websocket connection's outbound queue.
type Client struct {
	SessionID uuid.UUID
	OutChan   chan Envelope
}

// Hub routes engine events to connected clients. Rooms are keyed by party or
// match id and hold session ids.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	rooms   map[uuid.UUID]map[uuid.UUID]struct{}
	buffer  int
	logger  logrus.FieldLogger
}

func NewHub(buffer int, logger logrus.FieldLogger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		rooms:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
		buffer:  buffer,
		logger:  logger.WithField("component", "hub"),
	}
}

// Register creates the outbound queue for a new session.
func (h *Hub) Register(sessionID uuid.UUID) *Client {
	c := &Client{SessionID: sessionID, OutChan: make(chan Envelope, h.buffer)}
	h.mu.Lock()
	h.clients[sessionID] = c
	h.mu.Unlock()
	return c
}

// Unregister drops the session from every room and closes its queue.
func (h *Hub) Unregister(sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[sessionID]
	if !ok {
		return
	}
	delete(h.clients, sessionID)
	for room, members := range h.rooms {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	// senders hold the read lock, so nothing can be mid-send here
	close(c.OutChan)
}

// Notify queues an event for one session without blocking. A full queue drops
// the event.
func (h *Hub) Notify(sessionID uuid.UUID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.sendLocked(sessionID, Envelope{Type: event, Payload: payload})
}

func (h *Hub) Broadcast(room uuid.UUID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	env := Envelope{Type: event, Payload: payload}
	for sid := range h.rooms[room] {
		h.sendLocked(sid, env)
	}
}

func (h *Hub) sendLocked(sessionID uuid.UUID, env Envelope) {
	c, ok := h.clients[sessionID]
	if !ok {
		return
	}
	select {
	case c.OutChan <- env:
	default:
		h.logger.WithFields(logrus.Fields{"session_id": sessionID, "event": env.Type}).Warn("outbound queue full, dropped event")
	}
}

func (h *Hub) Join(room, sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[sessionID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		h.rooms[room] = members
	}
	members[sessionID] = struct{}{}
}

func (h *Hub) Leave(room, sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Connected returns the number of registered clients.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
