// internal/party/coordinator_test.go
package party

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jason-s-yu/arena/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roomEvent struct {
	room    uuid.UUID
	event   string
	payload any
}

// mockRooms records room membership and broadcasts instead of sending them over WS.
type mockRooms struct {
	mu      sync.Mutex
	members map[uuid.UUID]map[uuid.UUID]bool
	events  []roomEvent
}

func newMockRooms() *mockRooms {
	return &mockRooms{members: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (m *mockRooms) Join(room, sid uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[room] == nil {
		m.members[room] = make(map[uuid.UUID]bool)
	}
	m.members[room][sid] = true
}

func (m *mockRooms) Leave(room, sid uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members[room], sid)
}

func (m *mockRooms) Broadcast(room uuid.UUID, event string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, roomEvent{room, event, payload})
}

func (m *mockRooms) last() roomEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}

func setupCoordinator(t *testing.T, maxSize int) (*Coordinator, *session.Registry, *mockRooms) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	reg := session.NewRegistry(clockwork.NewFakeClock(), logger)
	rooms := newMockRooms()
	return NewCoordinator(reg, rooms, maxSize, logger), reg, rooms
}

func addUser(t *testing.T, reg *session.Registry, nick string) uuid.UUID {
	t.Helper()
	sid := uuid.New()
	reg.Create(sid)
	_, err := reg.Bind(sid, uuid.New(), nick)
	require.NoError(t, err)
	return sid
}

func TestCreateAndJoin(t *testing.T) {
	c, reg, rooms := setupCoordinator(t, 3)
	leader := addUser(t, reg, "lead")
	member := addUser(t, reg, "mem")

	p, err := c.Create(leader)
	require.NoError(t, err)
	assert.Equal(t, leader, p.LeaderSessionID)
	assert.Len(t, p.Members, 1)

	_, err = c.Create(leader)
	assert.ErrorIs(t, err, apperr.ErrAlreadyInParty)

	p, err = c.Join(member, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{leader, member}, p.SessionIDs())

	s, _ := reg.Get(member)
	assert.Equal(t, p.ID, s.PartyID)
	assert.False(t, s.IsPartyLeader)
	assert.True(t, rooms.members[p.ID][member])

	ev := rooms.last()
	assert.Equal(t, models.EventPartyUpdated, ev.event)
	payload := ev.payload.(models.PartyUpdatedPayload)
	assert.Len(t, payload.Party.Members, 2)
}

func TestJoinFailures(t *testing.T) {
	c, reg, _ := setupCoordinator(t, 2)
	leader := addUser(t, reg, "lead")
	p, err := c.Create(leader)
	require.NoError(t, err)

	_, err = c.Join(addUser(t, reg, "x"), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrPartyNotFound)

	_, err = c.Join(addUser(t, reg, "b"), p.ID)
	require.NoError(t, err)
	_, err = c.Join(addUser(t, reg, "c"), p.ID)
	assert.ErrorIs(t, err, apperr.ErrPartyFull)

	unauth := uuid.New()
	reg.Create(unauth)
	_, err = c.Join(unauth, p.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)
}

func TestJoinQueuedPartyRejected(t *testing.T) {
	c, reg, _ := setupCoordinator(t, 3)
	leader := addUser(t, reg, "lead")
	p, _ := c.Create(leader)
	mode := models.Mode2v2
	c.SetQueued(p.ID, &mode)

	_, err := c.Join(addUser(t, reg, "late"), p.ID)
	assert.ErrorIs(t, err, apperr.ErrPartyQueued)
}

func TestLeaderLeaveDissolves(t *testing.T) {
	c, reg, rooms := setupCoordinator(t, 3)
	leader := addUser(t, reg, "lead")
	member := addUser(t, reg, "mem")
	p, _ := c.Create(leader)
	_, err := c.Join(member, p.ID)
	require.NoError(t, err)

	res, err := c.Leave(leader)
	require.NoError(t, err)
	assert.True(t, res.Dissolved)
	assert.ElementsMatch(t, []uuid.UUID{leader, member}, res.Members)
	assert.Equal(t, 0, c.Count())

	s, _ := reg.Get(member)
	assert.False(t, s.InParty())
	assert.Empty(t, rooms.members[p.ID])

	payload := rooms.last().payload.(models.PartyUpdatedPayload)
	assert.True(t, payload.Dissolved)

	_, err = c.Leave(member)
	assert.ErrorIs(t, err, apperr.ErrNotInParty)
}

func TestMemberLeaveKeepsParty(t *testing.T) {
	c, reg, _ := setupCoordinator(t, 3)
	leader := addUser(t, reg, "lead")
	member := addUser(t, reg, "mem")
	p, _ := c.Create(leader)
	_, _ = c.Join(member, p.ID)

	res, err := c.Leave(member)
	require.NoError(t, err)
	assert.False(t, res.Dissolved)
	got, ok := c.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{leader}, got.SessionIDs())
}

func TestCheckQueue(t *testing.T) {
	c, reg, _ := setupCoordinator(t, 3)
	leader := addUser(t, reg, "lead")
	member := addUser(t, reg, "mem")
	p, _ := c.Create(leader)
	_, _ = c.Join(member, p.ID)

	_, _, err := c.CheckQueue(member, "2v2")
	assert.ErrorIs(t, err, apperr.ErrNotLeader)

	_, _, err = c.CheckQueue(leader, "4v4")
	assert.ErrorIs(t, err, apperr.ErrInvalidMode)

	_, _, err = c.CheckQueue(leader, "1v1")
	assert.ErrorIs(t, err, apperr.ErrPartyTooLarge)

	snap, mode, err := c.CheckQueue(leader, "2v2")
	require.NoError(t, err)
	assert.Equal(t, models.Mode2v2, mode)
	assert.Nil(t, snap.QueuedMode, "check must not mutate")

	c.SetQueued(p.ID, &mode)
	_, _, err = c.CheckQueue(leader, "3v3")
	assert.ErrorIs(t, err, apperr.ErrPartyQueued)

	_, err = c.CheckLeaveQueue(member)
	assert.ErrorIs(t, err, apperr.ErrNotLeader)
	_, err = c.CheckLeaveQueue(leader)
	assert.NoError(t, err)

	_, _, err = c.CheckQueue(addUser(t, reg, "solo"), "2v2")
	assert.ErrorIs(t, err, apperr.ErrNotInParty)
}
