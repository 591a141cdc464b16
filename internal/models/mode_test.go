package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"1v1", "2v2", "3v3"} {
		m, err := ParseMode(s)
		require.NoError(t, err, s)
		assert.Equal(t, Mode(s), m)
	}
	for _, s := range []string{"", "4v4", "1v2", "2v3", "v", "1v1 ", "0v0", "one"} {
		_, err := ParseMode(s)
		assert.Error(t, err, s)
	}
}

func TestModeSizes(t *testing.T) {
	assert.Equal(t, 1, Mode1v1.TeamSize())
	assert.Equal(t, 3, Mode3v3.TeamSize())
	assert.Equal(t, 4, Mode2v2.PlayerCount())
	assert.Equal(t, 0, Mode("").TeamSize())
}

func TestBlockRating(t *testing.T) {
	b := &Block{Entries: []QueueEntry{{Rating: 1200}, {Rating: 1211}}}
	assert.Equal(t, 1206, b.Rating())
	assert.Equal(t, 0, (&Block{}).Rating())
}

func TestPartyRemoveMember(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	p := &Party{Members: []PartyMember{{SessionID: a}, {SessionID: b}, {SessionID: c}}}
	assert.True(t, p.RemoveMember(b))
	assert.False(t, p.RemoveMember(b))
	assert.Equal(t, []uuid.UUID{a, c}, p.SessionIDs())

	snap := p.Snapshot()
	snap.Members[0].Nickname = "changed"
	assert.Empty(t, p.Members[0].Nickname)
}

func TestRosterTeamOf(t *testing.T) {
	red, blue := uuid.New(), uuid.New()
	r := Roster{
		Red:  []RosterPlayer{{UserID: red, RatingBefore: 1200}},
		Blue: []RosterPlayer{{UserID: blue, RatingBefore: 1300}},
	}
	team, ok := r.TeamOf(blue)
	require.True(t, ok)
	assert.Equal(t, TeamBlue, team)
	_, ok = r.TeamOf(uuid.New())
	assert.False(t, ok)
	assert.InDelta(t, 1300.0, r.AverageRating(TeamBlue), 0.001)
}
