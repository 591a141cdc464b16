// internal/models/match.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus drives every downstream behavior of a match.
type MatchStatus string

const (
	MatchPendingReady MatchStatus = "pending-ready"
	MatchActive       MatchStatus = "active"
	MatchCompleted    MatchStatus = "completed"
	MatchAborted      MatchStatus = "aborted"
	MatchAbandoned    MatchStatus = "abandoned" // closed by the stale sweep, never reported
)

// Team identifies one side of a match.
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

// RosterPlayer is a participant with the rating snapshotted at formation.
type RosterPlayer struct {
	UserID       uuid.UUID `json:"userId"`
	SessionID    uuid.UUID `json:"sessionId"`
	Nickname     string    `json:"nickname"`
	RatingBefore int       `json:"ratingBefore"`
	PartyID      uuid.UUID `json:"partyId"`
}

// Roster holds both teams.
type Roster struct {
	Red  []RosterPlayer `json:"red"`
	Blue []RosterPlayer `json:"blue"`
}

// Players returns every participant, red team first.
func (r Roster) Players() []RosterPlayer {
	out := make([]RosterPlayer, 0, len(r.Red)+len(r.Blue))
	out = append(out, r.Red...)
	return append(out, r.Blue...)
}

// Team returns the players on the given side.
func (r Roster) Team(t Team) []RosterPlayer {
	if t == TeamRed {
		return r.Red
	}
	return r.Blue
}

// TeamOf finds which side a user is on.
func (r Roster) TeamOf(userID uuid.UUID) (Team, bool) {
	for _, p := range r.Red {
		if p.UserID == userID {
			return TeamRed, true
		}
	}
	for _, p := range r.Blue {
		if p.UserID == userID {
			return TeamBlue, true
		}
	}
	return "", false
}

// AverageRating returns the team's mean rating-before.
func (r Roster) AverageRating(t Team) float64 {
	players := r.Team(t)
	if len(players) == 0 {
		return 0
	}
	sum := 0
	for _, p := range players {
		sum += p.RatingBefore
	}
	return float64(sum) / float64(len(players))
}

// MatchSettings are fixed at formation.
type MatchSettings struct {
	ScoreLimit int `json:"scoreLimit"`
}

// Match is a formed game moving through pending-ready, active and completed/aborted.
type Match struct {
	ID         uuid.UUID     `json:"id"`
	Mode       Mode          `json:"mode"`
	Status     MatchStatus   `json:"status"`
	Roster     Roster        `json:"roster"`
	HostUserID uuid.UUID     `json:"hostUserId"`
	Settings   MatchSettings `json:"settings"`
	CreatedAt  time.Time     `json:"createdAt"`
	StartedAt  *time.Time    `json:"startedAt,omitempty"`
	EndedAt    *time.Time    `json:"endedAt,omitempty"`
	ScoreRed   *int          `json:"scoreRed,omitempty"`
	ScoreBlue  *int          `json:"scoreBlue,omitempty"`

	// Blocks are the queue blocks consumed at formation, kept so confirmed
	// blocks can be requeued with their original place if the ready check fails.
	Blocks []*Block `json:"-"`
}

// HasUser reports whether the user is on either team.
func (m *Match) HasUser(userID uuid.UUID) bool {
	_, ok := m.Roster.TeamOf(userID)
	return ok
}

