// internal/models/rating.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RatingRecord is the persisted per-mode skill estimate of a user.
type RatingRecord struct {
	UserID     uuid.UUID  `json:"userId"`
	Mode       Mode       `json:"mode"`
	Rating     int        `json:"rating"`
	Wins       int        `json:"wins"`
	Losses     int        `json:"losses"`
	LastPlayed *time.Time `json:"lastPlayed,omitempty"`
}

// Outcome is the result of a match for one side.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// ParticipantResult is one player's rating change for a completed match.
type ParticipantResult struct {
	UserID       uuid.UUID `json:"userId"`
	SessionID    uuid.UUID `json:"sessionId"`
	Team         Team      `json:"team"`
	RatingBefore int       `json:"ratingBefore"`
	RatingAfter  int       `json:"ratingAfter"`
	Delta        int       `json:"delta"`
	Outcome      Outcome   `json:"outcome"`
}

// MatchResult is everything written to the store when a result report is accepted.
type MatchResult struct {
	MatchID      uuid.UUID           `json:"matchId"`
	Mode         Mode                `json:"mode"`
	ScoreRed     int                 `json:"scoreRed"`
	ScoreBlue    int                 `json:"scoreBlue"`
	EndedAt      time.Time           `json:"endedAt"`
	Participants []ParticipantResult `json:"participants"`
}
