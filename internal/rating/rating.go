// internal/rating/rating.go
package rating

import (
	"math"
	"time"

	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
)

// MaxScore bounds a reported score to the INTEGER columns it is stored in.
const MaxScore = math.MaxInt32

// ValidateScore checks a reported final score against the mode's limit.
// Scores arrive as JSON numbers, so integrality and range are checked here.
func ValidateScore(red, blue float64, limit int) error {
	for _, s := range []float64{red, blue} {
		if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) || s != math.Trunc(s) {
			return apperr.ErrInvalidScore.Withf("scores must be non-negative integers, got %v-%v", red, blue)
		}
		if s > MaxScore {
			return apperr.ErrInvalidScore.Withf("score %v exceeds %d", s, MaxScore)
		}
	}
	high, low := math.Max(red, blue), math.Min(red, blue)
	if high < float64(limit) {
		return apperr.ErrMatchNotConcluded.Withf("highest score %v is below the limit of %d", high, limit)
	}
	if high == float64(limit) && low == float64(limit) {
		return apperr.ErrInvalidScore.Withf("both sides cannot finish on the limit of %d", limit)
	}
	return nil
}

// Actual is the red side's Elo score: 1 for a win, 0 for a loss, 0.5 for a draw.
func Actual(scoreRed, scoreBlue int) float64 {
	switch {
	case scoreRed > scoreBlue:
		return 1
	case scoreRed < scoreBlue:
		return 0
	default:
		return 0.5
	}
}

func outcome(actual float64) models.Outcome {
	switch actual {
	case 1:
		return models.OutcomeWin
	case 0:
		return models.OutcomeLoss
	default:
		return models.OutcomeDraw
	}
}

// Compute applies Elo to a completed match. Each team's average rating-before
// is its effective rating, and the team delta is applied identically to every
// member. In 1v1 this is plain per-player Elo. Win and loss come from the
// team-level result; a draw changes neither counter.
func Compute(m *models.Match, scoreRed, scoreBlue, k int, endedAt time.Time) models.MatchResult {
	redAvg := m.Roster.AverageRating(models.TeamRed)
	blueAvg := m.Roster.AverageRating(models.TeamBlue)
	actualRed := Actual(scoreRed, scoreBlue)

	// Blue mirrors red: the pair is exactly zero-sum.
	redDelta := Delta(k, redAvg, blueAvg, actualRed)
	deltas := map[models.Team]int{
		models.TeamRed:  redDelta,
		models.TeamBlue: -redDelta,
	}
	outcomes := map[models.Team]models.Outcome{
		models.TeamRed:  outcome(actualRed),
		models.TeamBlue: outcome(1 - actualRed),
	}

	res := models.MatchResult{
		MatchID:   m.ID,
		Mode:      m.Mode,
		ScoreRed:  scoreRed,
		ScoreBlue: scoreBlue,
		EndedAt:   endedAt,
	}
	for _, team := range []models.Team{models.TeamRed, models.TeamBlue} {
		for _, p := range m.Roster.Team(team) {
			res.Participants = append(res.Participants, models.ParticipantResult{
				UserID:       p.UserID,
				SessionID:    p.SessionID,
				Team:         team,
				RatingBefore: p.RatingBefore,
				RatingAfter:  p.RatingBefore + deltas[team],
				Delta:        deltas[team],
				Outcome:      outcomes[team],
			})
		}
	}
	return res
}
