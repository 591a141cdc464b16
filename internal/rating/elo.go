// internal/rating/elo.go
package rating

import "math"

const (
	// DefaultRating is assigned to players with no record for a mode.
	DefaultRating = 1200
	// DefaultK is the Elo K-factor.
	DefaultK = 32
	// eloScale is the rating gap at which the favourite is expected to score 10:1.
	eloScale = 400.0
)

// Expected is the Elo expected score of a player against an opponent.
func Expected(rating, opponent float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opponent-rating)/eloScale))
}

// Delta is the rounded rating change for one side. math.Round rounds halves
// away from zero, so opposing deltas are exact negations.
func Delta(k int, rating, opponent, actual float64) int {
	return int(math.Round(float64(k) * (actual - Expected(rating, opponent))))
}
