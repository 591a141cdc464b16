package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/arena/internal/models"
)

// GetRating returns the user's record for mode, or a fresh record at the
// default rating when the user has never played it.
func (s *Store) GetRating(ctx context.Context, userID uuid.UUID, mode models.Mode) (models.RatingRecord, error) {
	rec := models.RatingRecord{UserID: userID, Mode: mode}
	q := `SELECT rating, wins, losses, last_played FROM ratings WHERE user_id=$1 AND mode=$2`
	err := s.pool.QueryRow(ctx, q, userID, string(mode)).Scan(&rec.Rating, &rec.Wins, &rec.Losses, &rec.LastPlayed)
	if errors.Is(err, pgx.ErrNoRows) {
		rec.Rating = s.defaultRating
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("failed to load rating: %w", err)
	}
	return rec, nil
}

// updateRatingRecord upserts one participant's post-match rating and tallies.
func updateRatingRecord(ctx context.Context, tx pgx.Tx, mode models.Mode, p models.ParticipantResult, res models.MatchResult) error {
	var win, loss int
	switch p.Outcome {
	case models.OutcomeWin:
		win = 1
	case models.OutcomeLoss:
		loss = 1
	}
	q := `
		INSERT INTO ratings (user_id, mode, rating, wins, losses, last_played)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, mode) DO UPDATE
		SET rating = EXCLUDED.rating,
		    wins = ratings.wins + EXCLUDED.wins,
		    losses = ratings.losses + EXCLUDED.losses,
		    last_played = EXCLUDED.last_played
	`
	_, err := tx.Exec(ctx, q, p.UserID, string(mode), p.RatingAfter, win, loss, res.EndedAt)
	return err
}
