package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
)

// ErrMatchNotActive is returned when a result is recorded for a match row that
// is missing or already finished. It carries the MatchNotActive code.
var ErrMatchNotActive = apperr.ErrMatchNotActive.Withf("match row is missing or no longer active")

// CreateMatch persists a confirmed match and its roster in one transaction.
func (s *Store) CreateMatch(ctx context.Context, m *models.Match) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := createMatchRow(ctx, tx, m); err != nil {
			return err
		}
		return createParticipantRows(ctx, tx, m)
	})
	if err != nil {
		return fmt.Errorf("failed to create match %s: %w", m.ID, err)
	}
	return nil
}

func createMatchRow(ctx context.Context, tx pgx.Tx, m *models.Match) error {
	q := `
		INSERT INTO matches (id, mode, status, host_user_id, score_limit, created_at, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, q, m.ID, string(m.Mode), string(m.Status), m.HostUserID,
		m.Settings.ScoreLimit, m.CreatedAt, m.StartedAt)
	return err
}

func createParticipantRows(ctx context.Context, tx pgx.Tx, m *models.Match) error {
	q := `
		INSERT INTO match_participants (match_id, user_id, team, party_id, rating_before)
		VALUES ($1, $2, $3, $4, $5)
	`
	batch := &pgx.Batch{}
	for _, team := range []models.Team{models.TeamRed, models.TeamBlue} {
		for _, p := range m.Roster.Team(team) {
			var partyID *uuid.UUID
			if p.PartyID != uuid.Nil {
				id := p.PartyID
				partyID = &id
			}
			batch.Queue(q, m.ID, p.UserID, string(team), partyID, p.RatingBefore)
		}
	}
	return tx.SendBatch(ctx, batch).Close()
}

// RecordResult applies a completed match atomically: the match row, every
// participant row and every rating record commit together or not at all.
func (s *Store) RecordResult(ctx context.Context, res models.MatchResult) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := updateMatchResult(ctx, tx, res); err != nil {
			return err
		}
		for _, p := range res.Participants {
			if err := updateParticipantResult(ctx, tx, res.MatchID, p); err != nil {
				return fmt.Errorf("participant %s: %w", p.UserID, err)
			}
			if err := updateRatingRecord(ctx, tx, res.Mode, p, res); err != nil {
				return fmt.Errorf("rating %s: %w", p.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record result for match %s: %w", res.MatchID, err)
	}
	s.logger.WithField("match_id", res.MatchID).Debug("match result committed")
	return nil
}

func updateMatchResult(ctx context.Context, tx pgx.Tx, res models.MatchResult) error {
	q := `
		UPDATE matches
		SET status = $2, score_red = $3, score_blue = $4, ended_at = $5
		WHERE id = $1 AND status = $6
	`
	tag, err := tx.Exec(ctx, q, res.MatchID, string(models.MatchCompleted), res.ScoreRed, res.ScoreBlue,
		res.EndedAt, string(models.MatchActive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrMatchNotActive
	}
	return nil
}

func updateParticipantResult(ctx context.Context, tx pgx.Tx, matchID uuid.UUID, p models.ParticipantResult) error {
	q := `
		UPDATE match_participants
		SET rating_after = $3, rating_delta = $4, outcome = $5
		WHERE match_id = $1 AND user_id = $2
	`
	_, err := tx.Exec(ctx, q, matchID, p.UserID, p.RatingAfter, p.Delta, string(p.Outcome))
	return err
}

// MatchStatus reads the persisted status of a match.
func (s *Store) MatchStatus(ctx context.Context, id uuid.UUID) (models.MatchStatus, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM matches WHERE id=$1`, id).Scan(&status)
	if err != nil {
		return "", err
	}
	return models.MatchStatus(status), nil
}

// AbandonStaleMatches marks matches that have stayed active longer than the
// cutoff as abandoned. It returns the number of rows changed.
func (s *Store) AbandonStaleMatches(ctx context.Context, startedBefore time.Time) (int64, error) {
	q := `
		UPDATE matches
		SET status = $3, ended_at = NOW()
		WHERE status = $1 AND started_at < $2
	`
	tag, err := s.pool.Exec(ctx, q, string(models.MatchActive), startedBefore, string(models.MatchAbandoned))
	if err != nil {
		return 0, fmt.Errorf("failed to abandon stale matches: %w", err)
	}
	return tag.RowsAffected(), nil
}
