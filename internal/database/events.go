package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/arena/internal/models"
)

// InsertMatchEvents appends lifecycle records in a single transaction.
func (s *Store) InsertMatchEvents(ctx context.Context, events []models.LifecycleEvent) error {
	if len(events) == 0 {
		return nil
	}
	q := `
		INSERT INTO match_events (match_id, mode, event_type, reason, user_ids, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ev := range events {
			userIDs := ev.UserIDs
			if userIDs == nil {
				userIDs = []uuid.UUID{}
			}
			batch.Queue(q, ev.MatchID, string(ev.Mode), ev.Type, ev.Reason, userIDs, ev.Payload, time.UnixMilli(ev.Timestamp).UTC())
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to insert %d match events: %w", len(events), err)
	}
	return nil
}
