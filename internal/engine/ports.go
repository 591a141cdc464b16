// internal/engine/ports.go
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/models"
)

// Transport pushes named events to sessions. Rooms are keyed by party or match id.
type Transport interface {
	Notify(sessionID uuid.UUID, event string, payload any)
	Broadcast(room uuid.UUID, event string, payload any)
	Join(room, sessionID uuid.UUID)
	Leave(room, sessionID uuid.UUID)
}

// Store is the persistence contract the engine reads and writes through.
type Store interface {
	// GetRating returns the user's record for the mode; a missing record yields
	// the default rating with zero counters.
	GetRating(ctx context.Context, userID uuid.UUID, mode models.Mode) (models.RatingRecord, error)
	// CreateMatch writes the match row and its participant rows.
	CreateMatch(ctx context.Context, m *models.Match) error
	// RecordResult writes the final score, participant results and rating
	// records as one unit.
	RecordResult(ctx context.Context, res models.MatchResult) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Signaler hands a confirmed match to peer connection setup.
type Signaler interface {
	BeginPeerSetup(ctx context.Context, setup models.PeerSetup) error
}

// EventLog records match lifecycle events for the historian.
type EventLog interface {
	PublishLifecycle(ctx context.Context, ev models.LifecycleEvent) error
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	VerifyToken(token string) (uuid.UUID, error)
}
