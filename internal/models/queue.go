// internal/models/queue.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// QueueEntry is one waiting player.
type QueueEntry struct {
	UserID     uuid.UUID `json:"userId"`
	Nickname   string    `json:"nickname"`
	Rating     int       `json:"rating"`
	SessionID  uuid.UUID `json:"sessionId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Mode       Mode      `json:"mode"`
	PartyID    uuid.UUID `json:"partyId"` // uuid.Nil for solo entries
}

// Block is the atomic unit placed in a queue pool: a solo player or a whole party.
// Entries of a block always move together.
type Block struct {
	ID         uuid.UUID    `json:"id"`
	Mode       Mode         `json:"mode"`
	PartyID    uuid.UUID    `json:"partyId"`
	Entries    []QueueEntry `json:"entries"`
	EnqueuedAt time.Time    `json:"enqueuedAt"`
}

// IsParty reports whether the block was queued by a party leader.
func (b *Block) IsParty() bool {
	return b.PartyID != uuid.Nil
}

// Size is the number of players in the block.
func (b *Block) Size() int {
	return len(b.Entries)
}

// Rating is the block's effective rating: the rounded average of its members.
func (b *Block) Rating() int {
	if len(b.Entries) == 0 {
		return 0
	}
	sum := 0
	for _, e := range b.Entries {
		sum += e.Rating
	}
	n := len(b.Entries)
	// round half away from zero for positive ratings
	return (2*sum + n) / (2 * n)
}

// HasUser reports whether the user is in the block.
func (b *Block) HasUser(userID uuid.UUID) bool {
	for _, e := range b.Entries {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// SessionIDs returns the session ids of every entry.
func (b *Block) SessionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.Entries))
	for _, e := range b.Entries {
		ids = append(ids, e.SessionID)
	}
	return ids
}

