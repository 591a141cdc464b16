// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/arena/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultEventQueue is the list the historian drains lifecycle events from.
	DefaultEventQueue = "arena:match_events"
	// DefaultPeerSetupQueue is the list the signaling service reads confirmed matches from.
	DefaultPeerSetupQueue = "arena:peer_setup"
)

// Connect builds a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publisher pushes JSON records onto redis lists for downstream consumers.
// It serves as both the peer setup handoff and the lifecycle event log.
type Publisher struct {
	rdb            *redis.Client
	eventQueue     string
	peerSetupQueue string
}

func NewPublisher(rdb *redis.Client, eventQueue, peerSetupQueue string) *Publisher {
	if eventQueue == "" {
		eventQueue = DefaultEventQueue
	}
	if peerSetupQueue == "" {
		peerSetupQueue = DefaultPeerSetupQueue
	}
	return &Publisher{rdb: rdb, eventQueue: eventQueue, peerSetupQueue: peerSetupQueue}
}

// PublishLifecycle appends a match lifecycle record to the event queue.
func (p *Publisher) PublishLifecycle(ctx context.Context, ev models.LifecycleEvent) error {
	return p.push(ctx, p.eventQueue, ev)
}

// BeginPeerSetup hands a confirmed match to the signaling service.
func (p *Publisher) BeginPeerSetup(ctx context.Context, setup models.PeerSetup) error {
	return p.push(ctx, p.peerSetupQueue, setup)
}

func (p *Publisher) push(ctx context.Context, queue string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	if err := p.rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queue, err)
	}
	return nil
}
