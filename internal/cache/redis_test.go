package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T) (*Publisher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewPublisher(rdb, "", ""), mr
}

func TestPublishLifecycleAppendsInOrder(t *testing.T) {
	p, mr := newTestPublisher(t)
	ctx := context.Background()
	matchID := uuid.New()

	require.NoError(t, p.PublishLifecycle(ctx, models.LifecycleEvent{MatchID: matchID, Mode: models.Mode2v2, Type: models.LifecycleFormed}))
	require.NoError(t, p.PublishLifecycle(ctx, models.LifecycleEvent{MatchID: matchID, Mode: models.Mode2v2, Type: models.LifecycleConfirmed}))

	items, err := mr.List(DefaultEventQueue)
	require.NoError(t, err)
	require.Len(t, items, 2)

	var first models.LifecycleEvent
	require.NoError(t, json.Unmarshal([]byte(items[0]), &first))
	assert.Equal(t, matchID, first.MatchID)
	assert.Equal(t, models.LifecycleFormed, first.Type)
	assert.Contains(t, items[1], `"type":"confirmed"`)
}

func TestBeginPeerSetupUsesItsOwnQueue(t *testing.T) {
	p, mr := newTestPublisher(t)
	host := uuid.New()

	require.NoError(t, p.BeginPeerSetup(context.Background(), models.PeerSetup{MatchID: uuid.New(), Mode: models.Mode1v1, HostUserID: host}))

	items, err := mr.List(DefaultPeerSetupQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)
	var got models.PeerSetup
	require.NoError(t, json.Unmarshal([]byte(items[0]), &got))
	assert.Equal(t, host, got.HostUserID)
	assert.False(t, mr.Exists(DefaultEventQueue))
}

func TestPublishFailsWhenRedisIsDown(t *testing.T) {
	p, mr := newTestPublisher(t)
	mr.Close()
	err := p.PublishLifecycle(context.Background(), models.LifecycleEvent{MatchID: uuid.New()})
	assert.Error(t, err)
}
