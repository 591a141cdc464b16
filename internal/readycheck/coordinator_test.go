package readycheck

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCoordinator(t *testing.T) (*Coordinator, *clockwork.FakeClock) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	clock := clockwork.NewFakeClock()
	return NewCoordinator(30*time.Second, clock, logger), clock
}

func TestAllReadyConfirms(t *testing.T) {
	c, clock := setupCoordinator(t)
	match := uuid.New()
	a, b := uuid.New(), uuid.New()
	var fired atomic.Int32

	deadline := c.Start(match, []uuid.UUID{a, b}, func(uuid.UUID) { fired.Add(1) })
	assert.Equal(t, clock.Now().Add(30*time.Second), deadline)

	p, err := c.MarkReady(match, a)
	require.NoError(t, err)
	assert.Equal(t, Progress{Ready: 1, Total: 2}, p)

	p, err = c.MarkReady(match, a)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Ready, "acknowledging twice is idempotent")

	p, err = c.MarkReady(match, b)
	require.NoError(t, err)
	assert.True(t, p.AllReady)
	assert.Equal(t, 0, c.Pending())
	_, pending := c.MatchOf(a)
	assert.False(t, pending)

	clock.Advance(time.Minute)
	assert.Zero(t, fired.Load(), "timer stopped on confirmation")
}

func TestTimeoutFiresAndExpires(t *testing.T) {
	c, clock := setupCoordinator(t)
	match := uuid.New()
	a, b := uuid.New(), uuid.New()
	expired := make(chan uuid.UUID, 1)

	c.Start(match, []uuid.UUID{a, b}, func(id uuid.UUID) { expired <- id })
	_, err := c.MarkReady(match, a)
	require.NoError(t, err)

	_, ok := c.Expire(match)
	assert.False(t, ok, "deadline not reached yet")

	clock.Advance(30 * time.Second)
	select {
	case id := <-expired:
		assert.Equal(t, match, id)
	case <-time.After(time.Second):
		t.Fatal("expiry callback did not fire")
	}

	out, ok := c.Expire(match)
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{a}, out.Ready)
	assert.Equal(t, []uuid.UUID{b}, out.NotReady)

	_, ok = c.Expire(match)
	assert.False(t, ok, "second expiry is stale")
}

func TestReadyAfterDeadlineRejected(t *testing.T) {
	c, clock := setupCoordinator(t)
	match := uuid.New()
	a := uuid.New()
	c.Start(match, []uuid.UUID{a, uuid.New()}, func(uuid.UUID) {})

	clock.Advance(31 * time.Second)
	_, err := c.MarkReady(match, a)
	assert.ErrorIs(t, err, apperr.ErrReadyCheckTimeout)
}

func TestDeclineAndCancel(t *testing.T) {
	c, _ := setupCoordinator(t)
	match := uuid.New()
	a, b, c3 := uuid.New(), uuid.New(), uuid.New()
	c.Start(match, []uuid.UUID{a, b, c3}, func(uuid.UUID) {})

	_, err := c.MarkReady(match, a)
	require.NoError(t, err)
	_, err = c.Decline(match, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotInMatch)

	out, err := c.Decline(match, b)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a}, out.Ready)
	assert.Equal(t, []uuid.UUID{b, c3}, out.NotReady)

	_, ok := c.Cancel(match)
	assert.False(t, ok)
	_, err = c.MarkReady(match, a)
	assert.ErrorIs(t, err, apperr.ErrMatchNotFound)
}
