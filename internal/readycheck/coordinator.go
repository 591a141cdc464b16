// Package readycheck gates a formed match behind a bounded confirmation window.
package readycheck

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// state is the per-match check. The timer only posts an expiry request; the
// owner decides whether it is stale.
type state struct {
	matchID  uuid.UUID
	deadline time.Time
	order    []uuid.UUID
	ready    map[uuid.UUID]bool
	timer    clockwork.Timer
}

// Progress is the ready count after an acknowledgement.
type Progress struct {
	Ready    int
	Total    int
	AllReady bool
}

// Outcome lists who had and had not confirmed when a check ended.
type Outcome struct {
	MatchID  uuid.UUID
	Ready    []uuid.UUID
	NotReady []uuid.UUID
}

// Coordinator tracks every pending ready check. It is not safe for concurrent
// use; expiry callbacks must be routed back to the owning loop.
type Coordinator struct {
	checks  map[uuid.UUID]*state
	byUser  map[uuid.UUID]uuid.UUID
	timeout time.Duration
	clock   clockwork.Clock
	logger  logrus.FieldLogger
}

// NewCoordinator creates a Coordinator with the given confirmation window.
func NewCoordinator(timeout time.Duration, clock clockwork.Clock, logger logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		checks:  make(map[uuid.UUID]*state),
		byUser:  make(map[uuid.UUID]uuid.UUID),
		timeout: timeout,
		clock:   clock,
		logger:  logger,
	}
}

// Start arms a check for the roster and returns its deadline. onExpire runs on
// the timer goroutine once the window closes.
func (c *Coordinator) Start(matchID uuid.UUID, userIDs []uuid.UUID, onExpire func(matchID uuid.UUID)) time.Time {
	if old, exists := c.checks[matchID]; exists {
		c.logger.WithField("match_id", matchID).Warn("ready check restarted")
		c.drop(old)
	}
	st := &state{
		matchID:  matchID,
		deadline: c.clock.Now().Add(c.timeout),
		order:    append([]uuid.UUID(nil), userIDs...),
		ready:    make(map[uuid.UUID]bool, len(userIDs)),
	}
	for _, uid := range userIDs {
		st.ready[uid] = false
		c.byUser[uid] = matchID
	}
	st.timer = c.clock.AfterFunc(c.timeout, func() {
		onExpire(matchID)
	})
	c.checks[matchID] = st

	c.logger.WithFields(logrus.Fields{
		"match_id": matchID,
		"players":  len(userIDs),
		"deadline": st.deadline,
	}).Info("ready check started")
	return st.deadline
}

// MarkReady records an acknowledgement. Once every player is ready the check
// is closed and its timer stopped.
func (c *Coordinator) MarkReady(matchID, userID uuid.UUID) (Progress, error) {
	st, ok := c.checks[matchID]
	if !ok {
		return Progress{}, apperr.ErrMatchNotFound.Withf("no ready check for match %s", matchID)
	}
	if _, member := st.ready[userID]; !member {
		return Progress{}, apperr.ErrNotInMatch
	}
	if !c.clock.Now().Before(st.deadline) {
		// Expiry is already queued behind this call.
		return Progress{}, apperr.ErrReadyCheckTimeout
	}
	st.ready[userID] = true

	p := Progress{Total: len(st.order)}
	for _, r := range st.ready {
		if r {
			p.Ready++
		}
	}
	p.AllReady = p.Ready == p.Total
	if p.AllReady {
		c.drop(st)
		c.logger.WithField("match_id", matchID).Info("ready check confirmed")
	}
	return p, nil
}

// Decline ends the check because a participant refused.
func (c *Coordinator) Decline(matchID, userID uuid.UUID) (Outcome, error) {
	st, ok := c.checks[matchID]
	if !ok {
		return Outcome{}, apperr.ErrMatchNotFound.Withf("no ready check for match %s", matchID)
	}
	if _, member := st.ready[userID]; !member {
		return Outcome{}, apperr.ErrNotInMatch
	}
	st.ready[userID] = false
	return c.finish(st), nil
}

// Expire closes the check if its deadline has passed. A false return means
// the timer was stale: the check already finished or was restarted.
func (c *Coordinator) Expire(matchID uuid.UUID) (Outcome, bool) {
	st, ok := c.checks[matchID]
	if !ok || c.clock.Now().Before(st.deadline) {
		c.logger.WithField("match_id", matchID).Debug("stale ready check timer ignored")
		return Outcome{}, false
	}
	return c.finish(st), true
}

// Cancel closes the check unconditionally, e.g. when a participant disconnects.
func (c *Coordinator) Cancel(matchID uuid.UUID) (Outcome, bool) {
	st, ok := c.checks[matchID]
	if !ok {
		return Outcome{}, false
	}
	return c.finish(st), true
}

// MatchOf returns the pending match a user is confirming, if any.
func (c *Coordinator) MatchOf(userID uuid.UUID) (uuid.UUID, bool) {
	id, ok := c.byUser[userID]
	return id, ok
}

// Pending is the number of open checks.
func (c *Coordinator) Pending() int {
	return len(c.checks)
}

func (c *Coordinator) finish(st *state) Outcome {
	out := Outcome{MatchID: st.matchID}
	for _, uid := range st.order {
		if st.ready[uid] {
			out.Ready = append(out.Ready, uid)
		} else {
			out.NotReady = append(out.NotReady, uid)
		}
	}
	c.drop(st)
	return out
}

func (c *Coordinator) drop(st *state) {
	if st.timer != nil {
		st.timer.Stop()
	}
	for _, uid := range st.order {
		if c.byUser[uid] == st.matchID {
			delete(c.byUser, uid)
		}
	}
	delete(c.checks, st.matchID)
}
