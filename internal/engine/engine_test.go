// internal/engine/engine_test.go
package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t      *testing.T
	e      *Engine
	clock  *clockwork.FakeClock
	tr     *recordingTransport
	store  *memStore
	events *memEvents
	ctx    context.Context
}

type player struct {
	sid uuid.UUID
	uid uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	clock := clockwork.NewFakeClock()
	tr := newRecordingTransport()
	store := newMemStore()
	events := &memEvents{}

	cfg := DefaultConfig()
	// keep the scheduled tick out of the way; tests tick explicitly
	cfg.TickInterval = time.Hour
	e := New(cfg, Deps{
		Transport: tr,
		Store:     store,
		Signaler:  events,
		Events:    events,
		Verifier:  uuidVerifier{},
		Clock:     clock,
		Logger:    logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{t: t, e: e, clock: clock, tr: tr, store: store, events: events, ctx: ctx}
}

func (h *harness) submit(cmd Command) error {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	defer cancel()
	return h.e.Submit(ctx, cmd)
}

func (h *harness) connect(rating int) player {
	h.t.Helper()
	p := player{sid: uuid.New(), uid: uuid.New()}
	h.store.setRating(p.uid, rating)
	require.NoError(h.t, h.submit(Connect{From{p.sid}}))
	require.NoError(h.t, h.submit(Authenticate{From: From{p.sid}, Token: p.uid.String()}))
	return p
}

func (h *harness) stats() Snapshot {
	h.t.Helper()
	snap, err := h.e.Stats(h.ctx)
	require.NoError(h.t, err)
	return snap
}

func (h *harness) matchFound(p player) models.MatchFoundPayload {
	h.t.Helper()
	raw, ok := h.tr.last(p.sid, models.EventMatchFound)
	require.True(h.t, ok, "no match-found for %s", p.uid)
	return raw.(models.MatchFoundPayload)
}

func (h *harness) concluded(p player) models.MatchConcludedPayload {
	h.t.Helper()
	raw, ok := h.tr.last(p.sid, models.EventMatchConcluded)
	require.True(h.t, ok, "no match-concluded for %s", p.uid)
	return raw.(models.MatchConcludedPayload)
}

func (h *harness) session(p player) models.Session {
	h.t.Helper()
	s, ok := h.e.sessions.Get(p.sid)
	require.True(h.t, ok)
	return s
}

// activeDuel queues two players for 1v1 and confirms the match.
func (h *harness) activeDuel(red, blue player) uuid.UUID {
	h.t.Helper()
	require.NoError(h.t, h.submit(JoinQueue{From: From{red.sid}, Mode: "1v1"}))
	require.NoError(h.t, h.submit(JoinQueue{From: From{blue.sid}, Mode: "1v1"}))
	found := h.matchFound(red)
	require.NoError(h.t, h.submit(PlayerReady{From: From{red.sid}, MatchID: found.MatchID}))
	require.NoError(h.t, h.submit(PlayerReady{From: From{blue.sid}, MatchID: found.MatchID}))
	_, ok := h.tr.last(red.sid, models.EventMatchActive)
	require.True(h.t, ok)
	return found.MatchID
}

func TestActionsRequireAuthentication(t *testing.T) {
	h := newHarness(t)
	sid := uuid.New()
	require.NoError(t, h.submit(Connect{From{sid}}))

	err := h.submit(JoinQueue{From: From{sid}, Mode: "1v1"})
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	raw, ok := h.tr.last(sid, models.EventQueueError)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeAuthRequired, raw.(models.ErrorPayload).Code)

	err = h.submit(Authenticate{From: From{sid}, Token: "not-a-token"})
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
}

func TestSecondSessionForUserRejected(t *testing.T) {
	h := newHarness(t)
	p := h.connect(1200)

	other := uuid.New()
	require.NoError(t, h.submit(Connect{From{other}}))
	err := h.submit(Authenticate{From: From{other}, Token: p.uid.String()})
	assert.ErrorIs(t, err, apperr.ErrAlreadyConnected)

	raw, ok := h.tr.last(p.sid, models.EventAuthenticated)
	require.True(t, ok)
	assert.Equal(t, "player-"+p.uid.String()[:4], raw.(models.AuthenticatedPayload).Nickname)
}

// Two solos at 1200 and 1210 match within one tick, confirm, and a 3-0 report
// moves ratings zero-sum.
func TestDuelLifecycle(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1210)

	require.NoError(t, h.submit(JoinQueue{From: From{a.sid}, Mode: "1v1"}))
	joined, ok := h.tr.last(a.sid, models.EventQueueJoined)
	require.True(t, ok)
	assert.Equal(t, 1, joined.(models.QueueJoinedPayload).PoolSize)
	assert.Equal(t, 100, joined.(models.QueueJoinedPayload).Window)

	require.NoError(t, h.submit(JoinQueue{From: From{b.sid}, Mode: "1v1"}))
	found := h.matchFound(a)
	assert.Equal(t, found.MatchID, h.matchFound(b).MatchID)
	assert.Equal(t, a.uid, found.HostUserID)
	assert.Equal(t, 1200, found.Roster.Red[0].RatingBefore)
	assert.Equal(t, 1210, found.Roster.Blue[0].RatingBefore)
	assert.Equal(t, h.clock.Now().Add(30*time.Second), found.Deadline)
	assert.Equal(t, models.StatusReadyCheck, h.session(a).Status)

	require.NoError(t, h.submit(PlayerReady{From: From{a.sid}, MatchID: found.MatchID}))
	upd, ok := h.tr.last(b.sid, models.EventReadyUpdate)
	require.True(t, ok)
	assert.Equal(t, 1, upd.(models.ReadyUpdatePayload).Ready)
	assert.False(t, h.store.persisted(found.MatchID))

	require.NoError(t, h.submit(PlayerReady{From: From{b.sid}, MatchID: found.MatchID}))
	assert.True(t, h.store.persisted(found.MatchID))
	assert.Equal(t, models.StatusInMatch, h.session(b).Status)
	require.Len(t, h.events.setups, 1)
	assert.Equal(t, found.MatchID, h.events.setups[0].MatchID)

	require.NoError(t, h.submit(ReportResult{From: From{a.sid}, MatchID: found.MatchID, ScoreRed: 3, ScoreBlue: 0}))
	win, loss := h.concluded(a), h.concluded(b)
	assert.Equal(t, models.OutcomeWin, win.Outcome)
	assert.Greater(t, win.RatingAfter, 1200)
	assert.Less(t, loss.RatingAfter, 1210)
	assert.Equal(t, win.RatingAfter-1200, -(loss.RatingAfter - 1210))
	assert.Equal(t, models.StatusIdle, h.session(a).Status)

	rec := h.store.rating(a.uid, models.Mode1v1)
	assert.Equal(t, win.RatingAfter, rec.Rating)
	assert.Equal(t, 1, rec.Wins)
	assert.Equal(t, 1, h.store.rating(b.uid, models.Mode1v1).Losses)

	// a repeated report is rejected and never applied twice
	err := h.submit(ReportResult{From: From{a.sid}, MatchID: found.MatchID, ScoreRed: 3, ScoreBlue: 0})
	assert.ErrorIs(t, err, apperr.ErrMatchNotActive)
	assert.Equal(t, 1, h.store.resultCount())
	assert.Len(t, h.events.ofType(models.LifecycleCompleted), 1)
}

// A party of two plus two solos form a 2v2 with the party on one team.
func TestPartyPlaysTogether(t *testing.T) {
	h := newHarness(t)
	lead := h.connect(1200)
	mate := h.connect(1220)
	s1 := h.connect(1230)
	s2 := h.connect(1190)

	require.NoError(t, h.submit(CreateParty{From{lead.sid}}))
	partyID := h.session(lead).PartyID
	require.NoError(t, h.submit(JoinParty{From: From{mate.sid}, PartyID: partyID}))

	err := h.submit(PartyJoinQueue{From: From{mate.sid}, Mode: "2v2"})
	assert.ErrorIs(t, err, apperr.ErrNotLeader)
	err = h.submit(PartyJoinQueue{From: From{lead.sid}, Mode: "1v1"})
	assert.ErrorIs(t, err, apperr.ErrPartyTooLarge)
	err = h.submit(PartyJoinQueue{From: From{lead.sid}, Mode: "5v5"})
	assert.ErrorIs(t, err, apperr.ErrInvalidMode)

	require.NoError(t, h.submit(PartyJoinQueue{From: From{lead.sid}, Mode: "2v2"}))
	_, ok := h.tr.last(mate.sid, models.EventQueueJoined)
	require.True(t, ok, "party members see the queue join")
	assert.Equal(t, models.StatusQueued, h.session(mate).Status)

	require.NoError(t, h.submit(JoinQueue{From: From{s1.sid}, Mode: "2v2"}))
	require.NoError(t, h.submit(JoinQueue{From: From{s2.sid}, Mode: "2v2"}))

	found := h.matchFound(lead)
	leadTeam, ok := found.Roster.TeamOf(lead.uid)
	require.True(t, ok)
	mateTeam, ok := found.Roster.TeamOf(mate.uid)
	require.True(t, ok)
	assert.Equal(t, leadTeam, mateTeam)
	assert.Len(t, found.Roster.Red, 2)
	assert.Len(t, found.Roster.Blue, 2)
}

// One player never confirms: the match aborts on timeout and the confirmed
// player goes back to the head of the pool.
func TestReadyTimeoutRequeuesConfirmedAtHead(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1210)
	far := h.connect(1900)

	require.NoError(t, h.submit(JoinQueue{From: From{a.sid}, Mode: "1v1"}))
	require.NoError(t, h.submit(JoinQueue{From: From{b.sid}, Mode: "1v1"}))
	require.NoError(t, h.submit(JoinQueue{From: From{far.sid}, Mode: "1v1"}))
	found := h.matchFound(a)
	require.NoError(t, h.submit(PlayerReady{From: From{a.sid}, MatchID: found.MatchID}))

	h.clock.Advance(30 * time.Second)

	require.Eventually(t, func() bool {
		_, ok := h.tr.last(b.sid, models.EventMatchAborted)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	raw, _ := h.tr.last(a.sid, models.EventMatchAborted)
	aborted := raw.(models.MatchAbortedPayload)
	assert.Equal(t, models.AbortTimeout, aborted.Reason)
	assert.True(t, aborted.Requeued)
	raw, _ = h.tr.last(b.sid, models.EventMatchAborted)
	assert.False(t, raw.(models.MatchAbortedPayload).Requeued)

	snap := h.stats()
	assert.Equal(t, []uuid.UUID{a.uid, far.uid}, snap.Waiting[models.Mode1v1])
	assert.Equal(t, models.StatusQueued, h.session(a).Status)
	assert.Equal(t, models.StatusIdle, h.session(b).Status)

	aborts := h.events.ofType(models.LifecycleAborted)
	require.Len(t, aborts, 1)
	assert.Equal(t, []uuid.UUID{b.uid}, aborts[0].UserIDs)

	err := h.submit(PlayerReady{From: From{b.sid}, MatchID: found.MatchID})
	assert.ErrorIs(t, err, apperr.ErrMatchNotActive)
}

func TestScoreValidationAtLimit(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1200)
	matchID := h.activeDuel(a, b)

	err := h.submit(ReportResult{From: From{a.sid}, MatchID: matchID, ScoreRed: 3, ScoreBlue: 3})
	assert.ErrorIs(t, err, apperr.ErrInvalidScore)
	err = h.submit(ReportResult{From: From{a.sid}, MatchID: matchID, ScoreRed: 2, ScoreBlue: 1})
	assert.ErrorIs(t, err, apperr.ErrMatchNotConcluded)
	err = h.submit(ReportResult{From: From{b.sid}, MatchID: matchID, ScoreRed: 2, ScoreBlue: 3})
	assert.ErrorIs(t, err, apperr.ErrNotAuthorizedReporter)
	assert.Zero(t, h.store.resultCount())

	raw, ok := h.tr.last(b.sid, models.EventMatchResultError)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeNotAuthorizedReporter, raw.(models.ErrorPayload).Code)
	_, ok = h.tr.last(a.sid, models.EventMatchResultError)
	assert.True(t, ok)

	require.NoError(t, h.submit(ReportResult{From: From{a.sid}, MatchID: matchID, ScoreRed: 2, ScoreBlue: 3}))
	assert.Equal(t, models.OutcomeWin, h.concluded(b).Outcome)
}

func TestReportStoreFailureKeepsMatchActive(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1250)
	matchID := h.activeDuel(a, b)

	h.store.mu.Lock()
	h.store.failRecord = 1
	h.store.mu.Unlock()

	err := h.submit(ReportResult{From: From{a.sid}, MatchID: matchID, ScoreRed: 3, ScoreBlue: 1})
	assert.True(t, apperr.HasKind(err, apperr.KindInternal))
	assert.Equal(t, models.StatusInMatch, h.session(a).Status)
	assert.Equal(t, 1200, h.store.rating(a.uid, models.Mode1v1).Rating)

	require.NoError(t, h.submit(ReportResult{From: From{a.sid}, MatchID: matchID, ScoreRed: 3, ScoreBlue: 1}))
	assert.Equal(t, 1, h.store.resultCount())
}

func TestDeclineAborts(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1200)
	require.NoError(t, h.submit(JoinQueue{From: From{a.sid}, Mode: "1v1"}))
	require.NoError(t, h.submit(JoinQueue{From: From{b.sid}, Mode: "1v1"}))
	found := h.matchFound(a)

	outsider := h.connect(1200)
	err := h.submit(DeclineMatch{From: From{outsider.sid}, MatchID: found.MatchID})
	assert.ErrorIs(t, err, apperr.ErrNotInMatch)

	require.NoError(t, h.submit(PlayerReady{From: From{a.sid}, MatchID: found.MatchID}))
	require.NoError(t, h.submit(DeclineMatch{From: From{b.sid}, MatchID: found.MatchID}))

	raw, ok := h.tr.last(b.sid, models.EventMatchAborted)
	require.True(t, ok)
	assert.Equal(t, models.AbortDeclined, raw.(models.MatchAbortedPayload).Reason)
	assert.Equal(t, []uuid.UUID{a.uid}, h.stats().Waiting[models.Mode1v1])
}

func TestDisconnectDuringReadyCheck(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1200)
	require.NoError(t, h.submit(JoinQueue{From: From{a.sid}, Mode: "1v1"}))
	require.NoError(t, h.submit(JoinQueue{From: From{b.sid}, Mode: "1v1"}))
	found := h.matchFound(a)
	require.NoError(t, h.submit(PlayerReady{From: From{a.sid}, MatchID: found.MatchID}))
	require.NoError(t, h.submit(PlayerReady{From: From{b.sid}, MatchID: found.MatchID}))

	// already active: a disconnect leaves the match running
	require.NoError(t, h.submit(Disconnect{From{b.sid}}))
	assert.Equal(t, 1, h.stats().ActiveMatches)

	c := h.connect(1200)
	d := h.connect(1200)
	require.NoError(t, h.submit(JoinQueue{From: From{c.sid}, Mode: "1v1"}))
	require.NoError(t, h.submit(JoinQueue{From: From{d.sid}, Mode: "1v1"}))
	pending := h.matchFound(c)
	require.NoError(t, h.submit(PlayerReady{From: From{c.sid}, MatchID: pending.MatchID}))
	require.NoError(t, h.submit(Disconnect{From{d.sid}}))

	raw, ok := h.tr.last(c.sid, models.EventMatchAborted)
	require.True(t, ok)
	assert.Equal(t, models.AbortDisconnect, raw.(models.MatchAbortedPayload).Reason)
	assert.True(t, raw.(models.MatchAbortedPayload).Requeued)
	assert.Equal(t, []uuid.UUID{c.uid}, h.stats().Waiting[models.Mode1v1])
	assert.Equal(t, 0, h.stats().PendingMatches)
}

func TestReconnectResumesActiveMatch(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1200)
	matchID := h.activeDuel(a, b)

	require.NoError(t, h.submit(Disconnect{From{b.sid}}))
	back := player{sid: uuid.New(), uid: b.uid}
	require.NoError(t, h.submit(Connect{From{back.sid}}))
	require.NoError(t, h.submit(Authenticate{From: From{back.sid}, Token: b.uid.String()}))
	assert.Equal(t, models.StatusInMatch, h.session(back).Status)

	err := h.submit(JoinQueue{From: From{back.sid}, Mode: "1v1"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyQueued)

	require.NoError(t, h.submit(ReportResult{From: From{a.sid}, MatchID: matchID, ScoreRed: 0, ScoreBlue: 3}))
	assert.Equal(t, models.OutcomeWin, h.concluded(back).Outcome)
	assert.Equal(t, models.StatusIdle, h.session(back).Status)
}

func TestQueueMembershipIsExclusive(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	require.NoError(t, h.submit(JoinQueue{From: From{a.sid}, Mode: "2v2"}))

	assert.ErrorIs(t, h.submit(JoinQueue{From: From{a.sid}, Mode: "3v3"}), apperr.ErrAlreadyQueued)
	assert.ErrorIs(t, h.submit(CreateParty{From{a.sid}}), apperr.ErrAlreadyQueued)
	assert.ErrorIs(t, h.submit(LeaveQueue{From: From{a.sid}, Mode: "1v1"}), apperr.ErrNotQueued)

	require.NoError(t, h.submit(LeaveQueue{From: From{a.sid}, Mode: "2v2"}))
	_, ok := h.tr.last(a.sid, models.EventQueueLeft)
	assert.True(t, ok)
	assert.ErrorIs(t, h.submit(LeaveQueue{From: From{a.sid}}), apperr.ErrNotQueued)
	assert.Equal(t, models.StatusIdle, h.session(a).Status)
}

func TestLeaderLeavingWithdrawsPartyBlock(t *testing.T) {
	h := newHarness(t)
	lead := h.connect(1200)
	mate := h.connect(1200)
	require.NoError(t, h.submit(CreateParty{From{lead.sid}}))
	require.NoError(t, h.submit(JoinParty{From: From{mate.sid}, PartyID: h.session(lead).PartyID}))
	require.NoError(t, h.submit(PartyJoinQueue{From: From{lead.sid}, Mode: "3v3"}))
	assert.Equal(t, 2, h.stats().Pools[models.Mode3v3])

	assert.ErrorIs(t, h.submit(LeaveQueue{From: From{mate.sid}}), apperr.ErrNotLeader)

	require.NoError(t, h.submit(LeaveParty{From{lead.sid}}))
	assert.Equal(t, 0, h.stats().Pools[models.Mode3v3])
	assert.Equal(t, 0, h.stats().Parties)

	_, ok := h.tr.last(mate.sid, models.EventQueueLeft)
	assert.True(t, ok)
	raw, ok := h.tr.last(mate.sid, models.EventPartyUpdated)
	require.True(t, ok)
	assert.True(t, raw.(models.PartyUpdatedPayload).Dissolved)
	assert.False(t, h.session(mate).InParty())
	assert.Equal(t, models.StatusIdle, h.session(mate).Status)
}

func TestPersistFailureAbortsAndRequeues(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1200)
	h.store.mu.Lock()
	h.store.failCreate = 1
	h.store.mu.Unlock()

	require.NoError(t, h.submit(JoinQueue{From: From{a.sid}, Mode: "1v1"}))
	require.NoError(t, h.submit(JoinQueue{From: From{b.sid}, Mode: "1v1"}))
	first := h.matchFound(a)
	require.NoError(t, h.submit(PlayerReady{From: From{a.sid}, MatchID: first.MatchID}))
	require.NoError(t, h.submit(PlayerReady{From: From{b.sid}, MatchID: first.MatchID}))

	raw, ok := h.tr.last(a.sid, models.EventMatchAborted)
	require.True(t, ok)
	assert.Equal(t, models.AbortInternal, raw.(models.MatchAbortedPayload).Reason)

	// both were requeued at the head and immediately re-formed
	second := h.matchFound(a)
	assert.NotEqual(t, first.MatchID, second.MatchID)
	assert.Equal(t, 2, h.tr.count(b.sid, models.EventMatchFound))
}

func TestOversizedScoreRejected(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1200)
	matchID := h.activeDuel(a, b)

	err := h.submit(ReportResult{From: From{a.sid}, MatchID: matchID, ScoreRed: 1e19, ScoreBlue: 0})
	assert.ErrorIs(t, err, apperr.ErrInvalidScore)
	assert.Zero(t, h.store.resultCount())
	assert.Equal(t, models.StatusInMatch, h.session(a).Status)
	_, ok := h.tr.last(a.sid, models.EventMatchConcluded)
	assert.False(t, ok)
}

func TestActiveMatchSeesPlayerConnection(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1200)
	matchID := h.activeDuel(a, b)

	require.NoError(t, h.submit(Disconnect{From{b.sid}}))
	raw, ok := h.tr.last(a.sid, models.EventPlayerConnection)
	require.True(t, ok)
	dropped := raw.(models.PlayerConnectionPayload)
	assert.Equal(t, matchID, dropped.MatchID)
	assert.Equal(t, b.uid, dropped.UserID)
	assert.False(t, dropped.Connected)

	back := uuid.New()
	require.NoError(t, h.submit(Connect{From{back}}))
	require.NoError(t, h.submit(Authenticate{From: From{back}, Token: b.uid.String()}))
	raw, ok = h.tr.last(a.sid, models.EventPlayerConnection)
	require.True(t, ok)
	assert.True(t, raw.(models.PlayerConnectionPayload).Connected)
	assert.Equal(t, 2, h.tr.count(a.sid, models.EventPlayerConnection))
}

// A match whose stored row was swept is dropped on the next report and its
// players can queue again.
func TestReportOnClosedRowReleasesPlayers(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1200)
	b := h.connect(1200)
	matchID := h.activeDuel(a, b)
	h.store.closeRow(matchID)

	err := h.submit(ReportResult{From: From{a.sid}, MatchID: matchID, ScoreRed: 3, ScoreBlue: 0})
	assert.ErrorIs(t, err, apperr.ErrMatchNotActive)
	assert.False(t, apperr.HasKind(err, apperr.KindInternal))

	raw, ok := h.tr.last(b.sid, models.EventMatchAborted)
	require.True(t, ok)
	assert.Equal(t, models.AbortAbandoned, raw.(models.MatchAbortedPayload).Reason)
	assert.Equal(t, models.StatusIdle, h.session(a).Status)
	assert.Equal(t, models.StatusIdle, h.session(b).Status)
	assert.Equal(t, 0, h.stats().ActiveMatches)

	err = h.submit(ReportResult{From: From{a.sid}, MatchID: matchID, ScoreRed: 3, ScoreBlue: 0})
	assert.ErrorIs(t, err, apperr.ErrMatchNotActive)

	require.NoError(t, h.submit(JoinQueue{From: From{a.sid}, Mode: "1v1"}))
	require.NoError(t, h.submit(JoinQueue{From: From{b.sid}, Mode: "1v1"}))
	assert.NotEqual(t, matchID, h.matchFound(a).MatchID)

	aborts := h.events.ofType(models.LifecycleAborted)
	require.Len(t, aborts, 1)
	assert.Equal(t, models.AbortAbandoned, aborts[0].Reason)
}
