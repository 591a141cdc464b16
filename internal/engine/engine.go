// Package engine runs matchmaking as a single event loop. Player actions,
// queue ticks and ready check timers all arrive as commands and are handled
// to completion one at a time, so the tables below need no locking.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jason-s-yu/arena/internal/party"
	"github.com/jason-s-yu/arena/internal/queue"
	"github.com/jason-s-yu/arena/internal/rating"
	"github.com/jason-s-yu/arena/internal/readycheck"
	"github.com/jason-s-yu/arena/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by Submit once the loop has exited.
var ErrStopped = errors.New("engine stopped")

// Config holds matchmaking tunables.
type Config struct {
	TickInterval  time.Duration
	ReadyTimeout  time.Duration
	InitialWindow int
	WindowStep    int
	MaxWindow     int
	DefaultRating int
	KFactor       int
	ScoreLimits   map[models.Mode]int
	MaxPartySize  int
	StoreTimeout  time.Duration
}

// DefaultConfig mirrors the shipped configuration defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:  5 * time.Second,
		ReadyTimeout:  30 * time.Second,
		InitialWindow: 100,
		WindowStep:    10,
		MaxWindow:     500,
		DefaultRating: rating.DefaultRating,
		KFactor:       rating.DefaultK,
		ScoreLimits:   map[models.Mode]int{models.Mode1v1: 3, models.Mode2v2: 3, models.Mode3v3: 3},
		MaxPartySize:  3,
		StoreTimeout:  5 * time.Second,
	}
}

func (c Config) scoreLimit(mode models.Mode) int {
	if l, ok := c.ScoreLimits[mode]; ok && l > 0 {
		return l
	}
	return 3
}

// Deps are the engine's collaborators.
type Deps struct {
	Transport Transport
	Store     Store
	Signaler  Signaler
	Events    EventLog
	Verifier  TokenVerifier
	Clock     clockwork.Clock
	Logger    logrus.FieldLogger
}

type request struct {
	cmd  Command
	done chan error
}

// Engine owns the session, party, queue, ready check and match tables.
type Engine struct {
	cfg       Config
	clock     clockwork.Clock
	logger    logrus.FieldLogger
	transport Transport
	store     Store
	signaler  Signaler
	events    EventLog
	verifier  TokenVerifier

	sessions *session.Registry
	parties  *party.Coordinator
	queue    *queue.Manager
	ready    *readycheck.Coordinator

	matches map[uuid.UUID]*models.Match      // pending-ready and active
	byUser  map[uuid.UUID]uuid.UUID          // user -> pending or active match
	archive map[uuid.UUID]models.MatchStatus // completed and aborted

	cmds    chan request
	stopped chan struct{}
}

// New wires an Engine. Call Run to start the loop.
func New(cfg Config, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	logger := deps.Logger.WithField("component", "engine")
	sessions := session.NewRegistry(deps.Clock, logger)
	return &Engine{
		cfg:       cfg,
		clock:     deps.Clock,
		logger:    logger,
		transport: deps.Transport,
		store:     deps.Store,
		signaler:  deps.Signaler,
		events:    deps.Events,
		verifier:  deps.Verifier,
		sessions:  sessions,
		parties:   party.NewCoordinator(sessions, deps.Transport, cfg.MaxPartySize, logger),
		queue: queue.NewManager(queue.Config{
			InitialWindow: cfg.InitialWindow,
			WindowStep:    cfg.WindowStep,
			MaxWindow:     cfg.MaxWindow,
			TickInterval:  cfg.TickInterval,
		}, deps.Clock, logger),
		ready:   readycheck.NewCoordinator(cfg.ReadyTimeout, deps.Clock, logger),
		matches: make(map[uuid.UUID]*models.Match),
		byUser:  make(map[uuid.UUID]uuid.UUID),
		archive: make(map[uuid.UUID]models.MatchStatus),
		cmds:    make(chan request, 64),
		stopped: make(chan struct{}),
	}
}

// Run processes commands until ctx is cancelled. The queue tick is scheduled
// with gocron on the engine clock.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)

	sched, err := gocron.NewScheduler(gocron.WithClock(e.clock))
	if err != nil {
		return fmt.Errorf("failed to create tick scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(e.cfg.TickInterval),
		gocron.NewTask(func() { e.post(ctx, Tick{}) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule queue tick: %w", err)
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			e.logger.WithError(err).Warn("tick scheduler shutdown")
		}
	}()

	e.logger.WithField("tick_interval", e.cfg.TickInterval.String()).Info("engine loop started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine loop stopped")
			return nil
		case req := <-e.cmds:
			err := e.handle(ctx, req.cmd)
			if req.done != nil {
				req.done <- err
			}
		}
	}
}

// Submit hands a command to the loop and waits for it to be handled. The
// returned error has already been reported to the originating session.
func (e *Engine) Submit(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, done: make(chan error, 1)}
	select {
	case e.cmds <- req:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the engine tables.
func (e *Engine) Stats(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.Submit(ctx, Stats{Out: &snap})
	return snap, err
}

// post enqueues without waiting for the result. Used by timers.
func (e *Engine) post(ctx context.Context, cmd Command) {
	select {
	case e.cmds <- request{cmd: cmd}:
	case <-e.stopped:
	case <-ctx.Done():
	}
}

func (e *Engine) handle(ctx context.Context, cmd Command) error {
	var err error
	switch c := cmd.(type) {
	case Connect:
		e.sessions.Create(c.SessionID)
	case Disconnect:
		e.disconnect(ctx, c.SessionID)
	case Authenticate:
		err = e.authenticate(ctx, c)
	case JoinQueue:
		err = e.joinQueue(ctx, c.SessionID, c.Mode)
	case LeaveQueue:
		err = e.leaveQueue(ctx, c.SessionID, c.Mode)
	case CreateParty:
		err = e.createParty(c.SessionID)
	case JoinParty:
		err = e.joinParty(c.SessionID, c.PartyID)
	case LeaveParty:
		err = e.leaveParty(ctx, c.SessionID)
	case PartyJoinQueue:
		err = e.partyJoinQueue(ctx, c.SessionID, c.Mode)
	case PartyLeaveQueue:
		err = e.partyLeaveQueue(ctx, c.SessionID, c.Mode)
	case PlayerReady:
		err = e.playerReady(ctx, c.SessionID, c.MatchID)
	case DeclineMatch:
		err = e.declineMatch(ctx, c.SessionID, c.MatchID)
	case ReportResult:
		err = e.reportResult(ctx, c)
	case Tick:
		e.tick(ctx)
	case expireReadyCheck:
		e.expire(ctx, c.matchID)
	case Stats:
		e.fillStats(c.Out)
	default:
		err = apperr.Internal(fmt.Errorf("unknown command %T", cmd), "unknown command")
	}
	if err != nil {
		e.reportError(cmd, err)
	}
	return err
}

// reportError sends a typed error to the originating session only.
func (e *Engine) reportError(cmd Command, err error) {
	appErr := apperr.From(err)
	log := e.logger.WithFields(logrus.Fields{
		"session_id": cmd.origin(),
		"command":    fmt.Sprintf("%T", cmd),
		"code":       appErr.Code,
	})
	if appErr.Kind == apperr.KindInternal {
		log.WithField("trace", apperr.Trace(appErr.Err)).Error("command failed")
	} else {
		log.Debug("command rejected")
	}
	if sid := cmd.origin(); sid != uuid.Nil && cmd.errorEvent() != "" {
		e.transport.Notify(sid, cmd.errorEvent(), appErr.Payload())
	}
}

func (e *Engine) requireAuth(sessionID uuid.UUID) (models.Session, error) {
	s, ok := e.sessions.Get(sessionID)
	if !ok || !s.Authenticated() {
		return models.Session{}, apperr.ErrAuthRequired
	}
	return s, nil
}

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.StoreTimeout)
}

// publish records a lifecycle event. Failures are logged and never block the flow.
func (e *Engine) publish(ctx context.Context, m *models.Match, kind, reason string, userIDs []uuid.UUID, payload map[string]any) {
	if e.events == nil {
		return
	}
	ev := models.LifecycleEvent{
		MatchID:   m.ID,
		Mode:      m.Mode,
		Type:      kind,
		Reason:    reason,
		UserIDs:   userIDs,
		Payload:   payload,
		Timestamp: e.clock.Now().UnixMilli(),
	}
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.events.PublishLifecycle(sctx, ev); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{"match_id": m.ID, "type": kind}).Warn("failed to publish lifecycle event")
	}
}

func (e *Engine) fillStats(out *Snapshot) {
	if out == nil {
		return
	}
	out.Sessions = e.sessions.Count()
	out.ByStatus = e.sessions.CountByStatus()
	out.Parties = e.parties.Count()
	out.Pools = make(map[models.Mode]int, len(models.SupportedModes))
	out.Waiting = make(map[models.Mode][]uuid.UUID, len(models.SupportedModes))
	for _, mode := range models.SupportedModes {
		out.Pools[mode] = e.queue.PoolSize(mode)
		for _, b := range e.queue.Pool(mode) {
			for _, entry := range b.Entries {
				out.Waiting[mode] = append(out.Waiting[mode], entry.UserID)
			}
		}
	}
	out.PendingMatches = e.ready.Pending()
	out.ActiveMatches = 0
	for _, m := range e.matches {
		if m.Status == models.MatchActive {
			out.ActiveMatches++
		}
	}
}
