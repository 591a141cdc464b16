// Package historian drains match lifecycle events from redis into Postgres.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink persists drained events and closes out matches nobody reported.
type Sink interface {
	InsertMatchEvents(ctx context.Context, events []models.LifecycleEvent) error
	AbandonStaleMatches(ctx context.Context, startedBefore time.Time) (int64, error)
}

type Config struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// StaleAfter is how long a match may stay active before it is marked
	// abandoned. Zero disables the sweep.
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

// Service pops events with BLPop, batches them and writes each batch in one
// transaction.
type Service struct {
	cfg    Config
	rdb    *redis.Client
	sink   Sink
	clock  clockwork.Clock
	logger logrus.FieldLogger

	batchMu   sync.Mutex
	batch     []models.LifecycleEvent
	lastFlush time.Time
}

func New(cfg Config, rdb *redis.Client, sink Sink, clock clockwork.Clock, logger logrus.FieldLogger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = 500 * time.Millisecond
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Service{
		cfg:       cfg,
		rdb:       rdb,
		sink:      sink,
		clock:     clock,
		logger:    logger.WithField("component", "historian"),
		batch:     make([]models.LifecycleEvent, 0, cfg.BatchSize),
		lastFlush: clock.Now(),
	}
}

// Run blocks until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if s.cfg.StaleAfter > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sweepLoop(ctx)
		}()
	}

	s.logger.WithField("queue", s.cfg.Queue).Info("historian started")
	s.readLoop(ctx)
	wg.Wait()

	s.flush(context.Background())
	s.logger.Info("historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		// a short timeout keeps cancellation and time-based flushes responsive
		res, err := s.rdb.BLPop(ctx, s.cfg.FlushDelay, s.cfg.Queue).Result()
		switch {
		case err == nil && len(res) == 2:
			var ev models.LifecycleEvent
			if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
				s.logger.WithError(err).Warn("dropping malformed lifecycle event")
				break
			}
			s.append(ctx, ev)
		case err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil:
			s.logger.WithError(err).Error("BLPop failed")
			s.clock.Sleep(time.Second)
		}

		if s.clock.Since(s.lastFlushAt()) >= s.cfg.FlushDelay {
			s.flush(ctx)
		}
	}
}

func (s *Service) append(ctx context.Context, ev models.LifecycleEvent) {
	s.batchMu.Lock()
	s.batch = append(s.batch, ev)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()
	if full {
		s.flush(ctx)
	}
}

func (s *Service) lastFlushAt() time.Time {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return s.lastFlush
}

// flush writes the pending batch. A failed batch is put back in front so the
// next flush retries it.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	s.lastFlush = s.clock.Now()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := s.batch
	s.batch = make([]models.LifecycleEvent, 0, s.cfg.BatchSize)
	s.batchMu.Unlock()

	if err := s.sink.InsertMatchEvents(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("events", len(pending)).Error("flush failed")
		s.batchMu.Lock()
		s.batch = append(pending, s.batch...)
		s.batchMu.Unlock()
		return
	}
	s.logger.WithField("events", len(pending)).Debug("flushed lifecycle events")
}

func (s *Service) sweepLoop(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}

// Sweep marks matches active for longer than StaleAfter as abandoned.
func (s *Service) Sweep(ctx context.Context) {
	n, err := s.sink.AbandonStaleMatches(ctx, s.clock.Now().Add(-s.cfg.StaleAfter))
	if err != nil {
		s.logger.WithError(err).Error("stale match sweep failed")
		return
	}
	if n > 0 {
		s.logger.WithField("matches", n).Info("marked stale matches abandoned")
	}
}
