// cmd/historian is an asynchronous historian service that pops match lifecycle
// events from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/arena/internal/cache"
	"github.com/jason-s-yu/arena/internal/config"
	"github.com/jason-s-yu/arena/internal/database"
	"github.com/jason-s-yu/arena/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load(".", "./config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Postgres.ConnString())
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	defer pool.Close()

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	svc := historian.New(historian.Config{
		Queue:         cfg.Redis.EventQueue,
		BatchSize:     cfg.Historian.BatchSize,
		FlushDelay:    cfg.Historian.FlushDelay,
		StaleAfter:    cfg.Historian.StaleAfter,
		SweepInterval: cfg.Historian.SweepInterval,
	}, rdb, database.NewStore(pool, cfg.Matchmaking.DefaultRating, logger), clockwork.NewRealClock(), logger)

	svc.Run(ctx)
	logger.Info("Historian shutdown complete.")
}
