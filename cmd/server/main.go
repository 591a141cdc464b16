// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/jason-s-yu/arena/internal/cache"
	"github.com/jason-s-yu/arena/internal/config"
	"github.com/jason-s-yu/arena/internal/database"
	"github.com/jason-s-yu/arena/internal/engine"
	"github.com/jason-s-yu/arena/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
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
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	if cfg.Postgres.MigrateOnStart {
		if err := database.Migrate(cfg.Postgres.ConnString(), logger); err != nil {
			return err
		}
	}
	pool, err := database.Connect(ctx, cfg.Postgres.ConnString())
	if err != nil {
		return err
	}
	defer pool.Close()
	store := database.NewStore(pool, cfg.Matchmaking.DefaultRating, logger)

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	publisher := cache.NewPublisher(rdb, cfg.Redis.EventQueue, cfg.Redis.PeerSetupQueue)

	var tokens *auth.Tokens
	if cfg.Auth.PrivateKeyPath != "" {
		tokens, err = auth.NewTokensFromFiles(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.TokenExpire, clock)
	} else {
		logger.Warn("no signing key configured, generating an ephemeral key pair")
		tokens, err = auth.NewTokens(cfg.Auth.TokenExpire, clock)
	}
	if err != nil {
		return err
	}

	hub := handlers.NewHub(64, logger)
	eng := engine.New(cfg.Engine(), engine.Deps{
		Transport: hub,
		Store:     store,
		Signaler:  publisher,
		Events:    publisher,
		Verifier:  tokens,
		Clock:     clock,
		Logger:    logger,
	})
	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	users := handlers.NewUserHandlers(store, tokens, cfg.Auth.TokenExpire, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handlers.NewRouter(logger, hub, eng, users),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
	case err := <-engineDone:
		return fmt.Errorf("engine stopped: %w", err)
	case <-ctx.Done():
		logger.Info("terminating")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
