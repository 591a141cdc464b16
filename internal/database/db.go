// internal/database/db.go
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the Postgres persistence layer for users, ratings and matches.
type Store struct {
	pool          *pgxpool.Pool
	defaultRating int
	logger        logrus.FieldLogger
}

// NewStore wraps an open pool. defaultRating seeds users with no rating row.
func NewStore(pool *pgxpool.Pool, defaultRating int, logger logrus.FieldLogger) *Store {
	return &Store{pool: pool, defaultRating: defaultRating, logger: logger.WithField("component", "store")}
}

// Pool exposes the underlying pool for callers that share it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Connect opens a pgx pool and pings it.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema migrations to the database at url.
func Migrate(url string, logger logrus.FieldLogger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.WithFields(logrus.Fields{"source_err": srcErr, "db_err": dbErr}).Warn("migrator close")
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database schema up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, _, _ := m.Version()
	logger.WithField("version", version).Info("database migrated")
	return nil
}
