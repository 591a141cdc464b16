package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/jason-s-yu/arena/internal/models"
)

var (
	// ErrUserNotFound is returned when no row matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned on a unique violation for users.email.
	ErrEmailTaken = errors.New("email already registered")
)

// CreateUser hashes the password and inserts the user, assigning an id if unset.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	hash, err := auth.HashPassword(user.Password, auth.DefaultPasswordParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	q := `INSERT INTO users (id, email, password, username, is_ephemeral, is_admin)
	      VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)`

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Email, user.Password, user.Username,
			user.IsEphemeral, user.IsAdmin,
		)
		return execErr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

const userColumns = `id, COALESCE(email, ''), password, username, is_ephemeral, is_admin`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Username, &u.IsEphemeral, &u.IsAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}
