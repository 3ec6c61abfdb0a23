package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskviewer/pkg/authority"
	"taskviewer/pkg/errs"
)

// PgStore is a PostgreSQL-backed user store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the users table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			username   TEXT NOT NULL UNIQUE,
			email      TEXT NOT NULL UNIQUE,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// Register creates a new user.
func (s *PgStore) Register(ctx context.Context, username, email, password string, role authority.Role) (*User, error) {
	hash, err := prepare(username, email, password, role)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Username:  username,
		Email:     email,
		Password:  hash,
		Role:      role,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.Email, u.Password, string(u.Role), u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, errs.Validation("username or email already registered")
		}
		return nil, errs.Persistence("register user", fmt.Errorf("register user %s: %w", username, err))
	}
	return u, nil
}

// Get returns a user by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*User, error) {
	return s.scanOne(ctx, "get user", `SELECT id, username, email, password, role, created_at FROM users WHERE id = $1`, id)
}

// ByUsername returns a user by username.
func (s *PgStore) ByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanOne(ctx, "user by username", `SELECT id, username, email, password, role, created_at FROM users WHERE username = $1`, username)
}

// ByEmail returns a user by email.
func (s *PgStore) ByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanOne(ctx, "user by email", `SELECT id, username, email, password, role, created_at FROM users WHERE email = $1`, email)
}

func (s *PgStore) scanOne(ctx context.Context, op, query string, args ...any) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, args...).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence(op, err)
	}
	return &u, nil
}
