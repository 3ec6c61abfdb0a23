package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"taskviewer/pkg/authority"
	"taskviewer/pkg/errs"
)

// SQLiteStore is an embedded SQLite-backed user store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureTable creates the users table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			username   TEXT NOT NULL UNIQUE,
			email      TEXT NOT NULL UNIQUE,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`)
	return err
}

// Register creates a new user.
func (s *SQLiteStore) Register(ctx context.Context, username, email, password string, role authority.Role) (*User, error) {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.Password, string(u.Role), u.CreatedAt)
	if err != nil {
		var sqErr sqlite3.Error
		if errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, errs.Validation("username or email already registered")
		}
		return nil, errs.Persistence("register user", fmt.Errorf("register user %s: %w", username, err))
	}
	return u, nil
}

// Get returns a user by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*User, error) {
	return s.scanOne(ctx, "get user", `SELECT id, username, email, password, role, created_at FROM users WHERE id = ?`, id)
}

// ByUsername returns a user by username.
func (s *SQLiteStore) ByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanOne(ctx, "user by username", `SELECT id, username, email, password, role, created_at FROM users WHERE username = ?`, username)
}

// ByEmail returns a user by email.
func (s *SQLiteStore) ByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanOne(ctx, "user by email", `SELECT id, username, email, password, role, created_at FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) scanOne(ctx context.Context, op, query string, args ...any) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence(op, err)
	}
	return &u, nil
}
