// Package store opens the user, task and activity stores for the
// configured driver.
package store

import (
	"context"
	"fmt"

	"taskviewer/internal/config"
	"taskviewer/internal/db"
	"taskviewer/pkg/activity"
	"taskviewer/pkg/authority"
	"taskviewer/pkg/task"
	"taskviewer/pkg/user"
)

// Stores is the persistence for one database.
type Stores struct {
	Users   user.Store
	Tasks   task.Repository
	Journal activity.Store

	close func()
}

// Open connects to the database named by cfg.
func Open(ctx context.Context, cfg config.Config) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Users:   user.NewPgStore(pool),
			Tasks:   task.NewPgStore(pool),
			Journal: activity.NewPgStore(pool),
			close:   pool.Close,
		}, nil
	case config.DriverSQLite:
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Users:   user.NewSQLiteStore(conn),
			Tasks:   task.NewSQLiteStore(conn),
			Journal: activity.NewSQLiteStore(conn),
			close:   func() { conn.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
}

// Close releases the underlying connections.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// EnsureTables creates missing tables. Tasks reference users, so users
// come first.
func (s *Stores) EnsureTables(ctx context.Context) error {
	if err := s.Users.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure users table: %w", err)
	}
	if err := s.Tasks.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure tasks table: %w", err)
	}
	if err := s.Journal.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure activity table: %w", err)
	}
	return nil
}

// BootstrapAdmin registers a as an admin unless a user by that name
// exists. It reports whether an account was created.
func (s *Stores) BootstrapAdmin(ctx context.Context, a config.Admin) (bool, error) {
	if a.Username == "" {
		return false, nil
	}
	existing, err := s.Users.ByUsername(ctx, a.Username)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	email := a.Email
	if email == "" {
		email = a.Username + "@localhost"
	}
	if _, err := s.Users.Register(ctx, a.Username, email, a.Password, authority.Admin); err != nil {
		return false, err
	}
	return true, nil
}
