package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"taskviewer/pkg/errs"
)

// SQLiteStore is an embedded SQLite-backed task repository. The database
// must be opened with foreign keys enforced.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureTable creates the tasks table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL CHECK (title <> ''),
			about      TEXT NOT NULL DEFAULT '',
			assignee   TEXT NOT NULL REFERENCES users(id),
			status     TEXT NOT NULL DEFAULT 'open',
			priority   INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 5),
			due        DATETIME NOT NULL,
			estimate   INTEGER NOT NULL DEFAULT 0 CHECK (estimate >= 0),
			tracked    INTEGER NOT NULL DEFAULT 0 CHECK (tracked >= 0),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee)`)
	return err
}

// ByID retrieves a single task, or nil when absent.
func (s *SQLiteStore) ByID(ctx context.Context, id string) (*Task, error) {
	return byID(ctx, s.db, id)
}

// ByUsername returns tasks assigned to username.
func (s *SQLiteStore) ByUsername(ctx context.Context, username string) ([]Task, error) {
	return s.list(ctx, "tasks by username", selectTasks+` WHERE u.username = ?`+orderTasks, username)
}

// ByEmail returns tasks assigned to the user with email.
func (s *SQLiteStore) ByEmail(ctx context.Context, email string) ([]Task, error) {
	return s.list(ctx, "tasks by email", selectTasks+` WHERE u.email = ?`+orderTasks, email)
}

// WithPriority returns tasks with the given priority.
func (s *SQLiteStore) WithPriority(ctx context.Context, priority int) ([]Task, error) {
	return s.list(ctx, "tasks with priority", selectTasks+` WHERE t.priority = ?`+orderTasks, priority)
}

// WithStatus returns tasks with the given status.
func (s *SQLiteStore) WithStatus(ctx context.Context, status string) ([]Task, error) {
	return s.list(ctx, "tasks with status", selectTasks+` WHERE t.status = ?`+orderTasks, status)
}

// Open returns tasks that are not done.
func (s *SQLiteStore) Open(ctx context.Context) ([]Task, error) {
	return s.list(ctx, "open tasks", selectTasks+` WHERE t.status <> ?`+orderTasks, StatusDone)
}

// All returns every task.
func (s *SQLiteStore) All(ctx context.Context) ([]Task, error) {
	return s.list(ctx, "all tasks", selectTasks+orderTasks)
}

// ByFilter returns tasks matching spec.
func (s *SQLiteStore) ByFilter(ctx context.Context, spec FilterSpec) ([]Task, error) {
	where, args, err := renderWhere(spec, question, nil)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "filter tasks", selectTasks+where+orderTasks, args...)
}

// Add inserts t, resolving its assignee from t.Username.
func (s *SQLiteStore) Add(ctx context.Context, t *Task) (*Task, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	out := *t
	out.ID = uuid.Must(uuid.NewV7()).String()
	out.CreatedAt = now
	out.UpdatedAt = now
	out.Time.Due = out.Time.Due.UTC().Truncate(time.Microsecond)

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, title, about, assignee, status, priority, due, estimate, tracked, created_at, updated_at)
		VALUES (?, ?, ?, (SELECT id FROM users WHERE username = ?), ?, ?, ?, ?, ?, ?, ?)
		RETURNING assignee`,
		out.ID, out.Title, out.About, out.Username, out.Status.Value, out.Status.Priority,
		out.Time.Due, out.Time.Estimate, out.Time.Tracked, out.CreatedAt, out.UpdatedAt).
		Scan(&out.Assignee)
	if err != nil {
		return nil, sqliteError("create task", "user", out.Username, err)
	}
	return &out, nil
}

// ApplyUpdate applies spec to task id and returns the updated task.
func (s *SQLiteStore) ApplyUpdate(ctx context.Context, id string, spec UpdateSpec) (*Task, error) {
	set, args, err := renderSet(spec, sqliteDialect, nil)
	if err != nil {
		return nil, err
	}
	args = append(args, id)
	return s.updateOne(ctx, "update task", assigneeOf(spec), id, `UPDATE tasks SET `+set+` WHERE id = ?`, args...)
}

// Assign points task id at userID.
func (s *SQLiteStore) Assign(ctx context.Context, id, userID string) (*Task, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return s.updateOne(ctx, "assign task", userID, id, `UPDATE tasks SET assignee = ?, updated_at = ? WHERE id = ?`, userID, now, id)
}

// Delete removes task id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return errs.Persistence("delete task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Persistence("delete task", err)
	}
	if n == 0 {
		return errs.NotFound("task", id)
	}
	return nil
}

// updateOne runs a single-row UPDATE and re-reads the row in the same
// transaction.
func (s *SQLiteStore) updateOne(ctx context.Context, op, ref, id, query string, args ...any) (*Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Persistence(op, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteError(op, "user", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errs.Persistence(op, err)
	}
	if n == 0 {
		return nil, errs.NotFound("task", id)
	}
	t, err := byID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Persistence(op, fmt.Errorf("commit: %w", err))
	}
	return t, nil
}

func (s *SQLiteStore) list(ctx context.Context, op, query string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Persistence(op, err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errs.Persistence(op, err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(op, fmt.Errorf("row iteration: %w", err))
	}
	return tasks, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func byID(ctx context.Context, q queryRower, id string) (*Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, selectTasks+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("get task", fmt.Errorf("get task %s: %w", id, err))
	}
	return t, nil
}

// sqliteError maps constraint violations on the assignee to
// errs.ErrForeignKey and wraps everything else.
func sqliteError(op, kind, ref string, err error) error {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch {
		case sqErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return errs.ForeignKey(kind, ref)
		case sqErr.ExtendedCode == sqlite3.ErrConstraintNotNull && strings.Contains(sqErr.Error(), "tasks.assignee"):
			return errs.ForeignKey(kind, ref)
		}
	}
	return errs.Persistence(op, err)
}
