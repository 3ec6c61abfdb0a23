package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskviewer/pkg/errs"
)

// PgStore is a PostgreSQL-backed task repository.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the tasks table if it doesn't exist. The users table
// must already exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL CHECK (title <> ''),
			about      TEXT NOT NULL DEFAULT '',
			assignee   TEXT NOT NULL REFERENCES users(id),
			status     TEXT NOT NULL DEFAULT 'open',
			priority   INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 5),
			due        TIMESTAMPTZ NOT NULL,
			estimate   INTEGER NOT NULL DEFAULT 0 CHECK (estimate >= 0),
			tracked    INTEGER NOT NULL DEFAULT 0 CHECK (tracked >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee)`)
	return err
}

// ByID retrieves a single task, or nil when absent.
func (s *PgStore) ByID(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, selectTasks+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("get task", fmt.Errorf("get task %s: %w", id, err))
	}
	return t, nil
}

// ByUsername returns tasks assigned to username.
func (s *PgStore) ByUsername(ctx context.Context, username string) ([]Task, error) {
	return s.list(ctx, "tasks by username", selectTasks+` WHERE u.username = $1`+orderTasks, username)
}

// ByEmail returns tasks assigned to the user with email.
func (s *PgStore) ByEmail(ctx context.Context, email string) ([]Task, error) {
	return s.list(ctx, "tasks by email", selectTasks+` WHERE u.email = $1`+orderTasks, email)
}

// WithPriority returns tasks with the given priority.
func (s *PgStore) WithPriority(ctx context.Context, priority int) ([]Task, error) {
	return s.list(ctx, "tasks with priority", selectTasks+` WHERE t.priority = $1`+orderTasks, priority)
}

// WithStatus returns tasks with the given status.
func (s *PgStore) WithStatus(ctx context.Context, status string) ([]Task, error) {
	return s.list(ctx, "tasks with status", selectTasks+` WHERE t.status = $1`+orderTasks, status)
}

// Open returns tasks that are not done.
func (s *PgStore) Open(ctx context.Context) ([]Task, error) {
	return s.list(ctx, "open tasks", selectTasks+` WHERE t.status <> $1`+orderTasks, StatusDone)
}

// All returns every task.
func (s *PgStore) All(ctx context.Context) ([]Task, error) {
	return s.list(ctx, "all tasks", selectTasks+orderTasks)
}

// ByFilter returns tasks matching spec.
func (s *PgStore) ByFilter(ctx context.Context, spec FilterSpec) ([]Task, error) {
	where, args, err := renderWhere(spec, dollar, nil)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "filter tasks", selectTasks+where+orderTasks, args...)
}

// Add inserts t, resolving its assignee from t.Username.
func (s *PgStore) Add(ctx context.Context, t *Task) (*Task, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	out := *t
	out.ID = uuid.Must(uuid.NewV7()).String()
	out.CreatedAt = now
	out.UpdatedAt = now
	out.Time.Due = out.Time.Due.UTC().Truncate(time.Microsecond)

	err := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, title, about, assignee, status, priority, due, estimate, tracked, created_at, updated_at)
		VALUES ($1, $2, $3, (SELECT id FROM users WHERE username = $4), $5, $6, $7, $8, $9, $10, $11)
		RETURNING assignee`,
		out.ID, out.Title, out.About, out.Username, out.Status.Value, out.Status.Priority,
		out.Time.Due, out.Time.Estimate, out.Time.Tracked, out.CreatedAt, out.UpdatedAt).
		Scan(&out.Assignee)
	if err != nil {
		return nil, pgError("create task", "user", out.Username, err)
	}
	return &out, nil
}

// ApplyUpdate applies spec to task id and returns the updated task.
func (s *PgStore) ApplyUpdate(ctx context.Context, id string, spec UpdateSpec) (*Task, error) {
	set, args, err := renderSet(spec, pgDialect, nil)
	if err != nil {
		return nil, err
	}
	args = append(args, id)
	query := fmt.Sprintf(`WITH t AS (UPDATE tasks SET %s WHERE id = %s RETURNING *) `, set, dollar(len(args))) +
		`SELECT t.id, t.title, t.about, t.status, t.priority, t.due, t.estimate, t.tracked,
		        t.assignee, u.username, t.created_at, t.updated_at
		 FROM t JOIN users u ON u.id = t.assignee`

	out, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("task", id)
	}
	if err != nil {
		return nil, pgError("update task", "user", assigneeOf(spec), err)
	}
	return out, nil
}

// Assign points task id at userID.
func (s *PgStore) Assign(ctx context.Context, id, userID string) (*Task, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	out, err := scanTask(s.pool.QueryRow(ctx, `
		WITH t AS (UPDATE tasks SET assignee = $1, updated_at = $2 WHERE id = $3 RETURNING *)
		SELECT t.id, t.title, t.about, t.status, t.priority, t.due, t.estimate, t.tracked,
		       t.assignee, u.username, t.created_at, t.updated_at
		FROM t JOIN users u ON u.id = t.assignee`, userID, now, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("task", id)
	}
	if err != nil {
		return nil, pgError("assign task", "user", userID, err)
	}
	return out, nil
}

// Delete removes task id.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return errs.Persistence("delete task", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("task", id)
	}
	return nil
}

func (s *PgStore) list(ctx context.Context, op, query string, args ...any) ([]Task, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

// pgError maps constraint violations on the assignee to errs.ErrForeignKey
// and wraps everything else.
func pgError(op, kind, ref string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23503":
			return errs.ForeignKey(kind, ref)
		case pgErr.Code == "23502" && pgErr.ColumnName == "assignee":
			return errs.ForeignKey(kind, ref)
		}
	}
	return errs.Persistence(op, err)
}
