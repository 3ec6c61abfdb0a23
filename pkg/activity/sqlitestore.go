package activity

import (
	"context"
	"database/sql"
	"fmt"

	"taskviewer/pkg/errs"
)

// SQLiteStore is an embedded SQLite-backed journal.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureTable creates the task_activity table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS task_activity (
			id         TEXT PRIMARY KEY,
			task_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			actor      TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_task_activity_task ON task_activity(task_id, created_at)`)
	return err
}

// Append records a new entry.
func (s *SQLiteStore) Append(ctx context.Context, taskID, eventType, actor string, content map[string]any) (*Event, error) {
	e, contentJSON, err := newEvent(taskID, eventType, actor, content)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_activity (id, task_id, type, actor, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.Type, e.Actor, string(contentJSON), e.CreatedAt)
	if err != nil {
		return nil, errs.Persistence("append activity", err)
	}
	return e, nil
}

// ByTask returns a task's entries in chronological order.
func (s *SQLiteStore) ByTask(ctx context.Context, taskID string, limit int) ([]Event, error) {
	return s.scanMany(ctx, "activity by task", `
		SELECT id, task_id, type, actor, content, created_at
		FROM task_activity WHERE task_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, taskID, limit)
}

// Recent returns the most recent entries in reverse chronological order.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.scanMany(ctx, "recent activity", `
		SELECT id, task_id, type, actor, content, created_at
		FROM task_activity ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) scanMany(ctx context.Context, op, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Persistence(op, err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var contentJSON string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Type, &e.Actor, &contentJSON, &e.CreatedAt); err != nil {
			return nil, errs.Persistence(op, err)
		}
		e.Content = decodeContent([]byte(contentJSON))
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(op, fmt.Errorf("row iteration: %w", err))
	}
	return events, nil
}
