package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskviewer/pkg/errs"
)

// PgStore is a PostgreSQL-backed journal.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the task_activity table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS task_activity (
			id         TEXT PRIMARY KEY,
			task_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			actor      TEXT NOT NULL DEFAULT '',
			content    JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_task_activity_task ON task_activity(task_id, created_at)`)
	return err
}

// Append records a new entry.
func (s *PgStore) Append(ctx context.Context, taskID, eventType, actor string, content map[string]any) (*Event, error) {
	e, contentJSON, err := newEvent(taskID, eventType, actor, content)
	if err != nil {
		return nil, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO task_activity (id, task_id, type, actor, content, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		e.ID, e.TaskID, e.Type, e.Actor, string(contentJSON), e.CreatedAt)
	if err != nil {
		return nil, errs.Persistence("append activity", err)
	}
	return e, nil
}

// ByTask returns a task's entries in chronological order.
func (s *PgStore) ByTask(ctx context.Context, taskID string, limit int) ([]Event, error) {
	return s.scanMany(ctx, "activity by task", `
		SELECT id, task_id, type, actor, content, created_at
		FROM task_activity WHERE task_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2`, taskID, limit)
}

// Recent returns the most recent entries in reverse chronological order.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.scanMany(ctx, "recent activity", `
		SELECT id, task_id, type, actor, content, created_at
		FROM task_activity ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (s *PgStore) scanMany(ctx context.Context, op, query string, args ...any) ([]Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Persistence(op, err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var contentJSON []byte
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Type, &e.Actor, &contentJSON, &e.CreatedAt); err != nil {
			return nil, errs.Persistence(op, err)
		}
		e.Content = decodeContent(contentJSON)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(op, fmt.Errorf("row iteration: %w", err))
	}
	return events, nil
}

func newEvent(taskID, eventType, actor string, content map[string]any) (*Event, []byte, error) {
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal content: %w", err)
	}
	return &Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TaskID:    taskID,
		Type:      eventType,
		Actor:     actor,
		Content:   content,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}, contentJSON, nil
}

func decodeContent(raw []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}
