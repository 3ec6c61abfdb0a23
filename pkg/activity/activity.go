// Package activity keeps an append-only journal of task mutations.
package activity

import (
	"context"
	"time"
)

// Event types written by the task service.
const (
	TaskCreated    = "task.created"
	TaskReplicated = "task.replicated"
	TaskUpdated    = "task.updated"
	TaskTracked    = "task.tracked"
	TaskClosed     = "task.closed"
	TaskAssigned   = "task.assigned"
	TaskDeleted    = "task.deleted"
)

// Event is one journal entry.
type Event struct {
	ID        string         `json:"id"` // UUID v7 (time-ordered)
	TaskID    string         `json:"task_id"`
	Type      string         `json:"type"`
	Actor     string         `json:"actor"` // username of the principal
	Content   map[string]any `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store is the contract for journal persistence. Entries outlive the
// tasks they describe.
type Store interface {
	Append(ctx context.Context, taskID, eventType, actor string, content map[string]any) (*Event, error)
	// ByTask returns a task's entries oldest first.
	ByTask(ctx context.Context, taskID string, limit int) ([]Event, error)
	// Recent returns the latest entries newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
	EnsureTable(ctx context.Context) error
}
