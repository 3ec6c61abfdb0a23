// Package task holds the task entity, the structured filter and update
// builders, the repository contract with its PostgreSQL and SQLite
// implementations, and the Service that orchestrates task mutations.
package task

import (
	"context"
	"strings"
	"time"

	"taskviewer/pkg/errs"
)

// Status values.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Priority bounds, inclusive.
const (
	MinPriority = 1
	MaxPriority = 5
)

// ValidStatus reports whether s belongs to the closed status set.
func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func checkStatus(s string) error {
	if !ValidStatus(s) {
		return errs.Validation("unknown status %q", s)
	}
	return nil
}

func checkPriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return errs.Validation("priority %d outside %d..%d", p, MinPriority, MaxPriority)
	}
	return nil
}

func checkTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errs.Validation("title is required")
	}
	return nil
}

// Status is a lifecycle label paired with an urgency.
type Status struct {
	Value    string `json:"value"`    // open, in_progress, done
	Priority int    `json:"priority"` // 1 = lowest, 5 = most urgent
}

// TimeEstimate tracks when a task is due and how much time it takes.
type TimeEstimate struct {
	Due      time.Time `json:"due"`
	Estimate int       `json:"estimate"` // planned minutes
	Tracked  int       `json:"tracked"`  // accumulated minutes, only ever incremented
}

// Task represents a unit of work assigned to exactly one user.
type Task struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	About     string       `json:"about"`
	Status    Status       `json:"status"`
	Time      TimeEstimate `json:"time"`
	Assignee  string       `json:"assignee"` // user ID
	Username  string       `json:"username"` // assignee's username
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewTask is the input for creating a task.
type NewTask struct {
	Title    string    `json:"title"`
	About    string    `json:"about"`
	Username string    `json:"username"`
	Status   string    `json:"status"`
	Priority int       `json:"priority"`
	Due      time.Time `json:"due"`
	Estimate int       `json:"estimate"`
}

// Validate checks n, defaulting an empty status to open.
func (n *NewTask) Validate() error {
	if err := checkTitle(n.Title); err != nil {
		return err
	}
	if strings.TrimSpace(n.Username) == "" {
		return errs.Validation("assignee username is required")
	}
	if n.Status == "" {
		n.Status = StatusOpen
	}
	if err := checkStatus(n.Status); err != nil {
		return err
	}
	if err := checkPriority(n.Priority); err != nil {
		return err
	}
	if n.Estimate < 0 {
		return errs.Validation("estimate %d must not be negative", n.Estimate)
	}
	return nil
}

// Task converts n into an unsaved Task with nothing tracked yet.
func (n NewTask) Task() *Task {
	return &Task{
		Title:    n.Title,
		About:    n.About,
		Status:   Status{Value: n.Status, Priority: n.Priority},
		Time:     TimeEstimate{Due: n.Due, Estimate: n.Estimate},
		Username: n.Username,
	}
}

// Repository is the contract for task persistence. Every list is ordered
// by creation time. Failures other than the errs kinds are reported as
// *errs.PersistenceError.
type Repository interface {
	// ByID returns the task or nil when absent.
	ByID(ctx context.Context, id string) (*Task, error)
	ByUsername(ctx context.Context, username string) ([]Task, error)
	ByEmail(ctx context.Context, email string) ([]Task, error)
	WithPriority(ctx context.Context, priority int) ([]Task, error)
	WithStatus(ctx context.Context, status string) ([]Task, error)
	// Open returns every task that is not done.
	Open(ctx context.Context) ([]Task, error)
	All(ctx context.Context) ([]Task, error)
	// ByFilter returns tasks matching every clause; an empty spec matches all.
	ByFilter(ctx context.Context, spec FilterSpec) ([]Task, error)

	// Add inserts t, resolving t.Username to the assignee. Unknown
	// usernames fail with errs.ErrForeignKey.
	Add(ctx context.Context, t *Task) (*Task, error)
	// ApplyUpdate applies spec to the task with id in one statement.
	ApplyUpdate(ctx context.Context, id string, spec UpdateSpec) (*Task, error)
	// Assign points the task at userID.
	Assign(ctx context.Context, id, userID string) (*Task, error)
	Delete(ctx context.Context, id string) error

	EnsureTable(ctx context.Context) error
}
