package task

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"taskviewer/pkg/activity"
	"taskviewer/pkg/authority"
	"taskviewer/pkg/errs"
	"taskviewer/pkg/notify"
	"taskviewer/pkg/user"
)

// DefaultNotifyTimeout bounds how long an assignment waits on its
// notification.
const DefaultNotifyTimeout = 3 * time.Second

// UserFinder resolves assignees.
type UserFinder interface {
	Get(ctx context.Context, id string) (*user.User, error)
	ByUsername(ctx context.Context, username string) (*user.User, error)
}

// Service orchestrates task operations. Every method checks the caller's
// roles before touching the repository.
type Service struct {
	tasks    Repository
	users    UserFinder
	notifier notify.Notifier
	journal  activity.Store // optional
	gate     authority.Gate

	Logger        *log.Logger
	Now           func() time.Time
	NotifyTimeout time.Duration
}

// NewService creates a Service. A nil notifier discards notifications and
// a nil journal disables activity recording.
func NewService(tasks Repository, users UserFinder, notifier notify.Notifier, journal activity.Store) *Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Service{
		tasks:         tasks,
		users:         users,
		notifier:      notifier,
		journal:       journal,
		Logger:        log.Default(),
		Now:           func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		NotifyTimeout: DefaultNotifyTimeout,
	}
}

// Add creates a task assigned to n.Username.
func (s *Service) Add(ctx context.Context, p authority.Principal, n NewTask) (*Task, error) {
	if err := s.gate.Check(p, authority.Create); err != nil {
		return nil, err
	}
	t, err := s.add(ctx, n)
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, t.ID, activity.TaskCreated, map[string]any{"title": t.Title, "username": t.Username})
	return t, nil
}

func (s *Service) add(ctx context.Context, n NewTask) (*Task, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return s.tasks.Add(ctx, n.Task())
}

// Replicate copies task id into a new task due one day later with no
// tracked time. The copy keeps no link to the original.
func (s *Service) Replicate(ctx context.Context, p authority.Principal, id string) (*Task, error) {
	if err := s.gate.Check(p, authority.Replicate); err != nil {
		return nil, err
	}
	orig, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := s.add(ctx, NewTask{
		Title:    orig.Title,
		About:    orig.About,
		Username: orig.Username,
		Status:   orig.Status.Value,
		Priority: orig.Status.Priority,
		Due:      orig.Time.Due.AddDate(0, 0, 1),
		Estimate: orig.Time.Estimate,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, t.ID, activity.TaskReplicated, map[string]any{"from": orig.ID})
	return t, nil
}

// Update applies a partial update to task id.
func (s *Service) Update(ctx context.Context, p authority.Principal, id string, req UpdateRequest) (*Task, error) {
	if err := s.gate.Check(p, authority.Update); err != nil {
		return nil, err
	}
	t, err := s.update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, id, activity.TaskUpdated, nil)
	return t, nil
}

func (s *Service) update(ctx context.Context, id string, req UpdateRequest) (*Task, error) {
	spec, err := BuildUpdate(req, s.Now())
	if err != nil {
		return nil, err
	}
	return s.tasks.ApplyUpdate(ctx, id, spec)
}

// Close marks task id done and leaves every other field alone. A closed
// task can be reopened with Update.
func (s *Service) Close(ctx context.Context, p authority.Principal, id string) (*Task, error) {
	if err := s.gate.Check(p, authority.Close); err != nil {
		return nil, err
	}
	t, err := s.update(ctx, id, UpdateRequest{Status: mo.Some(StatusDone)})
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, id, activity.TaskClosed, nil)
	return t, nil
}

// Track adds minutes to the time tracked on task id.
func (s *Service) Track(ctx context.Context, p authority.Principal, id string, minutes int) (*Task, error) {
	if err := s.gate.Check(p, authority.Track); err != nil {
		return nil, err
	}
	spec, err := TrackSpec(minutes, s.Now())
	if err != nil {
		return nil, err
	}
	t, err := s.tasks.ApplyUpdate(ctx, id, spec)
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, id, activity.TaskTracked, map[string]any{"minutes": minutes})
	return t, nil
}

// Assign points task id at the user with userID and notifies them.
func (s *Service) Assign(ctx context.Context, p authority.Principal, id, userID string) (*Task, error) {
	if err := s.gate.Check(p, authority.Assign); err != nil {
		return nil, err
	}
	t, err := s.tasks.Assign(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	switch {
	case err != nil:
		s.Logger.Printf("task: notify assignee of %s: lookup user %s: %v", id, userID, err)
	case u == nil:
		s.Logger.Printf("task: notify assignee of %s: user %s vanished", id, userID)
	default:
		s.notifyAssigned(ctx, u, t)
	}
	s.record(ctx, p, id, activity.TaskAssigned, map[string]any{"username": t.Username})
	return t, nil
}

// AssignTo resolves username and assigns task id to that user. An unknown
// username fails with errs.ErrForeignKey and leaves the task untouched.
func (s *Service) AssignTo(ctx context.Context, p authority.Principal, id, username string) (*Task, error) {
	if err := s.gate.Check(p, authority.Assign); err != nil {
		return nil, err
	}
	u, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.ForeignKey("user", username)
	}
	t, err := s.tasks.Assign(ctx, id, u.ID)
	if err != nil {
		return nil, err
	}
	s.notifyAssigned(ctx, u, t)
	s.record(ctx, p, id, activity.TaskAssigned, map[string]any{"username": u.Username})
	return t, nil
}

// notifyAssigned runs after the assignment is stored. Its outcome never
// reaches the caller.
func (s *Service) notifyAssigned(ctx context.Context, u *user.User, t *Task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.NotifyTimeout)
	defer cancel()

	body := fmt.Sprintf("Task %s was assigned to you", t.Title)
	if err := s.notifier.Send(ctx, *u, "Task assigned to you", body); err != nil {
		s.Logger.Printf("task: notify %s of task %s: %v", u.Username, t.ID, err)
	}
}

// Search parses caller-supplied criteria and returns matching tasks.
func (s *Service) Search(ctx context.Context, p authority.Principal, fields map[string]string) ([]Task, error) {
	if err := s.gate.Check(p, authority.Search); err != nil {
		return nil, err
	}
	c, err := ParseCriteria(fields)
	if err != nil {
		return nil, err
	}
	return s.byCriteria(ctx, c)
}

// ByCriteria returns tasks matching c.
func (s *Service) ByCriteria(ctx context.Context, p authority.Principal, c SearchCriteria) ([]Task, error) {
	if err := s.gate.Check(p, authority.Search); err != nil {
		return nil, err
	}
	return s.byCriteria(ctx, c)
}

func (s *Service) byCriteria(ctx context.Context, c SearchCriteria) ([]Task, error) {
	spec, err := BuildFilter(c)
	if err != nil {
		return nil, err
	}
	return s.tasks.ByFilter(ctx, spec)
}

// ByUsername lists the tasks assigned to username.
func (s *Service) ByUsername(ctx context.Context, p authority.Principal, username string) ([]Task, error) {
	if err := s.gate.Check(p, authority.ByUsername); err != nil {
		return nil, err
	}
	return s.tasks.ByUsername(ctx, username)
}

// Open lists tasks that are not done.
func (s *Service) Open(ctx context.Context, p authority.Principal) ([]Task, error) {
	if err := s.gate.Check(p, authority.Open); err != nil {
		return nil, err
	}
	return s.tasks.Open(ctx)
}

// Get returns task id or an error wrapping errs.ErrNotFound.
func (s *Service) Get(ctx context.Context, p authority.Principal, id string) (*Task, error) {
	if err := s.gate.Check(p, authority.View); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id string) (*Task, error) {
	t, err := s.tasks.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errs.NotFound("task", id)
	}
	return t, nil
}

// Delete removes task id.
func (s *Service) Delete(ctx context.Context, p authority.Principal, id string) error {
	if err := s.gate.Check(p, authority.Delete); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, p, id, activity.TaskDeleted, nil)
	return nil
}

// Activity returns up to limit journal entries for task id, oldest first.
func (s *Service) Activity(ctx context.Context, p authority.Principal, id string, limit int) ([]activity.Event, error) {
	if err := s.gate.Check(p, authority.Activity); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return []activity.Event{}, nil
	}
	return s.journal.ByTask(ctx, id, limit)
}

// RecentActivity returns up to limit journal entries across all tasks.
func (s *Service) RecentActivity(ctx context.Context, p authority.Principal, limit int) ([]activity.Event, error) {
	if err := s.gate.Check(p, authority.Activity); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return []activity.Event{}, nil
	}
	return s.journal.Recent(ctx, limit)
}

func (s *Service) record(ctx context.Context, p authority.Principal, taskID, eventType string, content map[string]any) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Append(ctx, taskID, eventType, p.Username, content); err != nil {
		s.Logger.Printf("task: record %s for %s: %v", eventType, taskID, err)
	}
}
