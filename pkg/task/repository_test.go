package task

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskviewer/pkg/authority"
	"taskviewer/pkg/errs"
	"taskviewer/pkg/user"
)

// storeFixture is a repository backed by a fresh, empty schema together
// with the user store it joins against.
type storeFixture struct {
	repo  Repository
	users user.Store
}

var ignoreGenerated = cmpopts.IgnoreFields(Task{}, "ID", "Assignee", "CreatedAt", "UpdatedAt")

var due = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func register(t *testing.T, users user.Store, name string, role authority.Role) *user.User {
	t.Helper()
	u, err := users.Register(context.Background(), name, name+"@example.com", "pw-"+name, role)
	require.NoError(t, err)
	return u
}

func mustAdd(t *testing.T, repo Repository, title, username, status string, priority int) *Task {
	t.Helper()
	added, err := repo.Add(context.Background(), &Task{
		Title:    title,
		About:    "about " + title,
		Status:   Status{Value: status, Priority: priority},
		Time:     TimeEstimate{Due: due, Estimate: 90},
		Username: username,
	})
	require.NoError(t, err)
	return added
}

func titles(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

// testRepository runs the repository contract against stores built by newFixture.
func testRepository(t *testing.T, newFixture func(t *testing.T) storeFixture) {
	t.Run("RoundTrip", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		alice := register(t, f.users, "alice", authority.User)

		in := &Task{
			Title:    "Fix bug",
			About:    "the login page 500s",
			Status:   Status{Value: StatusOpen, Priority: 1},
			Time:     TimeEstimate{Due: due, Estimate: 120},
			Username: "alice",
		}
		added, err := f.repo.Add(ctx, in)
		require.NoError(t, err)
		assert.NotEmpty(t, added.ID)
		assert.Equal(t, alice.ID, added.Assignee)

		got, err := f.repo.ByID(ctx, added.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		if diff := cmp.Diff(in, got, ignoreGenerated); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, alice.ID, got.Assignee)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("ByIDMissing", func(t *testing.T) {
		f := newFixture(t)
		got, err := f.repo.ByID(context.Background(), "no-such-task")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("AddUnknownUser", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.repo.Add(context.Background(), &Task{
			Title:    "orphan",
			Status:   Status{Value: StatusOpen, Priority: 1},
			Time:     TimeEstimate{Due: due},
			Username: "ghost",
		})
		assert.ErrorIs(t, err, errs.ErrForeignKey)

		all, err := f.repo.All(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("StoresHostileTextVerbatim", func(t *testing.T) {
		f := newFixture(t)
		register(t, f.users, "alice", authority.User)
		title := `x'); DROP TABLE tasks; --`
		added := mustAdd(t, f.repo, title, "alice", StatusOpen, 1)

		got, err := f.repo.ByID(context.Background(), added.ID)
		require.NoError(t, err)
		assert.Equal(t, title, got.Title)

		none, err := f.repo.ByUsername(context.Background(), "alice' OR '1'='1")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Queries", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		register(t, f.users, "alice", authority.User)
		register(t, f.users, "bob", authority.User)
		mustAdd(t, f.repo, "a1", "alice", StatusOpen, 1)
		mustAdd(t, f.repo, "b1", "bob", StatusInProgress, 3)
		mustAdd(t, f.repo, "a2", "alice", StatusDone, 3)
		mustAdd(t, f.repo, "b2", "bob", StatusOpen, 5)

		all, err := f.repo.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "b1", "a2", "b2"}, titles(all))

		byUser, err := f.repo.ByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, titles(byUser))

		byEmail, err := f.repo.ByEmail(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"b1", "b2"}, titles(byEmail))

		prio, err := f.repo.WithPriority(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"b1", "a2"}, titles(prio))

		status, err := f.repo.WithStatus(ctx, StatusOpen)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "b2"}, titles(status))

		open, err := f.repo.Open(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "b1", "b2"}, titles(open))

		none, err := f.repo.WithPriority(ctx, 4)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("ByFilter", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		register(t, f.users, "alice", authority.User)
		register(t, f.users, "bob", authority.User)
		mustAdd(t, f.repo, "a1", "alice", StatusOpen, 1)
		mustAdd(t, f.repo, "b1", "bob", StatusOpen, 3)
		mustAdd(t, f.repo, "a2", "alice", StatusOpen, 3)
		mustAdd(t, f.repo, "a3", "alice", StatusDone, 3)

		everything, err := f.repo.ByFilter(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, everything, 4)

		spec := FilterSpec{
			{Field: FieldUsername, Op: OpEq, Value: "alice"},
			{Field: FieldPriority, Op: OpEq, Value: 3},
			{Field: FieldStatus, Op: OpEq, Value: StatusOpen},
		}
		got, err := f.repo.ByFilter(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, []string{"a2"}, titles(got))

		byEmail, err := f.repo.ByFilter(ctx, FilterSpec{{Field: FieldEmail, Op: OpEq, Value: "bob@example.com"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"b1"}, titles(byEmail))

		_, err = f.repo.ByFilter(ctx, FilterSpec{{Field: Field("password"), Op: OpEq, Value: "x"}})
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("TrackAccumulates", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		register(t, f.users, "alice", authority.User)
		added := mustAdd(t, f.repo, "t", "alice", StatusOpen, 1)

		for range 2 {
			spec, err := TrackSpec(30, time.Now().UTC())
			require.NoError(t, err)
			_, err = f.repo.ApplyUpdate(ctx, added.ID, spec)
			require.NoError(t, err)
		}
		got, err := f.repo.ByID(ctx, added.ID)
		require.NoError(t, err)
		assert.Equal(t, added.Time.Tracked+60, got.Time.Tracked)
	})

	t.Run("TrackedNeverDecreases", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		register(t, f.users, "alice", authority.User)
		added := mustAdd(t, f.repo, "t", "alice", StatusOpen, 1)

		spec, err := TrackSpec(60, time.Now().UTC())
		require.NoError(t, err)
		_, err = f.repo.ApplyUpdate(ctx, added.ID, spec)
		require.NoError(t, err)

		spec, err = BuildUpdate(UpdateRequest{Tracked: mo.Some(5)}, time.Now().UTC())
		require.NoError(t, err)
		got, err := f.repo.ApplyUpdate(ctx, added.ID, spec)
		require.NoError(t, err)
		assert.Equal(t, 60, got.Time.Tracked)

		spec, err = BuildUpdate(UpdateRequest{Tracked: mo.Some(75)}, time.Now().UTC())
		require.NoError(t, err)
		got, err = f.repo.ApplyUpdate(ctx, added.ID, spec)
		require.NoError(t, err)
		assert.Equal(t, 75, got.Time.Tracked)
	})

	t.Run("ApplyUpdate", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		register(t, f.users, "alice", authority.User)
		bob := register(t, f.users, "bob", authority.User)
		added := mustAdd(t, f.repo, "t", "alice", StatusOpen, 1)

		later := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
		newDue := due.Add(48 * time.Hour)
		spec := UpdateSpec{
			{Column: ColTitle, Value: "renamed"},
			{Column: ColAssignee, Value: "bob"},
			{Column: ColPriority, Value: 4},
			{Column: ColDue, Value: newDue},
			{Column: ColTracked, Op: OpRaise, Value: 15},
			{Column: ColUpdated, Value: later},
		}
		got, err := f.repo.ApplyUpdate(ctx, added.ID, spec)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
		assert.Equal(t, "about t", got.About)
		assert.Equal(t, bob.ID, got.Assignee)
		assert.Equal(t, "bob", got.Username)
		assert.Equal(t, 4, got.Status.Priority)
		assert.Equal(t, StatusOpen, got.Status.Value)
		assert.True(t, got.Time.Due.Equal(newDue))
		assert.Equal(t, 15, got.Time.Tracked)
		assert.True(t, got.UpdatedAt.Equal(later))
		assert.True(t, got.CreatedAt.Equal(added.CreatedAt))
	})

	t.Run("ApplyUpdateUnknownAssignee", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		register(t, f.users, "alice", authority.User)
		added := mustAdd(t, f.repo, "t", "alice", StatusOpen, 1)

		_, err := f.repo.ApplyUpdate(ctx, added.ID, UpdateSpec{
			{Column: ColTitle, Value: "changed"},
			{Column: ColAssignee, Value: "ghost"},
			{Column: ColUpdated, Value: time.Now().UTC()},
		})
		require.ErrorIs(t, err, errs.ErrForeignKey)

		got, err := f.repo.ByID(ctx, added.ID)
		require.NoError(t, err)
		assert.Equal(t, "t", got.Title)
		assert.Equal(t, "alice", got.Username)
	})

	t.Run("ApplyUpdateMissingTask", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.repo.ApplyUpdate(context.Background(), "no-such-task", UpdateSpec{
			{Column: ColStatus, Value: StatusDone},
			{Column: ColUpdated, Value: time.Now().UTC()},
		})
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("CloseLeavesOtherFields", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		register(t, f.users, "alice", authority.User)
		added := mustAdd(t, f.repo, "t", "alice", StatusInProgress, 2)

		got, err := f.repo.ApplyUpdate(ctx, added.ID, UpdateSpec{
			{Column: ColStatus, Value: StatusDone},
			{Column: ColUpdated, Value: time.Now().UTC()},
		})
		require.NoError(t, err)
		assert.Equal(t, StatusDone, got.Status.Value)

		want := *added
		want.Status.Value = StatusDone
		if diff := cmp.Diff(&want, got, cmpopts.IgnoreFields(Task{}, "UpdatedAt")); diff != "" {
			t.Fatalf("close changed more than status (-want +got):\n%s", diff)
		}
	})

	t.Run("Assign", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		alice := register(t, f.users, "alice", authority.User)
		bob := register(t, f.users, "bob", authority.User)
		added := mustAdd(t, f.repo, "t", "alice", StatusOpen, 1)

		got, err := f.repo.Assign(ctx, added.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.Assignee)
		assert.Equal(t, "bob", got.Username)

		_, err = f.repo.Assign(ctx, added.ID, "no-such-user")
		require.ErrorIs(t, err, errs.ErrForeignKey)
		after, err := f.repo.ByID(ctx, added.ID)
		require.NoError(t, err)
		assert.Equal(t, bob.ID, after.Assignee)

		_, err = f.repo.Assign(ctx, "no-such-task", alice.ID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		register(t, f.users, "alice", authority.User)
		added := mustAdd(t, f.repo, "t", "alice", StatusOpen, 1)

		require.NoError(t, f.repo.Delete(ctx, added.ID))
		got, err := f.repo.ByID(ctx, added.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		assert.ErrorIs(t, f.repo.Delete(ctx, added.ID), errs.ErrNotFound)
	})
}
