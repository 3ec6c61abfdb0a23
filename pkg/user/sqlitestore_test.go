package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskviewer/internal/db"
	"taskviewer/pkg/authority"
	"taskviewer/pkg/errs"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s := NewSQLiteStore(conn)
	require.NoError(t, s.EnsureTable(context.Background()))
	return s
}

func TestRegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	u, err := s.Register(ctx, "alice", "alice@example.com", "s3cret", authority.Admin)
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "s3cret", u.Password)
	assert.True(t, u.CheckPassword("s3cret"))
	assert.False(t, u.CheckPassword("wrong"))

	byName, err := s.ByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, u.ID, byName.ID)
	assert.Equal(t, authority.Admin, byName.Role)
	assert.True(t, byName.CheckPassword("s3cret"))

	byEmail, err := s.ByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "alice", byEmail.Username)

	byID, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "alice@example.com", byID.Email)

	assert.Equal(t, authority.Principal{Username: "alice", Roles: []authority.Role{authority.Admin}}, byID.Principal())
}

func TestLookupMissingReturnsNil(t *testing.T) {
	s := newSQLiteStore(t)
	u, err := s.ByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	_, err := s.Register(ctx, "bob", "bob@example.com", "pw", authority.User)
	require.NoError(t, err)

	_, err = s.Register(ctx, "bob", "other@example.com", "pw", authority.User)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Register(ctx, "bobby", "bob@example.com", "pw", authority.User)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestRegisterValidates(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	cases := []struct {
		name, username, email, password string
		role                            authority.Role
	}{
		{"empty username", " ", "a@example.com", "pw", authority.User},
		{"bad email", "a", "nope", "pw", authority.User},
		{"empty password", "a", "a@example.com", "", authority.User},
		{"bad role", "a", "a@example.com", "pw", authority.Role("ROOT")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Register(ctx, tc.username, tc.email, tc.password, tc.role)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}
