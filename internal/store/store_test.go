package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskviewer/internal/config"
	"taskviewer/pkg/authority"
)

func TestOpenSQLiteAndBootstrap(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "data", "tasks.db")

	st, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.EnsureTables(ctx))
	require.NoError(t, st.EnsureTables(ctx), "tables are created idempotently")

	admin := config.Admin{Username: "root", Password: "hunter2"}
	created, err := st.BootstrapAdmin(ctx, admin)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = st.BootstrapAdmin(ctx, admin)
	require.NoError(t, err)
	assert.False(t, created)

	u, err := st.Users.ByUsername(ctx, "root")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, authority.Admin, u.Role)
	assert.Equal(t, "root@localhost", u.Email)
	assert.True(t, u.CheckPassword("hunter2"))

	created, err = st.BootstrapAdmin(ctx, config.Admin{})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Driver = "mysql"
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
