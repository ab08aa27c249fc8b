// Package repotest opens throwaway stores for tests in other packages.
package repotest

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	agentchat "github.com/set-night/agentchat"
	"github.com/set-night/agentchat/internal/repository"
)

// NewSQLiteStore returns a migrated SQLite store in a temp dir that is
// closed when the test ends.
func NewSQLiteStore(t testing.TB) *repository.SQLiteStore {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := repository.NewSQLiteStore(ctx, path, repository.PoolConfig{MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	migrations, err := fs.Sub(agentchat.MigrationsFS, "migrations/sqlite")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx, migrations))
	return store
}
