package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesim/gradesim/internal/testutil"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	for _, table := range []string{"runs", "users"} {
		rows, err := store.DB().Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s", table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(ctx, path))
	run, err := store.CreateRun(ctx, RunKindGenerate, 42, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(ctx, path))
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.Seed)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	_, err := store.CreateRun(ctx, RunKindLoad, 0, nil)
	assert.Error(t, err)
	_, err = store.ListRuns(ctx, 10)
	assert.Error(t, err)
	_, err = store.GetUser(ctx, "a@b.c")
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		status RunStatus
		errMsg string
	}{
		{"completed", RunStatusCompleted, ""},
		{"failed with error", RunStatusFailed, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := setupTestStore(t)

			params := map[string]int{"n_students": 10}
			run, err := store.CreateRun(ctx, RunKindGenerate, 1<<63+5, params)
			require.NoError(t, err)
			assert.Equal(t, RunStatusRunning, run.Status)
			assert.NotEmpty(t, run.ID)

			require.NoError(t, store.CompleteRun(ctx, run.ID, tt.status, tt.errMsg))

			got, err := store.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.errMsg, got.Error)
			assert.Equal(t, uint64(1<<63+5), got.Seed)
			assert.JSONEq(t, `{"n_students":10}`, got.ParamsJSON)
			require.NotNil(t, got.CompletedAt)
			assert.False(t, got.CompletedAt.Before(got.StartedAt))
		})
	}
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = store.CompleteRun(ctx, "missing", RunStatusCompleted, "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, kind := range []RunKind{RunKindGenerate, RunKindLoad, RunKindTrain} {
		_, err := store.CreateRun(ctx, kind, 1, nil)
		require.NoError(t, err)
	}

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_Users(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetUser(ctx, "ada@example.com")
	assert.True(t, errors.Is(err, ErrNotFound))

	u, err := store.GetOrCreateUser(ctx, " Ada@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, DefaultRole, u.Role)

	again, err := store.GetOrCreateUser(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	_, err = store.DB().Exec(`UPDATE users SET role = 'faculty' WHERE email = ?`, "ada@example.com")
	require.NoError(t, err)
	promoted, err := store.GetOrCreateUser(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "faculty", promoted.Role)

	_, err = store.GetOrCreateUser(ctx, "  ")
	assert.Error(t, err)
}
