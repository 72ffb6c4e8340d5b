package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ctesplit/internal/testutil"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	for _, table := range []string{"workspaces", "entities"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s should exist", table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	ws, err := store.CreateWorkspace("persisted")
	require.NoError(t, err)
	require.NoError(t, store.PutEntity(ws.ID, testutil.Entity("a", "SELECT 1")))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer reopened.Close()

	got, err := reopened.GetWorkspace("persisted")
	require.NoError(t, err)
	assert.Equal(t, ws.ID, got.ID)

	e, err := reopened.GetEntity(ws.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", e.Body)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteStore_Workspaces(t *testing.T) {
	store := setupTestStore(t)

	ws, err := store.CreateWorkspace("  sales ")
	require.NoError(t, err)
	assert.NotEmpty(t, ws.ID)
	assert.Equal(t, "sales", ws.Name)

	_, err = store.CreateWorkspace("sales")
	assert.ErrorContains(t, err, "already exists")
	_, err = store.CreateWorkspace("")
	assert.Error(t, err)

	_, err = store.CreateWorkspace("finance")
	require.NoError(t, err)

	byID, err := store.GetWorkspace(ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "sales", byID.Name)

	require.NoError(t, store.SaveMain(ws.ID, "report", "SELECT * FROM agg"))
	byName, err := store.GetWorkspace("sales")
	require.NoError(t, err)
	assert.Equal(t, "report", byName.MainName)
	assert.Equal(t, "SELECT * FROM agg", byName.MainSQL)

	list, err := store.ListWorkspaces()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "finance", list[0].Name)

	_, err = store.GetWorkspace("missing")
	assert.ErrorIs(t, err, core.ErrWorkspaceNotFound)
	assert.ErrorIs(t, store.SaveMain("missing", "", ""), core.ErrWorkspaceNotFound)
}

func TestSQLiteStore_Entities(t *testing.T) {
	store := setupTestStore(t)
	ws, err := store.CreateWorkspace("w")
	require.NoError(t, err)
	pool := store.Pool(ws.ID)

	e := &core.Entity{
		Name:          "Stg_Orders",
		Body:          "SELECT * FROM raw",
		Description:   "staged orders",
		Dependencies:  []string{"raw"},
		Columns:       []string{"id"},
		OutputColumns: []string{"id"},
		Recursive:     true,
	}
	require.NoError(t, pool.Put(e))

	got, err := pool.Get("stg_orders")
	require.NoError(t, err)
	assert.Equal(t, "Stg_Orders", got.Name)
	assert.Equal(t, "staged orders", got.Description)
	assert.Equal(t, []string{"raw"}, got.Dependencies)
	assert.Equal(t, []string{"id"}, got.Columns)
	assert.Equal(t, []string{"id"}, got.OutputColumns)
	assert.True(t, got.Recursive)
	assert.False(t, got.UpdatedAt.IsZero())

	// upsert keeps one row per normalized name
	e.Body = "SELECT 2"
	e.Name = "STG_ORDERS"
	require.NoError(t, pool.Put(e))
	list, err := pool.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "SELECT 2", list[0].Body)
	assert.Equal(t, "STG_ORDERS", list[0].Name)

	require.NoError(t, pool.Delete("stg_orders"))
	_, err = pool.Get("stg_orders")
	assert.ErrorIs(t, err, core.ErrEntityNotFound)
	assert.ErrorIs(t, pool.Delete("stg_orders"), core.ErrEntityNotFound)
}

func TestSQLiteStore_ReplaceAndClear(t *testing.T) {
	store := setupTestStore(t)
	ws, _ := store.CreateWorkspace("w")
	other, _ := store.CreateWorkspace("other")
	pool := store.Pool(ws.ID)

	require.NoError(t, pool.Put(testutil.Entity("old", "SELECT 0")))
	require.NoError(t, store.Pool(other.ID).Put(testutil.Entity("kept", "SELECT 9")))

	require.NoError(t, pool.ReplaceAll([]*core.Entity{
		testutil.Entity("a", "SELECT 1"),
		testutil.Entity("b", "SELECT * FROM a", "a"),
	}))
	list, err := pool.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Empty(t, list[0].Dependencies)
	assert.Equal(t, []string{"a"}, list[1].Dependencies)

	require.NoError(t, pool.Clear())
	list, err = pool.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	otherList, err := store.Pool(other.ID).List()
	require.NoError(t, err)
	assert.Len(t, otherList, 1, "pools are isolated per workspace")
}

func TestSQLiteStore_DeleteWorkspaceCascades(t *testing.T) {
	store := setupTestStore(t)
	ws, _ := store.CreateWorkspace("w")
	require.NoError(t, store.Pool(ws.ID).Put(testutil.Entity("a", "SELECT 1")))

	require.NoError(t, store.DeleteWorkspace(ws.ID))
	var n int
	require.NoError(t, store.db.QueryRow(`SELECT count(*) FROM entities`).Scan(&n))
	assert.Zero(t, n)
	assert.ErrorIs(t, store.DeleteWorkspace(ws.ID), core.ErrWorkspaceNotFound)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	_, err := store.ListWorkspaces()
	assert.ErrorIs(t, err, errNotOpen)
	_, err = store.Pool("x").List()
	assert.ErrorIs(t, err, errNotOpen)
	assert.ErrorIs(t, store.Migrate(), errNotOpen)
	assert.NoError(t, store.Close())
}
