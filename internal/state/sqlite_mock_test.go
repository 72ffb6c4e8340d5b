package state

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ctesplit/internal/testutil"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

func mockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	store.OpenWithDB(db)
	t.Cleanup(func() { _ = db.Close() })
	return store, mock
}

func TestSQLiteStore_QueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(mock sqlmock.Sqlmock)
		call   func(s *SQLiteStore) error
		errMsg string
	}{
		{
			name: "list entities",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM entities").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				_, err := s.ListEntities("ws")
				return err
			},
			errMsg: "failed to list entities",
		},
		{
			name: "get workspace",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM workspaces").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				_, err := s.GetWorkspace("ws")
				return err
			},
			errMsg: "failed to get workspace",
		},
		{
			name: "put entity",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO entities").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				return s.PutEntity("ws", testutil.Entity("a", "SELECT 1"))
			},
			errMsg: "failed to put entity",
		},
		{
			name: "create workspace",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO workspaces").WillReturnError(assert.AnError)
			},
			call: func(s *SQLiteStore) error {
				_, err := s.CreateWorkspace("ws")
				return err
			},
			errMsg: "failed to create workspace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := mockStore(t)
			tt.setup(mock)

			err := tt.call(store)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.ErrorIs(t, err, assert.AnError)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLiteStore_ReplaceRollsBack(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM entities").WithArgs("ws").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO entities").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO entities").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.ReplaceEntities("ws", []*core.Entity{
		testutil.Entity("a", "SELECT 1"),
		testutil.Entity("b", "SELECT 2"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to insert entity "b"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_DeleteMissingEntity(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectExec("DELETE FROM entities").WithArgs("ws", "gone").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteEntity("ws", "Gone")
	assert.ErrorIs(t, err, core.ErrEntityNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_CorruptEntityColumns(t *testing.T) {
	columns := []string{"name", "body", "description", "dependencies", "columns", "output_columns", "recursive", "quoted", "updated_at"}
	tests := []struct {
		name   string
		row    []driver.Value
		errMsg string
	}{
		{
			name:   "dependencies",
			row:    []driver.Value{"a", "SELECT 1", "", "[orders", "[]", "[]", false, false, time.Now()},
			errMsg: `entity "a" has corrupt dependencies`,
		},
		{
			name:   "columns",
			row:    []driver.Value{"a", "SELECT 1", "", "[]", "{}", "[]", false, false, time.Now()},
			errMsg: `entity "a" has corrupt columns`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := mockStore(t)
			mock.ExpectQuery("SELECT (.+) FROM entities").
				WillReturnRows(sqlmock.NewRows(columns).AddRow(tt.row...))

			_, err := store.ListEntities("ws")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLiteStore_ReplaceWorkspaceRollsBack(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM entities").WithArgs("ws").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO entities").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE workspaces").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.ReplaceWorkspace("ws", "main", "SELECT * FROM a", []*core.Entity{
		testutil.Entity("a", "SELECT 1"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save main query")
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
