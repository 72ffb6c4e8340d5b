package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

const entityColumns = `name, body, description, dependencies, columns, output_columns, recursive, quoted, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*core.Entity, error) {
	e := &core.Entity{}
	var deps, cols, outCols string
	if err := row.Scan(&e.Name, &e.Body, &e.Description, &deps, &cols, &outCols, &e.Recursive, &e.Quoted, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeList(deps, &e.Dependencies); err != nil {
		return nil, fmt.Errorf("entity %q has corrupt dependencies: %w", e.Name, err)
	}
	if err := decodeList(cols, &e.Columns); err != nil {
		return nil, fmt.Errorf("entity %q has corrupt columns: %w", e.Name, err)
	}
	if err := decodeList(outCols, &e.OutputColumns); err != nil {
		return nil, fmt.Errorf("entity %q has corrupt output columns: %w", e.Name, err)
	}
	return e, nil
}

func decodeList(raw string, dst *[]string) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(list)
	return string(b)
}

// GetEntity returns one entity of a workspace.
func (s *SQLiteStore) GetEntity(workspaceID, name string) (*core.Entity, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	row := s.db.QueryRowContext(ctx(),
		`SELECT `+entityColumns+` FROM entities WHERE workspace_id = ? AND name_key = ?`,
		workspaceID, core.NormalizeName(name),
	)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrEntityNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

// ListEntities returns the entities of a workspace ordered by name.
func (s *SQLiteStore) ListEntities(workspaceID string) ([]*core.Entity, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	rows, err := s.db.QueryContext(ctx(),
		`SELECT `+entityColumns+` FROM entities WHERE workspace_id = ? ORDER BY name_key`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var out []*core.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PutEntity inserts or replaces one entity of a workspace.
func (s *SQLiteStore) PutEntity(workspaceID string, e *core.Entity) error {
	if s.db == nil {
		return errNotOpen
	}
	if e == nil || e.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if err := putEntity(s.db, workspaceID, e); err != nil {
		return fmt.Errorf("failed to put entity: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func putEntity(db execer, workspaceID string, e *core.Entity) error {
	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO entities (workspace_id, name_key, `+entityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (workspace_id, name_key) DO UPDATE SET
		   name = excluded.name,
		   body = excluded.body,
		   description = excluded.description,
		   dependencies = excluded.dependencies,
		   columns = excluded.columns,
		   output_columns = excluded.output_columns,
		   recursive = excluded.recursive,
		   quoted = excluded.quoted,
		   updated_at = excluded.updated_at`,
		workspaceID, e.Key(), e.Name, e.Body, e.Description,
		encodeList(e.Dependencies), encodeList(e.Columns), encodeList(e.OutputColumns),
		e.Recursive, e.Quoted, updated,
	)
	return err
}

// DeleteEntity removes one entity of a workspace.
func (s *SQLiteStore) DeleteEntity(workspaceID, name string) error {
	if s.db == nil {
		return errNotOpen
	}
	res, err := s.db.ExecContext(ctx(),
		`DELETE FROM entities WHERE workspace_id = ? AND name_key = ?`,
		workspaceID, core.NormalizeName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrEntityNotFound, name)
	}
	return nil
}

// ReplaceEntities swaps the whole pool of a workspace in one transaction.
func (s *SQLiteStore) ReplaceEntities(workspaceID string, entities []*core.Entity) error {
	if s.db == nil {
		return errNotOpen
	}
	tx, err := s.db.BeginTx(ctx(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceEntities(tx, workspaceID, entities); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entities: %w", err)
	}
	return nil
}

// ReplaceWorkspace swaps the pool and the saved main query of a workspace
// in one transaction, so neither is visible without the other.
func (s *SQLiteStore) ReplaceWorkspace(workspaceID, mainName, mainSQL string, entities []*core.Entity) error {
	if s.db == nil {
		return errNotOpen
	}
	tx, err := s.db.BeginTx(ctx(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceEntities(tx, workspaceID, entities); err != nil {
		return err
	}
	if err := saveMain(tx, workspaceID, mainName, mainSQL); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workspace: %w", err)
	}
	return nil
}

func replaceEntities(tx execer, workspaceID string, entities []*core.Entity) error {
	if _, err := tx.Exec(`DELETE FROM entities WHERE workspace_id = ?`, workspaceID); err != nil {
		return fmt.Errorf("failed to clear entities: %w", err)
	}
	for _, e := range entities {
		if err := putEntity(tx, workspaceID, e); err != nil {
			return fmt.Errorf("failed to insert entity %q: %w", e.Name, err)
		}
	}
	return nil
}

// ClearEntities removes every entity of a workspace.
func (s *SQLiteStore) ClearEntities(workspaceID string) error {
	if s.db == nil {
		return errNotOpen
	}
	if _, err := s.db.ExecContext(ctx(), `DELETE FROM entities WHERE workspace_id = ?`, workspaceID); err != nil {
		return fmt.Errorf("failed to clear entities: %w", err)
	}
	return nil
}

// Pool returns the private pool of a workspace as a core.EntityStore.
func (s *SQLiteStore) Pool(workspaceID string) *WorkspacePool {
	return &WorkspacePool{store: s, workspaceID: workspaceID}
}

// WorkspacePool is the private pool of one workspace.
type WorkspacePool struct {
	store       *SQLiteStore
	workspaceID string
}

var _ core.EntityStore = (*WorkspacePool)(nil)

// Get implements core.EntityStore.
func (p *WorkspacePool) Get(name string) (*core.Entity, error) {
	return p.store.GetEntity(p.workspaceID, name)
}

// List implements core.EntityStore.
func (p *WorkspacePool) List() ([]*core.Entity, error) {
	return p.store.ListEntities(p.workspaceID)
}

// Put implements core.EntityStore.
func (p *WorkspacePool) Put(e *core.Entity) error {
	return p.store.PutEntity(p.workspaceID, e)
}

// Delete implements core.EntityStore.
func (p *WorkspacePool) Delete(name string) error {
	return p.store.DeleteEntity(p.workspaceID, name)
}

// ReplaceAll swaps the whole pool.
func (p *WorkspacePool) ReplaceAll(entities []*core.Entity) error {
	return p.store.ReplaceEntities(p.workspaceID, entities)
}

// Clear empties the pool.
func (p *WorkspacePool) Clear() error {
	return p.store.ClearEntities(p.workspaceID)
}
