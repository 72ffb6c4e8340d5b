package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// CreateWorkspace creates an empty workspace. Names are unique.
func (s *SQLiteStore) CreateWorkspace(name string) (*core.Workspace, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("workspace name is required")
	}

	now := time.Now().UTC()
	ws := &core.Workspace{ID: generateID(), Name: name, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO workspaces (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		ws.ID, ws.Name, ws.CreatedAt, ws.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("workspace %q already exists", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return ws, nil
}

// GetWorkspace finds a workspace by ID or name.
func (s *SQLiteStore) GetWorkspace(ref string) (*core.Workspace, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	ws := &core.Workspace{}
	err := s.db.QueryRowContext(ctx(),
		`SELECT id, name, main_name, main_sql, created_at, updated_at
		 FROM workspaces WHERE id = ? OR name = ? LIMIT 1`,
		ref, ref,
	).Scan(&ws.ID, &ws.Name, &ws.MainName, &ws.MainSQL, &ws.CreatedAt, &ws.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrWorkspaceNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

// ListWorkspaces returns all workspaces ordered by name.
func (s *SQLiteStore) ListWorkspaces() ([]*core.Workspace, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	rows, err := s.db.QueryContext(ctx(),
		`SELECT id, name, main_name, main_sql, created_at, updated_at FROM workspaces ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var out []*core.Workspace
	for rows.Next() {
		ws := &core.Workspace{}
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.MainName, &ws.MainSQL, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// SaveMain stores the main query of a workspace.
func (s *SQLiteStore) SaveMain(workspaceID, name, sqlText string) error {
	if s.db == nil {
		return errNotOpen
	}
	return saveMain(s.db, workspaceID, name, sqlText)
}

func saveMain(db execer, workspaceID, name, sqlText string) error {
	res, err := db.Exec(
		`UPDATE workspaces SET main_name = ?, main_sql = ?, updated_at = ? WHERE id = ?`,
		name, sqlText, time.Now().UTC(), workspaceID,
	)
	if err != nil {
		return fmt.Errorf("failed to save main query: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrWorkspaceNotFound, workspaceID)
	}
	return nil
}

// DeleteWorkspace removes a workspace and, by cascade, its entities.
func (s *SQLiteStore) DeleteWorkspace(workspaceID string) error {
	if s.db == nil {
		return errNotOpen
	}
	res, err := s.db.ExecContext(ctx(), `DELETE FROM workspaces WHERE id = ?`, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrWorkspaceNotFound, workspaceID)
	}
	return nil
}
