package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

// WorkspaceRepo stores workspaces and the directories mounted into them.
type WorkspaceRepo struct {
	g *Guard
}

func workspaceExistsTx(ctx context.Context, q queryer, id int64) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspaces WHERE id = ?`, id).Scan(&n); err != nil {
		return types.Internal("loading workspace", err)
	}
	if n == 0 {
		return types.NotFound("workspace %d", id)
	}
	return nil
}

func queryWorkspaces(ctx context.Context, q queryer, query string, args ...any) ([]types.Workspace, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Internal("querying workspaces", err)
	}
	defer rows.Close()

	var out []types.Workspace
	for rows.Next() {
		var w types.Workspace
		if err := rows.Scan(&w.ID, &w.Name); err != nil {
			return nil, types.Internal("scanning workspace", err)
		}
		out = append(out, w)
	}
	return out, types.Internal("iterating workspaces", rows.Err())
}

func queryDirs(ctx context.Context, q queryer, query string, args ...any) ([]types.WorkspaceDir, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Internal("querying workspace dirs", err)
	}
	defer rows.Close()

	var out []types.WorkspaceDir
	for rows.Next() {
		var d types.WorkspaceDir
		if err := rows.Scan(&d.ID, &d.WorkspaceID, &d.Path, &d.Collapsed); err != nil {
			return nil, types.Internal("scanning workspace dir", err)
		}
		out = append(out, d)
	}
	return out, types.Internal("iterating workspace dirs", rows.Err())
}

// List returns all workspaces, fixed ones first.
func (r *WorkspaceRepo) List(ctx context.Context) ([]types.Workspace, error) {
	var out []types.Workspace
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		out, err = queryWorkspaces(ctx, c.DB, `SELECT id, name FROM workspaces ORDER BY id`)
		return err
	})
	return out, err
}

// Create adds a user workspace. A taken name yields Conflict.
func (r *WorkspaceRepo) Create(ctx context.Context, name string) (*types.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.InvalidInput("workspace name must not be empty")
	}
	var w *types.Workspace
	err := r.g.Do(ctx, func(c *Conn) error {
		res, err := c.DB.ExecContext(ctx, `INSERT INTO workspaces (name) VALUES (?)`, name)
		if err != nil {
			return wrap("creating workspace "+name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return types.Internal("reading workspace id", err)
		}
		w = &types.Workspace{ID: id, Name: name}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Rename changes a user workspace's name. Fixed workspaces are immutable.
func (r *WorkspaceRepo) Rename(ctx context.Context, id int64, name string) error {
	if types.IsFixedWorkspace(id) {
		return types.InvalidInput("workspace %q cannot be renamed", types.FixedWorkspaces[id])
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return types.InvalidInput("workspace name must not be empty")
	}
	return r.g.Do(ctx, func(c *Conn) error {
		res, err := c.DB.ExecContext(ctx, `UPDATE workspaces SET name = ? WHERE id = ?`, name, id)
		if err != nil {
			return wrap("renaming workspace", err)
		}
		return requireAffected(res, "workspace %d", id)
	})
}

// Delete removes a user workspace together with all of its items and
// directories. Fixed workspaces cannot be deleted.
func (r *WorkspaceRepo) Delete(ctx context.Context, id int64) error {
	if types.IsFixedWorkspace(id) {
		return types.InvalidInput("workspace %q cannot be deleted", types.FixedWorkspaces[id])
	}
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		if err := workspaceExistsTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE workspace_id = ?`, id); err != nil {
			return types.Internal("deleting workspace items", err)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
		return types.Internal("deleting workspace", err)
	})
}

// ListDirs returns the directories mounted into workspace ordered by path.
func (r *WorkspaceRepo) ListDirs(ctx context.Context, workspace int64) ([]types.WorkspaceDir, error) {
	var out []types.WorkspaceDir
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		out, err = queryDirs(ctx, c.DB,
			`SELECT id, workspace_id, path, collapsed FROM workspace_dirs
             WHERE workspace_id = ? ORDER BY path`, workspace)
		return err
	})
	return out, err
}

// cleanDirPath drops trailing separators, keeping a bare root intact.
func cleanDirPath(p string) string {
	trimmed := strings.TrimRight(p, `/\`)
	if trimmed == "" {
		return p
	}
	return trimmed
}

// AddDir mounts path into workspace. Adding the same path again returns
// the existing entry.
func (r *WorkspaceRepo) AddDir(ctx context.Context, workspace int64, path string) (*types.WorkspaceDir, error) {
	path = cleanDirPath(strings.TrimSpace(path))
	if path == "" {
		return nil, types.InvalidInput("directory path must not be empty")
	}
	if !filepath.IsAbs(path) && !strings.HasPrefix(path, `\\`) {
		return nil, types.InvalidInput("directory path %q is not absolute", path)
	}

	var dir *types.WorkspaceDir
	err := inTx(ctx, r.g, func(tx *sql.Tx) error {
		if err := workspaceExistsTx(ctx, tx, workspace); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO workspace_dirs (workspace_id, path) VALUES (?, ?)`,
			workspace, path); err != nil {
			return types.Internal("adding workspace dir", err)
		}
		d := types.WorkspaceDir{WorkspaceID: workspace, Path: path}
		err := tx.QueryRowContext(ctx,
			`SELECT id, collapsed FROM workspace_dirs WHERE workspace_id = ? AND path = ?`,
			workspace, path).Scan(&d.ID, &d.Collapsed)
		if err != nil {
			return types.Internal("loading workspace dir", err)
		}
		dir = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// RemoveDir unmounts a directory.
func (r *WorkspaceRepo) RemoveDir(ctx context.Context, id int64) error {
	return r.g.Do(ctx, func(c *Conn) error {
		res, err := c.DB.ExecContext(ctx, `DELETE FROM workspace_dirs WHERE id = ?`, id)
		if err != nil {
			return types.Internal("removing workspace dir", err)
		}
		return requireAffected(res, "workspace dir %d", id)
	})
}

// SetDirCollapsed sets the collapsed flag of a mounted directory.
func (r *WorkspaceRepo) SetDirCollapsed(ctx context.Context, id int64, collapsed bool) error {
	return r.g.Do(ctx, func(c *Conn) error {
		res, err := c.DB.ExecContext(ctx,
			`UPDATE workspace_dirs SET collapsed = ? WHERE id = ?`, boolInt(collapsed), id)
		if err != nil {
			return types.Internal("updating workspace dir", err)
		}
		return requireAffected(res, "workspace dir %d", id)
	})
}
