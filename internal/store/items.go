package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

const itemColumns = `id, text, completed, item_type, memo, target_count, current_count,
    parent_id, position, collapsed, workspace_id, url, summary, content_hash,
    quick_hash, last_known_path, is_dir, created_at, updated_at`

// siblingFilter matches the children of one (parent, workspace) pair. IS
// compares NULL to NULL, so a nil parent selects the workspace's roots.
const siblingFilter = `parent_id IS ? AND workspace_id = ?`

// ItemRepo maintains the item tree. Positions among the children of each
// (parent, workspace) pair are kept at 0..n-1 after every structural change.
type ItemRepo struct {
	g   *Guard
	now func() time.Time
}

func scanItem(s rowScanner) (*types.Item, error) {
	var (
		it                              types.Item
		itemType                        string
		memo, url, summary, contentHash sql.NullString
		quickHash, lastKnownPath        sql.NullString
		targetCount, parentID           sql.NullInt64
		completed, collapsed, isDir     bool
		createdAt, updatedAt            int64
	)
	err := s.Scan(&it.ID, &it.Text, &completed, &itemType, &memo, &targetCount,
		&it.CurrentCount, &parentID, &it.Position, &collapsed, &it.WorkspaceID,
		&url, &summary, &contentHash, &quickHash, &lastKnownPath, &isDir,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	it.Completed = completed
	it.Collapsed = collapsed
	it.IsDir = isDir
	it.Type = types.ParseItemType(itemType)
	it.Memo = stringPtr(memo)
	it.TargetCount = intPtr(targetCount)
	it.ParentID = int64Ptr(parentID)
	it.URL = stringPtr(url)
	it.Summary = stringPtr(summary)
	it.ContentHash = stringPtr(contentHash)
	it.QuickHash = stringPtr(quickHash)
	it.LastKnownPath = stringPtr(lastKnownPath)
	it.CreatedAt = unixTime(createdAt)
	it.UpdatedAt = unixTime(updatedAt)
	return &it, nil
}

func queryItems(ctx context.Context, q queryer, query string, args ...any) ([]types.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Internal("querying items", err)
	}
	defer rows.Close()

	var items []types.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, types.Internal("scanning item", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Internal("iterating items", err)
	}
	return items, nil
}

func getItemTx(ctx context.Context, q queryer, id int64) (*types.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFound("item %d", id)
	}
	if err != nil {
		return nil, types.Internal("loading item", err)
	}
	return it, nil
}

func findItemTx(ctx context.Context, q queryer, what, where string, args ...any) (*types.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE `+where+` ORDER BY id LIMIT 1`, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFound("item with %s", what)
	}
	if err != nil {
		return nil, types.Internal("finding item", err)
	}
	return it, nil
}

// resolveScope returns the workspace whose sibling set parent belongs to.
// A non-nil parent must exist and dictates the workspace.
func resolveScope(ctx context.Context, q queryer, parent *int64, workspace int64) (int64, error) {
	if parent != nil {
		p, err := getItemTx(ctx, q, *parent)
		if err != nil {
			return 0, err
		}
		return p.WorkspaceID, nil
	}
	if workspace == 0 {
		workspace = types.WorkspaceTodos
	}
	if err := workspaceExistsTx(ctx, q, workspace); err != nil {
		return 0, err
	}
	return workspace, nil
}

func nextPositionTx(ctx context.Context, q queryer, parent *int64, workspace int64) (int, error) {
	var next int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM items WHERE `+siblingFilter,
		nullInt64(parent), workspace).Scan(&next)
	if err != nil {
		return 0, types.Internal("computing next position", err)
	}
	return next, nil
}

// shiftItemsTx opens a gap at from by moving every sibling at or after it
// down one place. exclude is left untouched; pass 0 to shift all.
func shiftItemsTx(ctx context.Context, q queryer, parent *int64, workspace int64, from int, exclude int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET position = position + 1
         WHERE `+siblingFilter+` AND position >= ? AND id != ?`,
		nullInt64(parent), workspace, from, exclude)
	return types.Internal("shifting items", err)
}

// reindexItemsTx renumbers one sibling set to 0..n-1, keeping the current
// order and breaking ties by id.
func reindexItemsTx(ctx context.Context, q queryer, parent *int64, workspace int64) error {
	return renumberTx(ctx, q,
		`SELECT id, position FROM items WHERE `+siblingFilter+` ORDER BY position, id`,
		[]any{nullInt64(parent), workspace},
		func(id int64, pos int) error {
			_, err := q.ExecContext(ctx, `UPDATE items SET position = ? WHERE id = ?`, pos, id)
			return err
		})
}

// Create inserts an item. With a nil Position the item is appended after
// its last sibling; otherwise it is inserted at Position (clamped to the
// end) and later siblings shift down. A parent dictates the workspace.
func (r *ItemRepo) Create(ctx context.Context, n types.NewItem) (*types.Item, error) {
	if strings.TrimSpace(n.Text) == "" {
		return nil, types.InvalidInput("item text must not be empty")
	}
	if n.Position != nil && *n.Position < 0 {
		return nil, types.InvalidInput("position %d is negative", *n.Position)
	}

	var created *types.Item
	err := inTx(ctx, r.g, func(tx *sql.Tx) error {
		ws, err := resolveScope(ctx, tx, n.ParentID, n.WorkspaceID)
		if err != nil {
			return err
		}
		pos, err := nextPositionTx(ctx, tx, n.ParentID, ws)
		if err != nil {
			return err
		}
		if n.Position != nil && *n.Position < pos {
			pos = *n.Position
			if err := shiftItemsTx(ctx, tx, n.ParentID, ws, pos, 0); err != nil {
				return err
			}
		}

		now := r.now().Unix()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO items (text, completed, item_type, memo, target_count, current_count,
                parent_id, position, collapsed, workspace_id, is_dir, created_at, updated_at)
             VALUES (?, 0, ?, ?, ?, 0, ?, ?, 0, ?, 0, ?, ?)`,
			n.Text, string(types.ParseItemType(string(n.Type))), nullString(n.Memo),
			nullInt(n.TargetCount), nullInt64(n.ParentID), pos, ws, now, now)
		if err != nil {
			return types.Internal("inserting item", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return types.Internal("reading item id", err)
		}
		created, err = getItemTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns the item with id.
func (r *ItemRepo) Get(ctx context.Context, id int64) (*types.Item, error) {
	var it *types.Item
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		it, err = getItemTx(ctx, c.DB, id)
		return err
	})
	return it, err
}

// List returns every item, grouped by workspace and parent in position order.
func (r *ItemRepo) List(ctx context.Context) ([]types.Item, error) {
	var items []types.Item
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		items, err = queryItems(ctx, c.DB,
			`SELECT `+itemColumns+` FROM items ORDER BY workspace_id, parent_id, position, id`)
		return err
	})
	return items, err
}

// ListByWorkspace returns the items of one workspace, roots first.
func (r *ItemRepo) ListByWorkspace(ctx context.Context, workspace int64) ([]types.Item, error) {
	var items []types.Item
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		items, err = queryItems(ctx, c.DB,
			`SELECT `+itemColumns+` FROM items WHERE workspace_id = ?
             ORDER BY parent_id, position, id`, workspace)
		return err
	})
	return items, err
}

// Update writes the item's content fields. Parent, position and workspace
// are structural and only change through MoveTo.
func (r *ItemRepo) Update(ctx context.Context, it *types.Item) (*types.Item, error) {
	if strings.TrimSpace(it.Text) == "" {
		return nil, types.InvalidInput("item text must not be empty")
	}
	var updated *types.Item
	err := inTx(ctx, r.g, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE items SET text = ?, completed = ?, item_type = ?, memo = ?,
                target_count = ?, current_count = ?, collapsed = ?, url = ?, summary = ?,
                content_hash = ?, quick_hash = ?, last_known_path = ?, is_dir = ?,
                updated_at = ?
             WHERE id = ?`,
			it.Text, boolInt(it.Completed), string(types.ParseItemType(string(it.Type))),
			nullString(it.Memo), nullInt(it.TargetCount), it.CurrentCount,
			boolInt(it.Collapsed), nullString(it.URL), nullString(it.Summary),
			nullString(it.ContentHash), nullString(it.QuickHash),
			nullString(it.LastKnownPath), boolInt(it.IsDir), r.now().Unix(), it.ID)
		if err != nil {
			return types.Internal("updating item", err)
		}
		if err := requireAffected(res, "item %d", it.ID); err != nil {
			return err
		}
		updated, err = getItemTx(ctx, tx, it.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the item and its whole subtree, then closes the gap it
// left among its siblings.
func (r *ItemRepo) Delete(ctx context.Context, id int64) error {
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		it, err := getItemTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := deleteSubtreeTx(ctx, tx, id); err != nil {
			return err
		}
		return reindexItemsTx(ctx, tx, it.ParentID, it.WorkspaceID)
	})
}

// ChildrenOf returns the direct children of parent in position order. A nil
// parent lists the roots of workspace; otherwise workspace is ignored.
func (r *ItemRepo) ChildrenOf(ctx context.Context, parent *int64, workspace int64) ([]types.Item, error) {
	var items []types.Item
	err := r.g.Do(ctx, func(c *Conn) error {
		ws, err := resolveScope(ctx, c.DB, parent, workspace)
		if err != nil {
			return err
		}
		items, err = childrenTx(ctx, c.DB, parent, ws)
		return err
	})
	return items, err
}

func childrenTx(ctx context.Context, q queryer, parent *int64, workspace int64) ([]types.Item, error) {
	return queryItems(ctx, q,
		`SELECT `+itemColumns+` FROM items WHERE `+siblingFilter+` ORDER BY position, id`,
		nullInt64(parent), workspace)
}

// NextPosition returns one past the highest sibling position under parent,
// or 0 for an empty sibling set.
func (r *ItemRepo) NextPosition(ctx context.Context, parent *int64, workspace int64) (int, error) {
	var next int
	err := r.g.Do(ctx, func(c *Conn) error {
		ws, err := resolveScope(ctx, c.DB, parent, workspace)
		if err != nil {
			return err
		}
		next, err = nextPositionTx(ctx, c.DB, parent, ws)
		return err
	})
	return next, err
}

// MoveTo places the item under newParent at pos. Siblings at or after pos
// shift down, then both the destination and the source sibling sets are
// renumbered. An item cannot move under itself, under one of its own
// descendants, or into another workspace.
func (r *ItemRepo) MoveTo(ctx context.Context, id int64, newParent *int64, pos int) error {
	if pos < 0 {
		return types.InvalidInput("position %d is negative", pos)
	}
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		it, err := getItemTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if newParent != nil {
			if *newParent == id {
				return types.InvalidInput("item %d cannot be its own parent", id)
			}
			parent, err := getItemTx(ctx, tx, *newParent)
			if err != nil {
				return err
			}
			if parent.WorkspaceID != it.WorkspaceID {
				return types.InvalidInput("item %d and parent %d are in different workspaces", id, *newParent)
			}
			below, err := descendantIDsTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if below[*newParent] {
				return types.InvalidInput("item %d cannot move under its descendant %d", id, *newParent)
			}
		}

		if err := shiftItemsTx(ctx, tx, newParent, it.WorkspaceID, pos, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET parent_id = ?, position = ?, updated_at = ? WHERE id = ?`,
			nullInt64(newParent), pos, r.now().Unix(), id); err != nil {
			return types.Internal("moving item", err)
		}
		if err := reindexItemsTx(ctx, tx, newParent, it.WorkspaceID); err != nil {
			return err
		}
		if sameParent(it.ParentID, newParent) {
			return nil
		}
		return reindexItemsTx(ctx, tx, it.ParentID, it.WorkspaceID)
	})
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// DescendantsOf returns every item below id, depth first.
func (r *ItemRepo) DescendantsOf(ctx context.Context, id int64) ([]types.Item, error) {
	var items []types.Item
	err := r.g.Do(ctx, func(c *Conn) error {
		if _, err := getItemTx(ctx, c.DB, id); err != nil {
			return err
		}
		var err error
		items, err = descendantsTx(ctx, c.DB, id)
		return err
	})
	return items, err
}

// ToggleCollapsed flips the collapsed flag and returns the new value.
func (r *ItemRepo) ToggleCollapsed(ctx context.Context, id int64) (bool, error) {
	var collapsed bool
	err := inTx(ctx, r.g, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE items SET collapsed = 1 - collapsed, updated_at = ? WHERE id = ?`,
			r.now().Unix(), id)
		if err != nil {
			return types.Internal("toggling collapsed", err)
		}
		if err := requireAffected(res, "item %d", id); err != nil {
			return err
		}
		err = tx.QueryRowContext(ctx, `SELECT collapsed FROM items WHERE id = ?`, id).Scan(&collapsed)
		return types.Internal("reading collapsed", err)
	})
	return collapsed, err
}

// Reindex renumbers the children of (parent, workspace) to 0..n-1.
func (r *ItemRepo) Reindex(ctx context.Context, parent *int64, workspace int64) error {
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		ws, err := resolveScope(ctx, tx, parent, workspace)
		if err != nil {
			return err
		}
		return reindexItemsTx(ctx, tx, parent, ws)
	})
}

// ResetCompleted clears the completed flag of every item in workspace and
// returns how many items changed.
func (r *ItemRepo) ResetCompleted(ctx context.Context, workspace int64) (int64, error) {
	var n int64
	err := r.g.Do(ctx, func(c *Conn) error {
		res, err := c.DB.ExecContext(ctx,
			`UPDATE items SET completed = 0, updated_at = ? WHERE workspace_id = ? AND completed = 1`,
			r.now().Unix(), workspace)
		if err != nil {
			return types.Internal("resetting completed items", err)
		}
		n, err = res.RowsAffected()
		return types.Internal("reading affected rows", err)
	})
	return n, err
}

// FindByLastKnownPath returns the item last seen at path.
func (r *ItemRepo) FindByLastKnownPath(ctx context.Context, path string) (*types.Item, error) {
	return r.find(ctx, "path "+path, `last_known_path = ?`, path)
}

// FindByQuickHash returns the file or directory item with the quick hash.
func (r *ItemRepo) FindByQuickHash(ctx context.Context, hash string, isDir bool) (*types.Item, error) {
	return r.find(ctx, "quick hash "+hash, `quick_hash = ? AND is_dir = ?`, hash, boolInt(isDir))
}

// FindByContentHash returns the item with the content hash.
func (r *ItemRepo) FindByContentHash(ctx context.Context, hash string) (*types.Item, error) {
	return r.find(ctx, "content hash "+hash, `content_hash = ?`, hash)
}

func (r *ItemRepo) find(ctx context.Context, what, where string, args ...any) (*types.Item, error) {
	var it *types.Item
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		it, err = findItemTx(ctx, c.DB, what, where, args...)
		return err
	})
	return it, err
}
