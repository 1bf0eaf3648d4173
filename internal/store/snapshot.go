package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

// Export reads the whole data set of db in one read transaction.
func Export(ctx context.Context, db *sql.DB) (*types.Snapshot, error) {
	snap := &types.Snapshot{TakenAt: time.Now().UTC()}
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		if snap.Workspaces, err = queryWorkspaces(ctx, tx,
			`SELECT id, name FROM workspaces ORDER BY id`); err != nil {
			return err
		}
		if snap.WorkspaceDirs, err = queryDirs(ctx, tx,
			`SELECT id, workspace_id, path, collapsed FROM workspace_dirs ORDER BY id`); err != nil {
			return err
		}
		if snap.Tags, err = queryTags(ctx, tx,
			`SELECT `+tagColumns+` FROM tags ORDER BY id`); err != nil {
			return err
		}
		if snap.TagEdges, err = queryEdges(ctx, tx,
			`SELECT child_tag_id, parent_tag_id, position FROM tag_tags
             ORDER BY parent_tag_id, position, child_tag_id`); err != nil {
			return err
		}
		if snap.Items, err = queryItems(ctx, tx,
			`SELECT `+itemColumns+` FROM items ORDER BY id`); err != nil {
			return err
		}
		if snap.ItemTags, err = queryItemTags(ctx, tx); err != nil {
			return err
		}
		snap.WindowState, err = loadWindowStateTx(ctx, tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("exporting snapshot: %w", err)
	}
	return snap, nil
}

func queryItemTags(ctx context.Context, q queryer) ([]types.ItemTag, error) {
	rows, err := q.QueryContext(ctx, `SELECT item_id, tag_id FROM item_tags ORDER BY item_id, tag_id`)
	if err != nil {
		return nil, types.Internal("querying item tags", err)
	}
	defer rows.Close()

	var out []types.ItemTag
	for rows.Next() {
		var it types.ItemTag
		if err := rows.Scan(&it.ItemID, &it.TagID); err != nil {
			return nil, types.Internal("scanning item tag", err)
		}
		out = append(out, it)
	}
	return out, types.Internal("iterating item tags", rows.Err())
}

// Restore replays snap into db in one transaction. Ids are rebound by the
// target: fixed workspaces map to themselves, other workspaces and tags
// are matched by their unique name, and items are inserted parents first.
// Every field other than the id is preserved. Sibling sets are renumbered
// afterwards in case db already held rows.
func Restore(ctx context.Context, db *sql.DB, snap *types.Snapshot) error {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		wsIDs, err := restoreWorkspaces(ctx, tx, snap)
		if err != nil {
			return err
		}
		tagIDs, err := restoreTags(ctx, tx, snap)
		if err != nil {
			return err
		}
		itemIDs, err := restoreItems(ctx, tx, snap, wsIDs)
		if err != nil {
			return err
		}

		for _, it := range snap.ItemTags {
			item, okItem := itemIDs[it.ItemID]
			tag, okTag := tagIDs[it.TagID]
			if !okItem || !okTag {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`, item, tag); err != nil {
				return types.Internal("restoring item tag", err)
			}
		}

		if snap.WindowState != nil {
			if err := saveWindowStateTx(ctx, tx, *snap.WindowState); err != nil {
				return err
			}
		}
		return renumberAllTx(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("restoring snapshot: %w", err)
	}
	return nil
}

func restoreWorkspaces(ctx context.Context, tx *sql.Tx, snap *types.Snapshot) (map[int64]int64, error) {
	ids := make(map[int64]int64, len(snap.Workspaces))
	for _, w := range snap.Workspaces {
		if types.IsFixedWorkspace(w.ID) {
			ids[w.ID] = w.ID
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO workspaces (name) VALUES (?)`, w.Name); err != nil {
			return nil, types.Internal("restoring workspace", err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM workspaces WHERE name = ?`, w.Name).Scan(&id); err != nil {
			return nil, types.Internal("restoring workspace", err)
		}
		ids[w.ID] = id
	}

	for _, d := range snap.WorkspaceDirs {
		ws, ok := ids[d.WorkspaceID]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workspace_dirs (workspace_id, path, collapsed) VALUES (?, ?, ?)
             ON CONFLICT(workspace_id, path) DO UPDATE SET collapsed = excluded.collapsed`,
			ws, d.Path, boolInt(d.Collapsed)); err != nil {
			return nil, types.Internal("restoring workspace dir", err)
		}
	}
	return ids, nil
}

func restoreTags(ctx context.Context, tx *sql.Tx, snap *types.Snapshot) (map[int64]int64, error) {
	ids := make(map[int64]int64, len(snap.Tags))
	for _, t := range snap.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (name, color, position) VALUES (?, ?, ?)
             ON CONFLICT(name) DO UPDATE SET color = excluded.color, position = excluded.position`,
			t.Name, nullString(t.Color), t.Position); err != nil {
			return nil, types.Internal("restoring tag", err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, t.Name).Scan(&id); err != nil {
			return nil, types.Internal("restoring tag", err)
		}
		ids[t.ID] = id
	}

	for _, e := range snap.TagEdges {
		child, okChild := ids[e.ChildID]
		parent, okParent := ids[e.ParentID]
		if !okChild || !okParent || child == parent {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tag_tags (child_tag_id, parent_tag_id, position) VALUES (?, ?, ?)`,
			child, parent, e.Position); err != nil {
			return nil, types.Internal("restoring tag edge", err)
		}
	}
	return ids, nil
}

// restoreItems inserts items in rounds, each round taking the items whose
// parent is already mapped. Items whose parent never appears are restored
// as roots.
func restoreItems(ctx context.Context, tx *sql.Tx, snap *types.Snapshot, wsIDs map[int64]int64) (map[int64]int64, error) {
	ids := make(map[int64]int64, len(snap.Items))
	pending := make([]types.Item, 0, len(snap.Items))
	present := make(map[int64]bool, len(snap.Items))
	for _, it := range snap.Items {
		pending = append(pending, it)
		present[it.ID] = true
	}

	for len(pending) > 0 {
		var next []types.Item
		for _, it := range pending {
			var parent *int64
			if it.ParentID != nil && present[*it.ParentID] {
				mapped, ok := ids[*it.ParentID]
				if !ok {
					next = append(next, it)
					continue
				}
				parent = &mapped
			}
			ws, ok := wsIDs[it.WorkspaceID]
			if !ok {
				ws = types.WorkspaceTodos
			}
			id, err := insertItemTx(ctx, tx, it, parent, ws)
			if err != nil {
				return nil, err
			}
			ids[it.ID] = id
		}
		if len(next) == len(pending) {
			// Parent cycle among the rest; break it by restoring them as roots.
			for i := range next {
				delete(present, next[i].ID)
			}
		}
		pending = next
	}
	return ids, nil
}

func insertItemTx(ctx context.Context, tx *sql.Tx, it types.Item, parent *int64, ws int64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO items (text, completed, item_type, memo, target_count, current_count,
            parent_id, position, collapsed, workspace_id, url, summary, content_hash,
            quick_hash, last_known_path, is_dir, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.Text, boolInt(it.Completed), string(types.ParseItemType(string(it.Type))),
		nullString(it.Memo), nullInt(it.TargetCount), it.CurrentCount,
		nullInt64(parent), it.Position, boolInt(it.Collapsed), ws,
		nullString(it.URL), nullString(it.Summary), nullString(it.ContentHash),
		nullString(it.QuickHash), nullString(it.LastKnownPath), boolInt(it.IsDir),
		it.CreatedAt.Unix(), it.UpdatedAt.Unix())
	if err != nil {
		return 0, types.Internal("restoring item", err)
	}
	id, err := res.LastInsertId()
	return id, types.Internal("reading item id", err)
}

// renumberAllTx makes every item sibling set, every tag parent's edges and
// the root tags gapless.
func renumberAllTx(ctx context.Context, tx *sql.Tx) error {
	type scope struct {
		parent    *int64
		workspace int64
	}
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT parent_id, workspace_id FROM items`)
	if err != nil {
		return types.Internal("listing sibling sets", err)
	}
	var scopes []scope
	for rows.Next() {
		var (
			p  sql.NullInt64
			ws int64
		)
		if err := rows.Scan(&p, &ws); err != nil {
			rows.Close()
			return types.Internal("scanning sibling set", err)
		}
		scopes = append(scopes, scope{parent: int64Ptr(p), workspace: ws})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return types.Internal("listing sibling sets", err)
	}
	for _, s := range scopes {
		if err := reindexItemsTx(ctx, tx, s.parent, s.workspace); err != nil {
			return err
		}
	}

	parents, err := edgeIDsTx(ctx, tx, `SELECT DISTINCT parent_tag_id FROM tag_tags`)
	if err != nil {
		return err
	}
	for _, p := range parents {
		if err := reindexEdgesTx(ctx, tx, p); err != nil {
			return err
		}
	}
	return reindexRootsTx(ctx, tx)
}

// WriteSnapshotFile writes snap as indented JSON, atomically.
func WriteSnapshotFile(path string, snap *types.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// ReadSnapshotFile reads a snapshot written by WriteSnapshotFile.
func ReadSnapshotFile(path string) (*types.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return &snap, nil
}
