package store

import (
	"context"
	"database/sql"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

// rootFilter matches tags with no parent edge.
const rootFilter = `id NOT IN (SELECT child_tag_id FROM tag_tags)`

func nextRootPositionTx(ctx context.Context, q queryer, exclude int64) (int, error) {
	var next int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM tags WHERE `+rootFilter+` AND id != ?`,
		exclude).Scan(&next)
	if err != nil {
		return 0, types.Internal("computing next root position", err)
	}
	return next, nil
}

func isRootTx(ctx context.Context, q queryer, id int64) (bool, error) {
	var parents int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tag_tags WHERE child_tag_id = ?`, id).Scan(&parents)
	if err != nil {
		return false, types.Internal("counting tag parents", err)
	}
	return parents == 0, nil
}

// promoteIfRootTx moves a tag that just lost its last parent to the end of
// the root ordering. Its stored position is stale from whenever it was last
// a root.
func promoteIfRootTx(ctx context.Context, q queryer, id int64) error {
	root, err := isRootTx(ctx, q, id)
	if err != nil || !root {
		return err
	}
	pos, err := nextRootPositionTx(ctx, q, id)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `UPDATE tags SET position = ? WHERE id = ?`, pos, id)
	return types.Internal("promoting tag to root", err)
}

// reindexRootsTx renumbers the current root set to 0..n-1 ordered by
// existing position, then id.
func reindexRootsTx(ctx context.Context, q queryer) error {
	return renumberTx(ctx, q,
		`SELECT id, position FROM tags WHERE `+rootFilter+` ORDER BY position, id`, nil,
		func(id int64, pos int) error {
			_, err := q.ExecContext(ctx, `UPDATE tags SET position = ? WHERE id = ?`, pos, id)
			return err
		})
}

// reindexEdgesTx renumbers the child edges of parent to 0..n-1.
func reindexEdgesTx(ctx context.Context, q queryer, parent int64) error {
	return renumberTx(ctx, q,
		`SELECT child_tag_id, position FROM tag_tags WHERE parent_tag_id = ?
         ORDER BY position, child_tag_id`, []any{parent},
		func(child int64, pos int) error {
			_, err := q.ExecContext(ctx,
				`UPDATE tag_tags SET position = ? WHERE child_tag_id = ? AND parent_tag_id = ?`,
				pos, child, parent)
			return err
		})
}

// AddParent adds the edge child -> parent at the end of parent's children.
// Adding an existing edge is a no-op. Self edges and edges that would make
// a tag its own ancestor are rejected with InvalidInput.
func (r *TagRepo) AddParent(ctx context.Context, child, parent int64) error {
	if child == parent {
		return types.InvalidInput("tag %d cannot be its own parent", child)
	}
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		if _, err := getTagTx(ctx, tx, child); err != nil {
			return err
		}
		if _, err := getTagTx(ctx, tx, parent); err != nil {
			return err
		}
		above, err := tagAncestorIDsTx(ctx, tx, parent)
		if err != nil {
			return err
		}
		if above[child] {
			return types.InvalidInput("tag %d is an ancestor of tag %d", child, parent)
		}

		var pos int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM tag_tags WHERE parent_tag_id = ?`,
			parent).Scan(&pos); err != nil {
			return types.Internal("computing edge position", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tag_tags (child_tag_id, parent_tag_id, position) VALUES (?, ?, ?)`,
			child, parent, pos); err != nil {
			return types.Internal("adding tag parent", err)
		}
		// child may have left the root set.
		return reindexRootsTx(ctx, tx)
	})
}

// RemoveParent deletes the edge child -> parent. Removing a missing edge is
// a no-op. A child that loses its last parent joins the end of the roots.
func (r *TagRepo) RemoveParent(ctx context.Context, child, parent int64) error {
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM tag_tags WHERE child_tag_id = ? AND parent_tag_id = ?`, child, parent)
		if err != nil {
			return types.Internal("removing tag parent", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return types.Internal("reading affected rows", err)
		}
		if n > 0 {
			if err := reindexEdgesTx(ctx, tx, parent); err != nil {
				return err
			}
			if err := promoteIfRootTx(ctx, tx, child); err != nil {
				return err
			}
		}
		return reindexRootsTx(ctx, tx)
	})
}

// ParentsOf returns the parents of tag ordered by name.
func (r *TagRepo) ParentsOf(ctx context.Context, tag int64) ([]types.Tag, error) {
	var tags []types.Tag
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		tags, err = queryTags(ctx, c.DB,
			`SELECT t.id, t.name, t.color, t.position FROM tags t
             JOIN tag_tags tt ON tt.parent_tag_id = t.id
             WHERE tt.child_tag_id = ? ORDER BY t.name, t.id`, tag)
		return err
	})
	return tags, err
}

// ChildrenOf returns the children of parent ordered by edge position.
func (r *TagRepo) ChildrenOf(ctx context.Context, parent int64) ([]types.Tag, error) {
	var tags []types.Tag
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		tags, err = queryTags(ctx, c.DB,
			`SELECT t.id, t.name, t.color, t.position FROM tags t
             JOIN tag_tags tt ON tt.child_tag_id = t.id
             WHERE tt.parent_tag_id = ? ORDER BY tt.position, t.id`, parent)
		return err
	})
	return tags, err
}

// EdgesOf returns the child edges of parent ordered by position.
func (r *TagRepo) EdgesOf(ctx context.Context, parent int64) ([]types.TagEdge, error) {
	var edges []types.TagEdge
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		edges, err = queryEdges(ctx, c.DB,
			`SELECT child_tag_id, parent_tag_id, position FROM tag_tags
             WHERE parent_tag_id = ? ORDER BY position, child_tag_id`, parent)
		return err
	})
	return edges, err
}

func queryEdges(ctx context.Context, q queryer, query string, args ...any) ([]types.TagEdge, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Internal("querying tag edges", err)
	}
	defer rows.Close()

	var edges []types.TagEdge
	for rows.Next() {
		var e types.TagEdge
		if err := rows.Scan(&e.ChildID, &e.ParentID, &e.Position); err != nil {
			return nil, types.Internal("scanning tag edge", err)
		}
		edges = append(edges, e)
	}
	return edges, types.Internal("iterating tag edges", rows.Err())
}

// Roots returns the tags with no parent ordered by root position, then name.
func (r *TagRepo) Roots(ctx context.Context) ([]types.Tag, error) {
	var tags []types.Tag
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		tags, err = queryTags(ctx, c.DB,
			`SELECT `+tagColumns+` FROM tags WHERE `+rootFilter+` ORDER BY position, name`)
		return err
	})
	return tags, err
}

// ReindexRoots renumbers the root tags to 0..n-1 without changing their
// order.
func (r *TagRepo) ReindexRoots(ctx context.Context) error {
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		return reindexRootsTx(ctx, tx)
	})
}

// MoveRoot moves a root tag to index pos of the root ordering (clamped to
// the last index). Only roots shift; tags with a parent are outside the
// root ordering.
func (r *TagRepo) MoveRoot(ctx context.Context, id int64, pos int) error {
	if pos < 0 {
		return types.InvalidInput("position %d is negative", pos)
	}
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		if _, err := getTagTx(ctx, tx, id); err != nil {
			return err
		}
		root, err := isRootTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !root {
			return types.InvalidInput("tag %d has a parent and is not in the root ordering", id)
		}
		if err := reindexRootsTx(ctx, tx); err != nil {
			return err
		}

		var old, count int
		if err := tx.QueryRowContext(ctx, `SELECT position FROM tags WHERE id = ?`, id).Scan(&old); err != nil {
			return types.Internal("reading tag position", err)
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE `+rootFilter).Scan(&count); err != nil {
			return types.Internal("counting root tags", err)
		}
		if pos > count-1 {
			pos = count - 1
		}
		if pos == old {
			return nil
		}

		if pos < old {
			_, err = tx.ExecContext(ctx,
				`UPDATE tags SET position = position + 1
                 WHERE `+rootFilter+` AND position >= ? AND position < ? AND id != ?`, pos, old, id)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE tags SET position = position - 1
                 WHERE `+rootFilter+` AND position > ? AND position <= ? AND id != ?`, old, pos, id)
		}
		if err != nil {
			return types.Internal("shifting root tags", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE tags SET position = ? WHERE id = ?`, pos, id); err != nil {
			return types.Internal("moving root tag", err)
		}
		return reindexRootsTx(ctx, tx)
	})
}

// MoveChild places child at pos among the children of parent. Edges at or
// after pos shift down, then the parent's edges are renumbered.
func (r *TagRepo) MoveChild(ctx context.Context, child, parent int64, pos int) error {
	if pos < 0 {
		return types.InvalidInput("position %d is negative", pos)
	}
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tag_tags WHERE child_tag_id = ? AND parent_tag_id = ?`,
			child, parent).Scan(&n); err != nil {
			return types.Internal("loading tag edge", err)
		}
		if n == 0 {
			return types.NotFound("tag %d is not a child of tag %d", child, parent)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE tag_tags SET position = position + 1
             WHERE parent_tag_id = ? AND position >= ? AND child_tag_id != ?`,
			parent, pos, child); err != nil {
			return types.Internal("shifting tag edges", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tag_tags SET position = ? WHERE child_tag_id = ? AND parent_tag_id = ?`,
			pos, child, parent); err != nil {
			return types.Internal("moving tag edge", err)
		}
		return reindexEdgesTx(ctx, tx, parent)
	})
}

// AncestorsOf returns every tag above tag in the DAG, ordered by name.
func (r *TagRepo) AncestorsOf(ctx context.Context, tag int64) ([]types.Tag, error) {
	var tags []types.Tag
	err := r.g.Do(ctx, func(c *Conn) error {
		if _, err := getTagTx(ctx, c.DB, tag); err != nil {
			return err
		}
		var err error
		tags, err = queryTags(ctx, c.DB, tagAncestorsCTE+`
            SELECT `+tagColumns+` FROM tags WHERE id IN (SELECT id FROM ancestors)
            ORDER BY name, id`, tag)
		return err
	})
	return tags, err
}
