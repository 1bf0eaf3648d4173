package store

import (
	"context"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

// descendantsTx walks the subtree below root with an explicit stack and
// returns it in depth-first pre-order, each item once. The seen set stops
// the walk on a corrupted parent cycle.
func descendantsTx(ctx context.Context, q queryer, root int64) ([]types.Item, error) {
	seen := map[int64]bool{root: true}
	var out []types.Item

	pushChildren := func(stack []types.Item, parent int64) ([]types.Item, error) {
		// Reverse order so the first child is popped first.
		children, err := queryItems(ctx, q,
			`SELECT `+itemColumns+` FROM items WHERE parent_id = ? ORDER BY position DESC, id DESC`, parent)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			stack = append(stack, c)
		}
		return stack, nil
	}

	stack, err := pushChildren(nil, root)
	if err != nil {
		return nil, err
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, it)

		if stack, err = pushChildren(stack, it.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// descendantSetCTE selects the id of the bound item and of everything below
// it. UNION (not UNION ALL) makes it terminate on a parent cycle.
const descendantSetCTE = `WITH RECURSIVE subtree(id) AS (
    SELECT id FROM items WHERE id = ?
    UNION
    SELECT i.id FROM items i JOIN subtree s ON i.parent_id = s.id
)`

// descendantIDsTx returns the ids strictly below root.
func descendantIDsTx(ctx context.Context, q queryer, root int64) (map[int64]bool, error) {
	rows, err := q.QueryContext(ctx, descendantSetCTE+` SELECT id FROM subtree WHERE id != ?`, root, root)
	if err != nil {
		return nil, types.Internal("querying descendants", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, types.Internal("scanning descendant", err)
		}
		ids[id] = true
	}
	return ids, types.Internal("iterating descendants", rows.Err())
}

// deleteSubtreeTx deletes root and every item below it in one statement and
// returns the number of items removed. Item-tag edges go with them through
// the foreign key cascade.
func deleteSubtreeTx(ctx context.Context, q queryer, root int64) (int64, error) {
	res, err := q.ExecContext(ctx,
		descendantSetCTE+` DELETE FROM items WHERE id IN (SELECT id FROM subtree)`, root)
	if err != nil {
		return 0, types.Internal("deleting subtree", err)
	}
	n, err := res.RowsAffected()
	return n, types.Internal("reading affected rows", err)
}

// tagAncestorsCTE selects every tag reachable upward from the bound tag
// through parent edges.
const tagAncestorsCTE = `WITH RECURSIVE ancestors(id) AS (
    SELECT parent_tag_id FROM tag_tags WHERE child_tag_id = ?
    UNION
    SELECT tt.parent_tag_id FROM tag_tags tt JOIN ancestors a ON tt.child_tag_id = a.id
)`

// tagAncestorIDsTx returns the ids of every ancestor of tag. tag itself is
// included only if it already lies on a cycle.
func tagAncestorIDsTx(ctx context.Context, q queryer, tag int64) (map[int64]bool, error) {
	rows, err := q.QueryContext(ctx, tagAncestorsCTE+` SELECT id FROM ancestors`, tag)
	if err != nil {
		return nil, types.Internal("querying tag ancestors", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, types.Internal("scanning tag ancestor", err)
		}
		ids[id] = true
	}
	return ids, types.Internal("iterating tag ancestors", rows.Err())
}
