package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

const tagColumns = `id, name, color, position`

// TagRepo stores tags, the tag DAG and item-tag edges.
//
// Two position spaces exist: the position of an edge among the children of
// one parent (tag_tags.position) and the global root ordering
// (tags.position), which only counts while a tag has no parent.
type TagRepo struct {
	g *Guard
}

func scanTag(s rowScanner) (*types.Tag, error) {
	var (
		t     types.Tag
		color sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Name, &color, &t.Position); err != nil {
		return nil, err
	}
	t.Color = stringPtr(color)
	return &t, nil
}

func queryTags(ctx context.Context, q queryer, query string, args ...any) ([]types.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Internal("querying tags", err)
	}
	defer rows.Close()

	var tags []types.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, types.Internal("scanning tag", err)
		}
		tags = append(tags, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Internal("iterating tags", err)
	}
	return tags, nil
}

func getTagTx(ctx context.Context, q queryer, id int64) (*types.Tag, error) {
	t, err := scanTag(q.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFound("tag %d", id)
	}
	if err != nil {
		return nil, types.Internal("loading tag", err)
	}
	return t, nil
}

// Create adds a root tag at the end of the root ordering. Names are unique;
// a taken name yields a Conflict error.
func (r *TagRepo) Create(ctx context.Context, name string, color *string) (*types.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.InvalidInput("tag name must not be empty")
	}
	var created *types.Tag
	err := inTx(ctx, r.g, func(tx *sql.Tx) error {
		pos, err := nextRootPositionTx(ctx, tx, 0)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tags (name, color, position) VALUES (?, ?, ?)`, name, nullString(color), pos)
		if err != nil {
			return wrap("creating tag "+name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return types.Internal("reading tag id", err)
		}
		created, err = getTagTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns the tag with id.
func (r *TagRepo) Get(ctx context.Context, id int64) (*types.Tag, error) {
	var t *types.Tag
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		t, err = getTagTx(ctx, c.DB, id)
		return err
	})
	return t, err
}

// List returns all tags ordered by name.
func (r *TagRepo) List(ctx context.Context) ([]types.Tag, error) {
	var tags []types.Tag
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		tags, err = queryTags(ctx, c.DB, `SELECT `+tagColumns+` FROM tags ORDER BY name, id`)
		return err
	})
	return tags, err
}

// Update renames and recolors a tag. Position changes go through MoveRoot.
func (r *TagRepo) Update(ctx context.Context, t *types.Tag) (*types.Tag, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return nil, types.InvalidInput("tag name must not be empty")
	}
	var updated *types.Tag
	err := inTx(ctx, r.g, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tags SET name = ?, color = ? WHERE id = ?`, name, nullString(t.Color), t.ID)
		if err != nil {
			return wrap("updating tag "+name, err)
		}
		if err := requireAffected(res, "tag %d", t.ID); err != nil {
			return err
		}
		updated, err = getTagTx(ctx, tx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a tag. Its edges cascade away; children left without a
// parent join the end of the root ordering, and the parents it leaves
// behind are renumbered.
func (r *TagRepo) Delete(ctx context.Context, id int64) error {
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		if _, err := getTagTx(ctx, tx, id); err != nil {
			return err
		}
		children, err := edgeIDsTx(ctx, tx, `SELECT child_tag_id FROM tag_tags WHERE parent_tag_id = ?`, id)
		if err != nil {
			return err
		}
		parents, err := edgeIDsTx(ctx, tx, `SELECT parent_tag_id FROM tag_tags WHERE child_tag_id = ?`, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id); err != nil {
			return types.Internal("deleting tag", err)
		}

		for _, child := range children {
			if err := promoteIfRootTx(ctx, tx, child); err != nil {
				return err
			}
		}
		for _, parent := range parents {
			if err := reindexEdgesTx(ctx, tx, parent); err != nil {
				return err
			}
		}
		return reindexRootsTx(ctx, tx)
	})
}

func edgeIDsTx(ctx context.Context, q queryer, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Internal("querying tag edges", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, types.Internal("scanning tag edge", err)
		}
		ids = append(ids, v)
	}
	return ids, types.Internal("iterating tag edges", rows.Err())
}

// TagItem attaches tag to item. Attaching twice is a no-op.
func (r *TagRepo) TagItem(ctx context.Context, itemID, tagID int64) error {
	return inTx(ctx, r.g, func(tx *sql.Tx) error {
		if _, err := getItemTx(ctx, tx, itemID); err != nil {
			return err
		}
		if _, err := getTagTx(ctx, tx, tagID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`, itemID, tagID)
		return types.Internal("tagging item", err)
	})
}

// UntagItem detaches tag from item.
func (r *TagRepo) UntagItem(ctx context.Context, itemID, tagID int64) error {
	return r.g.Do(ctx, func(c *Conn) error {
		_, err := c.DB.ExecContext(ctx,
			`DELETE FROM item_tags WHERE item_id = ? AND tag_id = ?`, itemID, tagID)
		return types.Internal("untagging item", err)
	})
}

// TagsOfItem returns the tags attached to item, ordered by name.
func (r *TagRepo) TagsOfItem(ctx context.Context, itemID int64) ([]types.Tag, error) {
	var tags []types.Tag
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		tags, err = queryTags(ctx, c.DB,
			`SELECT t.id, t.name, t.color, t.position FROM tags t
             JOIN item_tags it ON it.tag_id = t.id
             WHERE it.item_id = ? ORDER BY t.name, t.id`, itemID)
		return err
	})
	return tags, err
}

// ItemsWithTag returns the items carrying tag.
func (r *TagRepo) ItemsWithTag(ctx context.Context, tagID int64) ([]types.Item, error) {
	var items []types.Item
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		items, err = queryItems(ctx, c.DB,
			`SELECT `+itemColumns+` FROM items
             WHERE id IN (SELECT item_id FROM item_tags WHERE tag_id = ?)
             ORDER BY workspace_id, parent_id, position, id`, tagID)
		return err
	})
	return items, err
}
