package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

func rootIDs(t *testing.T, s *Store) map[int64]int {
	t.Helper()
	roots, err := s.Tags.Roots(context.Background())
	require.NoError(t, err)
	out := make(map[int64]int)
	for _, r := range roots {
		out[r.ID]++
	}
	return out
}

func TestTagGraph_LastParentRemovedPromotesToRoot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p1 := mustTag(t, s, "P1")
	p2 := mustTag(t, s, "P2")
	mustTag(t, s, "other")
	t1 := mustTag(t, s, "T1")

	require.NoError(t, s.Tags.AddParent(ctx, t1.ID, p1.ID))
	require.NoError(t, s.Tags.AddParent(ctx, t1.ID, p2.ID))
	assert.NotContains(t, rootIDs(t, s), t1.ID)

	parents, err := s.Tags.ParentsOf(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, tagNames(parents))

	require.NoError(t, s.Tags.RemoveParent(ctx, t1.ID, p1.ID))
	assert.NotContains(t, rootIDs(t, s), t1.ID, "one parent left")

	require.NoError(t, s.Tags.RemoveParent(ctx, t1.ID, p2.ID))
	roots, err := s.Tags.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "other", "T1"}, tagNames(roots))
	assert.Equal(t, 3, roots[3].Position)
	requireRootsGapless(t, s)
}

func TestTagGraph_RootMembershipFollowsEdges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustTag(t, s, "a")
	b := mustTag(t, s, "b")
	c := mustTag(t, s, "c")

	edges := [][2]int64{{b.ID, a.ID}, {c.ID, a.ID}, {c.ID, b.ID}}
	for _, e := range edges {
		require.NoError(t, s.Tags.AddParent(ctx, e[0], e[1]))
		// Idempotent.
		require.NoError(t, s.Tags.AddParent(ctx, e[0], e[1]))
	}
	roots := rootIDs(t, s)
	assert.Equal(t, map[int64]int{a.ID: 1}, roots)

	require.NoError(t, s.Tags.RemoveParent(ctx, c.ID, a.ID))
	assert.Equal(t, map[int64]int{a.ID: 1}, rootIDs(t, s), "c still has b")

	require.NoError(t, s.Tags.RemoveParent(ctx, b.ID, a.ID))
	assert.Equal(t, map[int64]int{a.ID: 1, b.ID: 1}, rootIDs(t, s))

	// Removing a missing edge is a no-op.
	require.NoError(t, s.Tags.RemoveParent(ctx, b.ID, a.ID))
	requireRootsGapless(t, s)
}

func TestTagGraph_ChildrenOrderedByEdgePosition(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	parent := mustTag(t, s, "parent")
	z := mustTag(t, s, "zulu")
	a := mustTag(t, s, "alpha")
	m := mustTag(t, s, "mike")
	for _, child := range []int64{z.ID, a.ID, m.ID} {
		require.NoError(t, s.Tags.AddParent(ctx, child, parent.ID))
	}

	children, err := s.Tags.ChildrenOf(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"zulu", "alpha", "mike"}, tagNames(children))

	require.NoError(t, s.Tags.MoveChild(ctx, m.ID, parent.ID, 0))
	children, err = s.Tags.ChildrenOf(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"mike", "zulu", "alpha"}, tagNames(children))

	edges, err := s.Tags.EdgesOf(ctx, parent.ID)
	require.NoError(t, err)
	for i, e := range edges {
		assert.Equal(t, i, e.Position)
	}

	// Edge positions never touch the root ordering.
	roots, err := s.Tags.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"parent"}, tagNames(roots))
	assert.Equal(t, 0, roots[0].Position)

	err = s.Tags.MoveChild(ctx, parent.ID, m.ID, 0)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTagGraph_MoveRoot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var ids []int64
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, mustTag(t, s, name).ID)
	}
	child := mustTag(t, s, "child")
	require.NoError(t, s.Tags.AddParent(ctx, child.ID, ids[0]))

	tests := []struct {
		name string
		id   int64
		pos  int
		want []string
	}{
		{"down", ids[0], 3, []string{"b", "c", "d", "a", "e"}},
		{"up", ids[4], 0, []string{"e", "b", "c", "d", "a"}},
		{"same place", ids[2], 2, []string{"e", "b", "c", "d", "a"}},
		{"clamped to end", ids[1], 40, []string{"e", "c", "d", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.Tags.MoveRoot(ctx, tt.id, tt.pos))
			roots, err := s.Tags.Roots(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tagNames(roots))
			requireRootsGapless(t, s)
		})
	}

	assert.ErrorIs(t, s.Tags.MoveRoot(ctx, child.ID, 0), types.ErrInvalidInput)
	assert.ErrorIs(t, s.Tags.MoveRoot(ctx, 404, 0), types.ErrNotFound)
	assert.ErrorIs(t, s.Tags.MoveRoot(ctx, ids[0], -1), types.ErrInvalidInput)
}

func TestTagGraph_ReindexRootsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustTag(t, s, "a")
	b := mustTag(t, s, "b")
	c := mustTag(t, s, "c")
	d := mustTag(t, s, "d")
	require.NoError(t, s.Tags.AddParent(ctx, b.ID, a.ID))
	require.NoError(t, s.Tags.RemoveParent(ctx, b.ID, a.ID))
	require.NoError(t, s.Tags.AddParent(ctx, c.ID, d.ID))

	require.NoError(t, s.Tags.ReindexRoots(ctx))
	first, err := s.Tags.Roots(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Tags.ReindexRoots(ctx))
	second, err := s.Tags.Roots(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	requireRootsGapless(t, s)
}

func TestTagGraph_RejectsCycles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustTag(t, s, "a")
	b := mustTag(t, s, "b")
	c := mustTag(t, s, "c")
	require.NoError(t, s.Tags.AddParent(ctx, b.ID, a.ID))
	require.NoError(t, s.Tags.AddParent(ctx, c.ID, b.ID))

	assert.ErrorIs(t, s.Tags.AddParent(ctx, a.ID, a.ID), types.ErrInvalidInput)
	assert.ErrorIs(t, s.Tags.AddParent(ctx, a.ID, b.ID), types.ErrInvalidInput)
	assert.ErrorIs(t, s.Tags.AddParent(ctx, a.ID, c.ID), types.ErrInvalidInput)
	assert.ErrorIs(t, s.Tags.AddParent(ctx, a.ID, 404), types.ErrNotFound)

	ancestors, err := s.Tags.AncestorsOf(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tagNames(ancestors))
}

func TestTags_DeletePromotesOrphanedChildren(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	top := mustTag(t, s, "top")
	doomed := mustTag(t, s, "doomed")
	orphan := mustTag(t, s, "orphan")
	shared := mustTag(t, s, "shared")
	sibling := mustTag(t, s, "sibling")

	require.NoError(t, s.Tags.AddParent(ctx, doomed.ID, top.ID))
	require.NoError(t, s.Tags.AddParent(ctx, sibling.ID, top.ID))
	require.NoError(t, s.Tags.AddParent(ctx, orphan.ID, doomed.ID))
	require.NoError(t, s.Tags.AddParent(ctx, shared.ID, doomed.ID))
	require.NoError(t, s.Tags.AddParent(ctx, shared.ID, top.ID))

	item := mustItem(t, s, "tagged", nil, nil)
	require.NoError(t, s.Tags.TagItem(ctx, item.ID, doomed.ID))

	require.NoError(t, s.Tags.Delete(ctx, doomed.ID))

	_, err := s.Tags.Get(ctx, doomed.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	roots, err := s.Tags.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "orphan"}, tagNames(roots))
	requireRootsGapless(t, s)

	edges, err := s.Tags.EdgesOf(ctx, top.ID)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, sibling.ID, edges[0].ChildID)
	assert.Equal(t, 0, edges[0].Position)
	assert.Equal(t, shared.ID, edges[1].ChildID)
	assert.Equal(t, 1, edges[1].Position)

	tags, err := s.Tags.TagsOfItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestTags_CreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	work, err := s.Tags.Create(ctx, "work", ptr("#ff0000"))
	require.NoError(t, err)
	assert.Equal(t, 0, work.Position)
	assert.Equal(t, "#ff0000", *work.Color)

	home := mustTag(t, s, "home")
	assert.Equal(t, 1, home.Position)

	_, err = s.Tags.Create(ctx, "work", nil)
	assert.ErrorIs(t, err, types.ErrConflict)
	_, err = s.Tags.Create(ctx, "   ", nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	home.Name = "work"
	_, err = s.Tags.Update(ctx, home)
	assert.ErrorIs(t, err, types.ErrConflict)

	home.Name = "house"
	home.Color = ptr("#00ff00")
	got, err := s.Tags.Update(ctx, home)
	require.NoError(t, err)
	assert.Equal(t, "house", got.Name)
	assert.Equal(t, "#00ff00", *got.Color)

	list, err := s.Tags.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"house", "work"}, tagNames(list))
}

func TestTags_ItemEdges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	it := mustItem(t, s, "task", nil, nil)
	b := mustTag(t, s, "b")
	a := mustTag(t, s, "a")

	require.NoError(t, s.Tags.TagItem(ctx, it.ID, b.ID))
	require.NoError(t, s.Tags.TagItem(ctx, it.ID, a.ID))
	require.NoError(t, s.Tags.TagItem(ctx, it.ID, a.ID))
	assert.ErrorIs(t, s.Tags.TagItem(ctx, 404, a.ID), types.ErrNotFound)
	assert.ErrorIs(t, s.Tags.TagItem(ctx, it.ID, 404), types.ErrNotFound)

	tags, err := s.Tags.TagsOfItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tagNames(tags))

	items, err := s.Tags.ItemsWithTag(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"task"}, texts(items))

	require.NoError(t, s.Tags.UntagItem(ctx, it.ID, a.ID))
	tags, err = s.Tags.TagsOfItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, tagNames(tags))
}
