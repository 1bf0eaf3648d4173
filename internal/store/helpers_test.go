package store

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tagall/internal/paths"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), paths.ForDataDir(t.TempDir()), Options{
		Now: func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func mustItem(t *testing.T, s *Store, text string, parent *int64, pos *int) *types.Item {
	t.Helper()
	it, err := s.Items.Create(context.Background(), types.NewItem{
		Text:     text,
		ParentID: parent,
		Position: pos,
	})
	require.NoError(t, err)
	return it
}

func mustTag(t *testing.T, s *Store, name string) *types.Tag {
	t.Helper()
	tag, err := s.Tags.Create(context.Background(), name, nil)
	require.NoError(t, err)
	return tag
}

func texts(items []types.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func tagNames(tags []types.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Name
	}
	return out
}

type siblingKey struct {
	parent    int64 // 0 for roots
	workspace int64
}

// requireGapless asserts that every sibling set holds positions 0..n-1.
func requireGapless(t *testing.T, s *Store) {
	t.Helper()
	items, err := s.Items.List(context.Background())
	require.NoError(t, err)

	groups := make(map[siblingKey][]int)
	for _, it := range items {
		k := siblingKey{workspace: it.WorkspaceID}
		if it.ParentID != nil {
			k.parent = *it.ParentID
		}
		groups[k] = append(groups[k], it.Position)
	}
	for k, positions := range groups {
		sort.Ints(positions)
		for i, p := range positions {
			require.Equalf(t, i, p, "sibling set %+v has positions %v", k, positions)
		}
	}
}

// requireRootsGapless asserts that root tag positions are 0..n-1 in
// Roots order.
func requireRootsGapless(t *testing.T, s *Store) {
	t.Helper()
	roots, err := s.Tags.Roots(context.Background())
	require.NoError(t, err)
	for i, r := range roots {
		require.Equalf(t, i, r.Position, "root %q", r.Name)
	}
}
