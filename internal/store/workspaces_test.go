package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

func TestWorkspaces_FixedAreSeeded(t *testing.T) {
	s := newTestStore(t)

	list, err := s.Workspaces.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, len(types.FixedWorkspaces))
	for _, w := range list {
		assert.Equal(t, types.FixedWorkspaces[w.ID], w.Name)
	}
}

func TestWorkspaces_FixedAreImmutable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for id := range types.FixedWorkspaces {
		assert.ErrorIs(t, s.Workspaces.Rename(ctx, id, "mine"), types.ErrInvalidInput)
		assert.ErrorIs(t, s.Workspaces.Delete(ctx, id), types.ErrInvalidInput)
	}
}

func TestWorkspaces_CreateRenameDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	w, err := s.Workspaces.Create(ctx, "projects")
	require.NoError(t, err)
	assert.False(t, types.IsFixedWorkspace(w.ID))

	_, err = s.Workspaces.Create(ctx, "projects")
	assert.ErrorIs(t, err, types.ErrConflict)
	assert.ErrorIs(t, s.Workspaces.Rename(ctx, w.ID, "todos"), types.ErrConflict)
	assert.ErrorIs(t, s.Workspaces.Rename(ctx, 999, "x"), types.ErrNotFound)

	require.NoError(t, s.Workspaces.Rename(ctx, w.ID, "side projects"))

	parent, err := s.Items.Create(ctx, types.NewItem{Text: "plan", WorkspaceID: w.ID})
	require.NoError(t, err)
	_, err = s.Items.Create(ctx, types.NewItem{Text: "step", ParentID: &parent.ID})
	require.NoError(t, err)
	_, err = s.Workspaces.AddDir(ctx, w.ID, "/srv/projects")
	require.NoError(t, err)
	kept := mustItem(t, s, "kept", nil, nil)

	require.NoError(t, s.Workspaces.Delete(ctx, w.ID))

	items, err := s.Items.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, texts(items))
	assert.Equal(t, kept.ID, items[0].ID)

	dirs, err := s.Workspaces.ListDirs(ctx, w.ID)
	require.NoError(t, err)
	assert.Empty(t, dirs)

	assert.ErrorIs(t, s.Workspaces.Delete(ctx, w.ID), types.ErrNotFound)
}

func TestWorkspaces_Dirs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	d, err := s.Workspaces.AddDir(ctx, types.WorkspaceFiles, "/home/me/docs///")
	require.NoError(t, err)
	assert.Equal(t, "/home/me/docs", d.Path)
	assert.False(t, d.Collapsed)

	again, err := s.Workspaces.AddDir(ctx, types.WorkspaceFiles, "/home/me/docs")
	require.NoError(t, err)
	assert.Equal(t, d.ID, again.ID, "adding the same dir twice is idempotent")

	_, err = s.Workspaces.AddDir(ctx, types.WorkspaceFiles, "relative/path")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	_, err = s.Workspaces.AddDir(ctx, 999, "/tmp")
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, s.Workspaces.SetDirCollapsed(ctx, d.ID, true))
	dirs, err := s.Workspaces.ListDirs(ctx, types.WorkspaceFiles)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.True(t, dirs[0].Collapsed)

	require.NoError(t, s.Workspaces.RemoveDir(ctx, d.ID))
	assert.ErrorIs(t, s.Workspaces.RemoveDir(ctx, d.ID), types.ErrNotFound)
	assert.ErrorIs(t, s.Workspaces.SetDirCollapsed(ctx, d.ID, false), types.ErrNotFound)
}

func TestWindowState_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.Windows.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := types.WindowState{Width: 1024, Height: 768, X: 10, Y: 20, Pinned: true}
	require.NoError(t, s.Windows.Save(ctx, want))
	want.Width = 1280
	require.NoError(t, s.Windows.Save(ctx, want))

	got, err = s.Windows.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	assert.ErrorIs(t, s.Windows.Save(ctx, types.WindowState{Width: 0, Height: 10}), types.ErrInvalidInput)
}
