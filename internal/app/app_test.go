package app

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tagall/internal/migrate"
	"github.com/mesh-intelligence/tagall/internal/paths"
	"github.com/mesh-intelligence/tagall/internal/store"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

var cloud = types.SyncConfig{URL: "libsql://tagall-test.example.com", Token: "secret-token"}

type offlineEngine struct{ syncs int }

func (e *offlineEngine) Mode() string { return types.ModeReplica }
func (e *offlineEngine) Sync(context.Context) error { e.syncs++; return nil }
func (e *offlineEngine) Stats() store.SyncStats { return store.SyncStats{Count: e.syncs} }
func (e *offlineEngine) Close() error { return nil }

// offlineOpener serves replicas from a local file.
func offlineOpener(ctx context.Context, files paths.StoreFiles, cfg *types.SyncConfig) (*store.Conn, error) {
	conn, err := store.OpenLocal(ctx, files.DB)
	if err != nil || cfg == nil {
		return conn, err
	}
	conn.Engine = &offlineEngine{}
	return conn, nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	s, err := store.Open(context.Background(), paths.ForDataDir(t.TempDir()), store.Options{Opener: offlineOpener})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, Options{
		Migrate: migrate.Options{
			Opener:        offlineOpener,
			MigrateRemote: func(context.Context, types.SyncConfig) error { return nil },
		},
		CheckRemote: func(context.Context, types.SyncConfig) error { return nil },
	})
}

func TestToggleItem(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	items := a.Store().Items

	daily, err := items.Create(ctx, types.NewItem{Text: "stretch"})
	require.NoError(t, err)
	once, err := items.Create(ctx, types.NewItem{Text: "buy stamps", Type: types.ItemOnce})
	require.NoError(t, err)
	_, err = items.Create(ctx, types.NewItem{Text: "sub-step", ParentID: &once.ID})
	require.NoError(t, err)

	got, deleted, err := a.ToggleItem(ctx, daily.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, got.Completed)

	got, deleted, err = a.ToggleItem(ctx, daily.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.False(t, got.Completed)

	got, deleted, err = a.ToggleItem(ctx, once.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.True(t, got.Completed)
	_, err = items.Get(ctx, once.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	all, err := items.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "stretch", all[0].Text)

	_, _, err = a.ToggleItem(ctx, 404)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAddTagParent_RejectsSelf(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	tag, err := a.Store().Tags.Create(ctx, "solo", nil)
	require.NoError(t, err)
	other, err := a.Store().Tags.Create(ctx, "other", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, a.AddTagParent(ctx, tag.ID, tag.ID), types.ErrInvalidInput)
	require.NoError(t, a.AddTagParent(ctx, tag.ID, other.ID))
}

func TestCloudSyncLifecycle(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	_, err := a.Store().Items.Create(ctx, types.NewItem{Text: "survives"})
	require.NoError(t, err)

	st, err := a.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncStatus{Mode: types.ModeLocal}, st)

	assert.ErrorIs(t, a.SyncNow(ctx), types.ErrSyncNotConfigured)
	_, err = a.DisableCloudSync(ctx)
	assert.ErrorIs(t, err, types.ErrSyncNotConfigured)
	_, err = a.ConfigureCloudSync(ctx, types.SyncConfig{URL: "libsql://x"})
	assert.ErrorIs(t, err, types.ErrSyncTokenEmpty)

	report, err := a.ConfigureCloudSync(ctx, cloud)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())

	require.NoError(t, a.SyncNow(ctx))
	st, err = a.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ModeReplica, st.Mode)
	assert.True(t, st.Configured)
	assert.Equal(t, cloud.URL, st.URL)
	assert.Equal(t, 2, st.Syncs, "initial sync plus SyncNow")

	report, err = a.DisableCloudSync(ctx)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())

	st, err = a.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ModeLocal, st.Mode)
	assert.False(t, st.Configured)

	items, err := a.Store().Items.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "survives", items[0].Text)
}

func TestSaveSyncConfigDoesNotMigrate(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	require.NoError(t, a.SaveSyncConfig(ctx, cloud))
	cfg, err := a.GetSyncConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, cloud, *cfg)

	st, err := a.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ModeLocal, st.Mode, "the running store keeps its backend")
	assert.True(t, st.Configured)
}

func TestUnreachableCloudTouchesNothing(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	_, err := a.Store().Items.Create(ctx, types.NewItem{Text: "survives"})
	require.NoError(t, err)
	files := a.Store().Files()
	before, err := os.ReadFile(files.DB)
	require.NoError(t, err)

	refused := errors.New("401 unauthorized")
	var checked []types.SyncConfig
	a.checkRemote = func(ctx context.Context, cfg types.SyncConfig) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		checked = append(checked, cfg)
		return refused
	}

	report, err := a.ConfigureCloudSync(ctx, cloud)
	require.ErrorIs(t, err, refused)
	assert.Nil(t, report)

	err = a.SaveSyncConfig(ctx, cloud)
	require.ErrorIs(t, err, refused)
	assert.Equal(t, []types.SyncConfig{cloud, cloud}, checked)

	assert.NoFileExists(t, files.SyncConfig())
	assert.NoFileExists(t, files.SafetyCopy())
	after, err := os.ReadFile(files.DB)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	st, err := a.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncStatus{Mode: types.ModeLocal}, st)
	items, err := a.Store().Items.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
}
