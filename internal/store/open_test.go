package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tagall/internal/paths"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

var testSyncConfig = types.SyncConfig{URL: "libsql://tagall-test.example.com", Token: "secret-token"}

func TestOpen_QuarantinesBrokenReplicaAndRetries(t *testing.T) {
	ctx := context.Background()
	files := paths.ForDataDir(t.TempDir())
	require.NoError(t, SaveSyncConfig(files, testSyncConfig))
	require.NoError(t, os.WriteFile(files.DB, []byte("not a database"), 0o644))

	var calls int
	opener := func(ctx context.Context, f paths.StoreFiles, cfg *types.SyncConfig) (*Conn, error) {
		calls++
		require.NotNil(t, cfg)
		if calls == 1 {
			return nil, fmt.Errorf("%w: replica metadata corrupt", ErrLocalState)
		}
		return OpenLocal(ctx, f.DB)
	}

	s, err := Open(ctx, files, Options{Opener: opener})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 2, calls)

	quarantined, err := filepath.Glob(files.DB + ".quarantine-*")
	require.NoError(t, err)
	require.Len(t, quarantined, 1)
	moved, err := os.ReadFile(filepath.Join(quarantined[0], paths.DBFileName))
	require.NoError(t, err)
	assert.Equal(t, "not a database", string(moved))

	_, err = s.Items.List(ctx)
	require.NoError(t, err)
}

func TestOpen_ReportsBothFailuresAfterQuarantine(t *testing.T) {
	files := paths.ForDataDir(t.TempDir())
	require.NoError(t, SaveSyncConfig(files, testSyncConfig))

	first := fmt.Errorf("%w: schema version 9 is newer than this build", ErrLocalState)
	second := errors.New("second failure")
	var calls int
	opener := func(context.Context, paths.StoreFiles, *types.SyncConfig) (*Conn, error) {
		calls++
		if calls == 1 {
			return nil, first
		}
		return nil, second
	}

	_, err := Open(context.Background(), files, Options{Opener: opener})
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestOpen_ConnectionFailureIsNotQuarantined(t *testing.T) {
	files := paths.ForDataDir(t.TempDir())
	require.NoError(t, SaveSyncConfig(files, testSyncConfig))
	require.NoError(t, os.WriteFile(files.DB, []byte("SQLite format 3\x00replica pages"), 0o644))

	offline := errors.New("dial tcp: lookup tagall-test.example.com: no such host")
	var calls int
	opener := func(context.Context, paths.StoreFiles, *types.SyncConfig) (*Conn, error) {
		calls++
		return nil, offline
	}

	for range 3 {
		_, err := Open(context.Background(), files, Options{Opener: opener})
		require.ErrorIs(t, err, offline)
	}
	assert.Equal(t, 3, calls)

	quarantined, err := filepath.Glob(files.DB + ".quarantine-*")
	require.NoError(t, err)
	assert.Empty(t, quarantined)
	assert.FileExists(t, files.DB)
}

func TestOpenReplica_RejectsForeignFileAsLocalState(t *testing.T) {
	path := filepath.Join(t.TempDir(), paths.DBFileName)
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))

	_, err := OpenReplica(context.Background(), path, testSyncConfig)
	require.ErrorIs(t, err, ErrLocalState)
}

func TestCheckDBFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		return p
	}

	assert.NoError(t, checkDBFile(filepath.Join(dir, "missing.db")))
	assert.NoError(t, checkDBFile(write("empty.db", nil)))
	assert.NoError(t, checkDBFile(write("db.db", append([]byte("SQLite format 3\x00"), make([]byte, 84)...))))
	assert.Error(t, checkDBFile(write("text.db", []byte("not a database"))))
	assert.Error(t, checkDBFile(write("short.db", []byte("SQL"))))

	s := newTestStore(t)
	assert.NoError(t, checkDBFile(s.Files().DB))
}

func TestOpen_LocalStoreIsNeverQuarantined(t *testing.T) {
	files := paths.ForDataDir(t.TempDir())
	require.NoError(t, os.WriteFile(files.DB, []byte("precious"), 0o644))

	var calls int
	opener := func(context.Context, paths.StoreFiles, *types.SyncConfig) (*Conn, error) {
		calls++
		return nil, errors.New("locked")
	}

	_, err := Open(context.Background(), files, Options{Opener: opener})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	quarantined, err := filepath.Glob(files.DB + ".quarantine-*")
	require.NoError(t, err)
	assert.Empty(t, quarantined)
	data, err := os.ReadFile(files.DB)
	require.NoError(t, err)
	assert.Equal(t, "precious", string(data))
}

func TestStore_StatusAndSyncInLocalMode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ModeLocal, st.Mode)
	assert.True(t, st.LastSync.IsZero())

	assert.ErrorIs(t, s.Sync(ctx), types.ErrSyncNotConfigured)
}

func TestRemoteDSN_CarriesToken(t *testing.T) {
	dsn := remoteDSN(types.SyncConfig{URL: "libsql://db.example.com", Token: "tok"})
	assert.Equal(t, "libsql://db.example.com?authToken=tok", dsn)
}

func TestLocalDSN_EscapesPath(t *testing.T) {
	dsn := localDSN("/data/odd?dir#1/tag_all.db")
	assert.Equal(t,
		"file:/data/odd%3Fdir%231/tag_all.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(DELETE)",
		dsn)
}

func TestOpen_DataDirWithURISpecialCharacters(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "odd?dir#1 x")
	files := paths.ForDataDir(dir)

	s, err := Open(ctx, files, Options{})
	require.NoError(t, err)
	_, err = s.Items.Create(ctx, types.NewItem{Text: "kept"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.FileExists(t, filepath.Join(dir, paths.DBFileName))

	s, err = Open(ctx, files, Options{})
	require.NoError(t, err)
	defer s.Close()
	items, err := s.Items.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "kept", items[0].Text)
}
