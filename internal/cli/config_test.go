package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tagall/internal/migrate"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := loadSettings(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, "", s.DataDir)
	assert.Equal(t, defaultLogLevel, s.LogLevel)
	assert.Equal(t, migrate.DefaultSyncTimeout, s.SyncTimeout)
	assert.Equal(t, migrate.DefaultMigrateTimeout, s.MigrateTimeout)
}

func TestLoadSettings_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "data_dir: /srv/tagall\nlog_level: debug\nsync_timeout: 5s\nmigrate_timeout: 1m\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileExt), []byte(yaml), 0o644))

	s, err := loadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "/srv/tagall", s.DataDir)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 5*time.Second, s.SyncTimeout)
	assert.Equal(t, time.Minute, s.MigrateTimeout)
}

func TestLoadSettings_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileExt), []byte("data_dir: [unterminated\n"), 0o644))
	_, err := loadSettings(dir)
	require.Error(t, err)
}

func TestWriteConfigIfMissing_RoundTripsThroughViper(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")
	path, err := writeConfigIfMissing(dir, "/var/lib/tagall")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, configFileExt), path)

	s, err := loadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tagall", s.DataDir)
	assert.Equal(t, defaultLogLevel, s.LogLevel)
	assert.Equal(t, migrate.DefaultSyncTimeout, s.SyncTimeout)

	// No data dir chosen: the key is omitted.
	dir2 := t.TempDir()
	path, err = writeConfigIfMissing(dir2, "")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "data_dir")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := newLogger(settings{LogLevel: "warn"}, &buf)
	require.NoError(t, err)
	assert.Nil(t, closer)
	logger.Info("hidden")
	logger.Warn("shown", "step", "backup")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "step=backup")

	_, _, err = newLogger(settings{LogLevel: "loud"}, &buf)
	require.Error(t, err)
}

func TestNewLogger_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tagall.log")
	logger, closer, err := newLogger(settings{LogLevel: "info", LogFile: path}, nil)
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.Info("store opened", slog.String("mode", types.ModeLocal))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"store opened"`), string(data))
	assert.Contains(t, string(data), `"mode":"local"`)
}

func TestPrintTree_HidesCollapsedSubtrees(t *testing.T) {
	id := func(v int64) *int64 { return &v }
	items := []types.Item{
		{ID: 1, Text: "errands", Collapsed: true},
		{ID: 2, Text: "post office", ParentID: id(1)},
		{ID: 3, Text: "stamps", ParentID: id(2)},
		{ID: 4, Text: "chores"},
		{ID: 5, Text: "dishes", ParentID: id(4), Completed: true},
	}
	var buf bytes.Buffer
	require.NoError(t, printTree(&buf, items))
	assert.Equal(t,
		"+[ ] errands  (1)\n"+
			" [ ] chores  (4)\n"+
			"   [x] dishes  (5)\n",
		buf.String())
}
