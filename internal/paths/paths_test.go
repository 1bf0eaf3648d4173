package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLocator builds a Locator over a fixed environment.
func fakeLocator(goos string, env map[string]string) Locator {
	return Locator{
		GOOS:          goos,
		Getenv:        func(k string) string { return env[k] },
		HomeDir:       func() (string, error) { return "/home/ana", nil },
		UserConfigDir: func() (string, error) { return "/Users/ana/Library/Application Support", nil },
	}
}

func TestLocator_Default(t *testing.T) {
	tests := []struct {
		name string
		goos string
		env  map[string]string
		kind Kind
		want string
	}{
		{"linux config from XDG", "linux", map[string]string{"XDG_CONFIG_HOME": "/xdg/cfg"}, ConfigDir, "/xdg/cfg/tagall"},
		{"linux config fallback", "linux", nil, ConfigDir, "/home/ana/.config/tagall"},
		{"linux data from XDG", "linux", map[string]string{"XDG_DATA_HOME": "/xdg/data"}, DataDir, "/xdg/data/tagall"},
		{"linux data fallback", "linux", nil, DataDir, "/home/ana/.local/share/tagall"},
		{"linux data ignores config XDG", "linux", map[string]string{"XDG_CONFIG_HOME": "/xdg/cfg"}, DataDir, "/home/ana/.local/share/tagall"},
		{"darwin config", "darwin", nil, ConfigDir, "/Users/ana/Library/Application Support/tagall"},
		{"darwin data shares config dir", "darwin", map[string]string{"XDG_DATA_HOME": "/xdg/data"}, DataDir, "/Users/ana/Library/Application Support/tagall"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fakeLocator(tt.goos, tt.env).Default(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestLocator_DefaultErrors(t *testing.T) {
	l := fakeLocator("linux", nil)
	l.HomeDir = func() (string, error) { return "", errors.New("no home") }

	_, err := l.Default(DataDir)
	assert.ErrorContains(t, err, "no home")

	_, err = l.Resolve(DataDir, "", "")
	assert.ErrorContains(t, err, "data dir default")

	_, err = l.Default(Kind(9))
	assert.Error(t, err)
}

func TestLocator_Resolve(t *testing.T) {
	env := map[string]string{EnvConfigDir: "/env/cfg", EnvDataDir: "/env/data"}

	tests := []struct {
		name    string
		env     map[string]string
		kind    Kind
		flag    string
		config  string
		wantDir string
		wantSrc Source
	}{
		{"data flag wins over all", env, DataDir, "/flag/data", "/config/data", "/flag/data", FromFlag},
		{"data config.yaml wins over env", env, DataDir, "", "/config/data", "/config/data", FromConfig},
		{"data env wins when flag and config empty", env, DataDir, "", "", "/env/data", FromEnv},
		{"data platform default", nil, DataDir, "", "", "/home/ana/.local/share/tagall", FromDefault},
		{"config flag wins over env", env, ConfigDir, "/flag/cfg", "", "/flag/cfg", FromFlag},
		{"config env reads its own variable", env, ConfigDir, "", "", "/env/cfg", FromEnv},
		{"config platform default", nil, ConfigDir, "", "", "/home/ana/.config/tagall", FromDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := fakeLocator("linux", tt.env).Resolve(tt.kind, tt.flag, tt.config)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantDir), loc.Dir)
			assert.Equal(t, tt.wantSrc, loc.Source)
		})
	}
}

func TestLocator_ResolveMakesRelativeAbsolute(t *testing.T) {
	l := fakeLocator("linux", map[string]string{EnvDataDir: "relative/env"})

	for _, tc := range []struct{ flag, config string }{
		{"relative/flag", ""},
		{"", "relative/config"},
		{"", ""},
	} {
		loc, err := l.Resolve(DataDir, tc.flag, tc.config)
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(loc.Dir), "expected absolute path, got %s", loc.Dir)
	}
}

func TestSource_Explicit(t *testing.T) {
	assert.True(t, FromFlag.Explicit())
	assert.True(t, FromConfig.Explicit())
	assert.False(t, FromEnv.Explicit())
	assert.False(t, FromDefault.Explicit())
}

func TestLocator_Store(t *testing.T) {
	l := fakeLocator("linux", map[string]string{"XDG_DATA_HOME": "/xdg/data"})

	files, loc, err := l.Store("", "")
	require.NoError(t, err)
	assert.Equal(t, FromDefault, loc.Source)
	assert.Equal(t, filepath.Join(loc.Dir, DBFileName), files.DB)
	assert.Equal(t, filepath.Join(loc.Dir, SyncConfigFileName), files.SyncConfig())

	files, loc, err = l.Store("", "/config/data")
	require.NoError(t, err)
	assert.Equal(t, FromConfig, loc.Source)
	assert.Equal(t, filepath.FromSlash("/config/data/tag_all.db"), files.DB)
}

func TestSystem_UsesProcessEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)

	loc, err := System().Resolve(DataDir, "", "")
	require.NoError(t, err)
	assert.Equal(t, dir, loc.Dir)
	assert.Equal(t, FromEnv, loc.Source)
}
