// Package paths locates the tagall config and data directories and names the
// files a store keeps beside its database.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "tagall"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "TAGALL_CONFIG_DIR"
	EnvDataDir   = "TAGALL_DATA_DIR"
)

// Kind selects which directory to locate.
type Kind int

const (
	ConfigDir Kind = iota
	DataDir
)

func (k Kind) String() string {
	if k == DataDir {
		return "data"
	}
	return "config"
}

// Source records which layer decided a Location.
type Source string

const (
	FromFlag    Source = "flag"
	FromConfig  Source = "config"
	FromEnv     Source = "env"
	FromDefault Source = "default"
)

// Explicit reports whether the user chose the directory rather than the
// environment or the platform.
func (s Source) Explicit() bool {
	return s == FromFlag || s == FromConfig
}

// Location is a resolved absolute directory and where it came from.
type Location struct {
	Dir    string
	Source Source
}

// layout describes one directory kind. xdg and home apply on linux; every
// other platform nests appName under os.UserConfigDir.
type layout struct {
	env  string
	xdg  string
	home []string
}

var layouts = map[Kind]layout{
	ConfigDir: {env: EnvConfigDir, xdg: "XDG_CONFIG_HOME", home: []string{".config"}},
	DataDir:   {env: EnvDataDir, xdg: "XDG_DATA_HOME", home: []string{".local", "share"}},
}

// Locator resolves directories against a platform. The zero value is not
// usable; start from System.
type Locator struct {
	GOOS          string
	Getenv        func(string) string
	HomeDir       func() (string, error)
	UserConfigDir func() (string, error)
}

// System returns a Locator for the running process.
func System() Locator {
	return Locator{
		GOOS:          runtime.GOOS,
		Getenv:        os.Getenv,
		HomeDir:       os.UserHomeDir,
		UserConfigDir: os.UserConfigDir,
	}
}

// Default returns the platform directory for k.
//
// Linux:   $XDG_CONFIG_HOME/tagall, $XDG_DATA_HOME/tagall
// (fallback ~/.config/tagall, ~/.local/share/tagall)
// macOS:   ~/Library/Application Support/tagall
// Windows: %APPDATA%/tagall
func (l Locator) Default(k Kind) (string, error) {
	lay, ok := layouts[k]
	if !ok {
		return "", fmt.Errorf("unknown directory kind %d", int(k))
	}
	if l.GOOS != "linux" {
		dir, err := l.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := l.Getenv(lay.xdg); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := l.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, lay.home...), appName)...), nil
}

// Resolve applies flag > configValue > env > platform default. Config
// directories have no config file layer, so pass "" for configValue.
func (l Locator) Resolve(k Kind, flag, configValue string) (Location, error) {
	lay, ok := layouts[k]
	if !ok {
		return Location{}, fmt.Errorf("unknown directory kind %d", int(k))
	}
	for _, c := range []struct {
		dir string
		src Source
	}{
		{flag, FromFlag},
		{configValue, FromConfig},
		{l.Getenv(lay.env), FromEnv},
	} {
		if c.dir == "" {
			continue
		}
		abs, err := filepath.Abs(c.dir)
		if err != nil {
			return Location{}, fmt.Errorf("%s dir from %s: %w", k, c.src, err)
		}
		return Location{Dir: abs, Source: c.src}, nil
	}
	dir, err := l.Default(k)
	if err != nil {
		return Location{}, fmt.Errorf("%s dir default: %w", k, err)
	}
	return Location{Dir: dir, Source: FromDefault}, nil
}

// Store resolves the data directory and returns the file set of the default
// store inside it.
func (l Locator) Store(flag, configValue string) (StoreFiles, Location, error) {
	loc, err := l.Resolve(DataDir, flag, configValue)
	if err != nil {
		return StoreFiles{}, Location{}, err
	}
	return ForDataDir(loc.Dir), loc, nil
}
