package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tagall/internal/migrate"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir        = "data_dir"
	cfgKeyLogFile        = "log_file"
	cfgKeyLogLevel       = "log_level"
	cfgKeySyncTimeout    = "sync_timeout"
	cfgKeyMigrateTimeout = "migrate_timeout"

	defaultLogLevel = "warn"
)

// settings is config.yaml after defaults are applied.
type settings struct {
	DataDir        string
	LogFile        string
	LogLevel       string
	SyncTimeout    time.Duration
	MigrateTimeout time.Duration
}

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	DataDir        string `yaml:"data_dir,omitempty"`
	LogFile        string `yaml:"log_file,omitempty"`
	LogLevel       string `yaml:"log_level"`
	SyncTimeout    string `yaml:"sync_timeout"`
	MigrateTimeout string `yaml:"migrate_timeout"`
}

// loadSettings reads config.yaml from configDir using Viper. A missing
// config.yaml is not an error.
func loadSettings(configDir string) (settings, error) {
	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeySyncTimeout, migrate.DefaultSyncTimeout)
	v.SetDefault(cfgKeyMigrateTimeout, migrate.DefaultMigrateTimeout)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	return settings{
		DataDir:        v.GetString(cfgKeyDataDir),
		LogFile:        v.GetString(cfgKeyLogFile),
		LogLevel:       v.GetString(cfgKeyLogLevel),
		SyncTimeout:    v.GetDuration(cfgKeySyncTimeout),
		MigrateTimeout: v.GetDuration(cfgKeyMigrateTimeout),
	}, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. If it already exists, the function returns nil.
func writeConfigIfMissing(configDir, dataDir string) (string, error) {
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	cfg := configFile{
		DataDir:        dataDir,
		LogLevel:       defaultLogLevel,
		SyncTimeout:    migrate.DefaultSyncTimeout.String(),
		MigrateTimeout: migrate.DefaultMigrateTimeout.String(),
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}
