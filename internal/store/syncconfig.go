package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/tagall/internal/paths"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

// LoadSyncConfig reads the sync config persisted beside the store. It
// returns nil, nil when none is saved.
func LoadSyncConfig(files paths.StoreFiles) (*types.SyncConfig, error) {
	data, err := os.ReadFile(files.SyncConfig())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sync config: %w", err)
	}

	var cfg types.SyncConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing sync config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sync config %s: %w", files.SyncConfig(), err)
	}
	return &cfg, nil
}

// SaveSyncConfig validates cfg and persists it atomically. The file holds a
// credential and is written owner-only.
func SaveSyncConfig(files paths.StoreFiles, cfg types.SyncConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sync config: %w", err)
	}
	if err := os.MkdirAll(files.Dir(), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if err := writeFileAtomic(files.SyncConfig(), data, 0o600); err != nil {
		return fmt.Errorf("writing sync config: %w", err)
	}
	return nil
}

// DeleteSyncConfig removes the persisted sync config. A missing file is not
// an error.
func DeleteSyncConfig(files paths.StoreFiles) error {
	err := os.Remove(files.SyncConfig())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting sync config: %w", err)
	}
	return nil
}
