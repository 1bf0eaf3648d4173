// Package app holds the commands the CLI dispatches to. Each command
// combines store operations with the rules that sit above the store: item
// disposal on completion, tag edge checks, and switching the backend through
// the migration saga.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/tagall/internal/migrate"
	"github.com/mesh-intelligence/tagall/internal/store"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

// Options configures an App.
type Options struct {
	Logger *slog.Logger
	// Migrate configures the saga run by ConfigureCloudSync and
	// DisableCloudSync.
	Migrate migrate.Options
	// SyncTimeout bounds SyncNow; migrate.DefaultSyncTimeout when zero.
	SyncTimeout time.Duration
	// CheckRemote verifies a cloud database before anything is saved or
	// migrated; store.CheckRemote when nil. It runs under
	// Migrate.MigrateTimeout.
	CheckRemote func(ctx context.Context, cfg types.SyncConfig) error
}

// App runs commands against one store.
type App struct {
	store       *store.Store
	saga        *migrate.Saga
	log         *slog.Logger
	syncTimeout time.Duration

	checkRemote  func(ctx context.Context, cfg types.SyncConfig) error
	checkTimeout time.Duration
}

// New returns an App for s.
func New(s *store.Store, opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Migrate.Logger == nil {
		opts.Migrate.Logger = opts.Logger
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = migrate.DefaultSyncTimeout
	}
	if opts.CheckRemote == nil {
		opts.CheckRemote = store.CheckRemote
	}
	checkTimeout := opts.Migrate.MigrateTimeout
	if checkTimeout <= 0 {
		checkTimeout = migrate.DefaultMigrateTimeout
	}
	return &App{
		store:       s,
		saga:        migrate.New(s.Guard(), s.Files(), opts.Migrate),
		log:         opts.Logger,
		syncTimeout: opts.SyncTimeout,

		checkRemote:  opts.CheckRemote,
		checkTimeout: checkTimeout,
	}
}

// Store returns the underlying store.
func (a *App) Store() *store.Store { return a.store }

// ToggleItem flips the completed flag of an item. Completing a once item
// deletes it together with its subtree; deleted reports that case. The
// returned item carries the toggled state either way.
func (a *App) ToggleItem(ctx context.Context, id int64) (it *types.Item, deleted bool, err error) {
	it, err = a.store.Items.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	it.Completed = !it.Completed

	if it.DisposeOnComplete() {
		if err := a.store.Items.Delete(ctx, id); err != nil {
			return nil, false, err
		}
		a.log.Info("once item completed and removed", "id", id)
		return it, true, nil
	}

	it, err = a.store.Items.Update(ctx, it)
	if err != nil {
		return nil, false, err
	}
	return it, false, nil
}

// AddTagParent places child under parent in the tag DAG.
func (a *App) AddTagParent(ctx context.Context, child, parent int64) error {
	if child == parent {
		return types.InvalidInput("a tag cannot be its own parent")
	}
	return a.store.Tags.AddParent(ctx, child, parent)
}

// verifyRemote rejects a config whose cloud database cannot be reached.
func (a *App) verifyRemote(ctx context.Context, cfg types.SyncConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, a.checkTimeout)
	defer cancel()
	if err := a.checkRemote(ctx, cfg); err != nil {
		return fmt.Errorf("cloud database %s unreachable: %w", cfg.URL, err)
	}
	return nil
}

// ConfigureCloudSync checks that the cloud database in cfg answers and
// migrates the store to a replica of it. An unreachable database leaves the
// store untouched.
func (a *App) ConfigureCloudSync(ctx context.Context, cfg types.SyncConfig) (*migrate.Report, error) {
	if err := a.verifyRemote(ctx, cfg); err != nil {
		return nil, err
	}
	a.log.Info("configuring cloud sync", "url", cfg.URL)
	return a.saga.Run(ctx, &cfg)
}

// DisableCloudSync migrates a replica back to a local store.
func (a *App) DisableCloudSync(ctx context.Context) (*migrate.Report, error) {
	cfg, err := store.LoadSyncConfig(a.store.Files())
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, types.ErrSyncNotConfigured
	}
	a.log.Info("disabling cloud sync", "url", cfg.URL)
	return a.saga.Run(ctx, nil)
}

// GetSyncConfig returns the persisted sync config, or nil.
func (a *App) GetSyncConfig() (*types.SyncConfig, error) {
	return store.LoadSyncConfig(a.store.Files())
}

// SaveSyncConfig checks that the cloud database in cfg answers and persists
// cfg without migrating. The store opens as a replica from the next start
// on.
func (a *App) SaveSyncConfig(ctx context.Context, cfg types.SyncConfig) error {
	if err := a.verifyRemote(ctx, cfg); err != nil {
		return err
	}
	return store.SaveSyncConfig(a.store.Files(), cfg)
}

// SyncNow runs one replication round.
func (a *App) SyncNow(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.syncTimeout)
	defer cancel()
	if err := a.store.Sync(ctx); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// SyncStatus describes the active backend and its configuration.
type SyncStatus struct {
	Mode       string    `json:"mode"`
	Configured bool      `json:"configured"`
	URL        string    `json:"url,omitempty"`
	LastSync   time.Time `json:"last_sync,omitzero"`
	Syncs      int       `json:"sync_count"`
}

// SyncStatus reports the active backend. Configured can be true while Mode
// is local when a config was saved without migrating.
func (a *App) SyncStatus(ctx context.Context) (SyncStatus, error) {
	st, err := a.store.Status(ctx)
	if err != nil {
		return SyncStatus{}, err
	}
	cfg, err := store.LoadSyncConfig(a.store.Files())
	if err != nil {
		return SyncStatus{}, err
	}
	out := SyncStatus{Mode: st.Mode, LastSync: st.LastSync, Syncs: st.Syncs}
	if cfg != nil {
		out.Configured = true
		out.URL = cfg.URL
	}
	return out, nil
}
