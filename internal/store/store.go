// Package store persists the item tree, the tag DAG, workspaces and window
// state in an embedded SQL database. A store runs on a local sqlite file or,
// once a sync config is saved beside it, as an embedded replica of a cloud
// libSQL database.
//
// All repositories of a store share one Guard. Swapping the Guard's
// connection (see internal/migrate) moves every repository to the new
// backend at once.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/tagall/internal/paths"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

// Options configures Open.
type Options struct {
	Logger *slog.Logger
	// Opener opens connections; OpenConn when nil.
	Opener Opener
	// Now stamps created_at and updated_at; time.Now when nil.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Opener == nil {
		o.Opener = OpenConn
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Store bundles the repositories of one database.
type Store struct {
	files paths.StoreFiles
	guard *Guard
	log   *slog.Logger

	Items      *ItemRepo
	Tags       *TagRepo
	Workspaces *WorkspaceRepo
	Windows    *WindowStateRepo
}

// New builds a store whose repositories share guard.
func New(files paths.StoreFiles, guard *Guard, opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{
		files:      files,
		guard:      guard,
		log:        opts.Logger,
		Items:      &ItemRepo{g: guard, now: opts.Now},
		Tags:       &TagRepo{g: guard},
		Workspaces: &WorkspaceRepo{g: guard},
		Windows:    &WindowStateRepo{g: guard},
	}
}

// Open opens the store in files, in replica mode when a sync config is
// saved and in local mode otherwise.
//
// A replica whose local files cannot be opened (ErrLocalState) is
// quarantined and opened once more from scratch; the cloud holds the data.
// Connection failures are returned as is, and a local store is never
// quarantined.
func Open(ctx context.Context, files paths.StoreFiles, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(files.Dir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	cfg, err := LoadSyncConfig(files)
	if err != nil {
		return nil, err
	}

	conn, err := opts.Opener(ctx, files, cfg)
	if err != nil && cfg != nil && errors.Is(err, ErrLocalState) {
		conn, err = reopenQuarantined(ctx, files, cfg, err, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", files.DB, err)
	}

	opts.Logger.Info("store opened", "path", files.DB, "mode", conn.Engine.Mode())
	return New(files, NewGuard(conn), opts), nil
}

func reopenQuarantined(ctx context.Context, files paths.StoreFiles, cfg *types.SyncConfig, cause error, opts Options) (*Conn, error) {
	suffix := uuid.Must(uuid.NewV7()).String()
	opts.Logger.Warn("replica failed to open, quarantining local state",
		"path", files.DB, "quarantine", files.Quarantine(suffix), "err", cause)

	if err := Quarantine(files, suffix); err != nil {
		return nil, errors.Join(cause, err)
	}
	conn, err := opts.Opener(ctx, files, cfg)
	if err != nil {
		return nil, fmt.Errorf("after quarantine: %w", errors.Join(cause, err))
	}
	return conn, nil
}

// Quarantine moves the store file and its side files into the directory
// files.Quarantine(suffix), leaving the store path free.
func Quarantine(files paths.StoreFiles, suffix string) error {
	dir := files.Quarantine(suffix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating quarantine dir: %w", err)
	}
	all := append(append([]string{files.DB}, files.Journal()...), files.ReplicaMeta()...)
	for _, p := range all {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.Rename(p, filepath.Join(dir, filepath.Base(p))); err != nil {
			return fmt.Errorf("quarantining %s: %w", p, err)
		}
	}
	return nil
}

// Files returns the file set of the store.
func (s *Store) Files() paths.StoreFiles { return s.files }

// Guard returns the guard shared by the repositories.
func (s *Store) Guard() *Guard { return s.guard }

// Close closes the current connection. Repository calls fail with
// ErrUninitialized afterwards.
func (s *Store) Close() error { return s.guard.Close() }

// Snapshot exports the full data set.
func (s *Store) Snapshot(ctx context.Context) (*types.Snapshot, error) {
	var snap *types.Snapshot
	err := s.guard.Do(ctx, func(c *Conn) error {
		var err error
		snap, err = Export(ctx, c.DB)
		return err
	})
	return snap, err
}

// Sync runs one replication round. Local stores return
// ErrSyncNotConfigured.
func (s *Store) Sync(ctx context.Context) error {
	return s.guard.Do(ctx, func(c *Conn) error {
		start := time.Now()
		if err := c.Engine.Sync(ctx); err != nil {
			return err
		}
		s.log.Info("store synced", "path", s.files.DB, "elapsed", time.Since(start))
		return nil
	})
}

// Status describes the active backend.
type Status struct {
	Mode     string
	LastSync time.Time
	Syncs    int
}

// Status reports the active backend.
func (s *Store) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.guard.Do(ctx, func(c *Conn) error {
		stats := c.Engine.Stats()
		st = Status{Mode: c.Engine.Mode(), LastSync: stats.Last, Syncs: stats.Count}
		return nil
	})
	return st, err
}
