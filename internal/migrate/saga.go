// Package migrate moves a store between the local backend and a cloud
// replica without losing its data.
//
// A run walks a fixed sequence of steps. Backup, safety copy, remote schema
// migration and restore are best effort; saving the config and opening the
// new backend are not. When either of those fails the run rolls back to the
// previous backend: from this run's safety copy when there is one, from the
// exported snapshot otherwise. A failed initial sync is reported but not
// rolled back, since the new backend already holds the data.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/tagall/internal/paths"
	"github.com/mesh-intelligence/tagall/internal/store"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

// Default timeouts for the steps that talk to the network.
const (
	DefaultSettleDelay    = 200 * time.Millisecond
	DefaultMigrateTimeout = 30 * time.Second
	DefaultSyncTimeout    = 30 * time.Second
)

// Options configures a Saga.
type Options struct {
	// Opener opens the new backend; store.OpenConn when nil.
	Opener store.Opener
	// MigrateRemote applies the schema to the cloud database;
	// store.MigrateRemote when nil.
	MigrateRemote func(ctx context.Context, cfg types.SyncConfig) error
	// PersistConfig saves cfg beside the store, or deletes the saved
	// config when cfg is nil; persistConfig when nil.
	PersistConfig func(files paths.StoreFiles, cfg *types.SyncConfig) error

	// SettleDelay is how long to wait after closing the old connection for
	// the engine to release its file locks.
	SettleDelay    time.Duration
	MigrateTimeout time.Duration
	SyncTimeout    time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// DefaultOptions returns the options used in production.
func DefaultOptions() Options {
	return Options{
		Opener:         store.OpenConn,
		MigrateRemote:  store.MigrateRemote,
		PersistConfig:  persistConfig,
		SettleDelay:    DefaultSettleDelay,
		MigrateTimeout: DefaultMigrateTimeout,
		SyncTimeout:    DefaultSyncTimeout,
		Logger:         slog.Default(),
		Now:            time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Opener == nil {
		o.Opener = d.Opener
	}
	if o.MigrateRemote == nil {
		o.MigrateRemote = d.MigrateRemote
	}
	if o.PersistConfig == nil {
		o.PersistConfig = d.PersistConfig
	}
	if o.MigrateTimeout <= 0 {
		o.MigrateTimeout = d.MigrateTimeout
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = d.SyncTimeout
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Saga migrates the store behind guard. Runs must not overlap.
type Saga struct {
	guard *store.Guard
	files paths.StoreFiles
	opts  Options
}

// New returns a saga for the store in files whose live connection is held
// by guard. A zero SettleDelay in opts means no wait.
func New(guard *store.Guard, files paths.StoreFiles, opts Options) *Saga {
	return &Saga{guard: guard, files: files, opts: opts.withDefaults()}
}

// run carries the state of one Run call.
type run struct {
	report *Report
	log    *slog.Logger
	now    func() time.Time

	// snap is the data set exported by the backup step, nil when it failed.
	snap *types.Snapshot
	// copied is set once this run wrote the safety copy. A file left at
	// that path by an earlier run is never restored.
	copied bool
}

func (r *run) record(step Step, outcome Outcome, err error) {
	r.report.Transitions = append(r.report.Transitions, Transition{
		Step:    step,
		Outcome: outcome,
		Err:     err,
		At:      r.now(),
	})
	r.report.Final = step

	attrs := []any{"run", r.report.RunID, "step", step, "outcome", outcome}
	if err != nil {
		r.log.Warn("migration step", append(attrs, "err", err)...)
		return
	}
	r.log.Info("migration step", attrs...)
}

// Run moves the store to target: a cloud replica for a non-nil target,
// the local backend for nil. The returned report is never nil.
func (s *Saga) Run(ctx context.Context, target *types.SyncConfig) (*Report, error) {
	mode := types.ModeLocal
	if target != nil {
		if err := target.Validate(); err != nil {
			return &Report{Target: types.ModeReplica, Final: StepIdle}, err
		}
		mode = types.ModeReplica
	}
	r := &run{
		report: &Report{RunID: uuid.Must(uuid.NewV7()).String(), Target: mode},
		log:    s.opts.Logger.With("component", "migrate"),
		now:    s.opts.Now,
	}

	prev, err := store.LoadSyncConfig(s.files)
	if err != nil {
		r.record(StepIdle, OutcomeFailed, err)
		return r.report, fmt.Errorf("loading current sync config: %w", err)
	}
	r.record(StepIdle, OutcomeOK, nil)

	r.snap = s.backup(ctx, r)
	s.disconnect(r)
	s.safetyCopy(r)
	s.migrateSchema(ctx, r, target)

	if err := s.saveConfig(r, target); err != nil {
		return r.report, s.rollback(ctx, r, prev, err, false)
	}

	conn, err := s.openBackend(ctx, r, target)
	if err != nil {
		return r.report, s.rollback(ctx, r, prev, err, true)
	}

	restored := s.restore(ctx, r, conn, r.snap)
	s.guard.Replace(store.NewGuard(conn))

	if err := s.sync(ctx, r); err != nil {
		return r.report, fmt.Errorf("initial sync after migration: %w", err)
	}
	if restored {
		s.cleanup(r)
	}
	return r.report, nil
}

// backup exports the data set through the live connection and writes it to
// the backup side file. A failed export leaves the run without a snapshot.
func (s *Saga) backup(ctx context.Context, r *run) *types.Snapshot {
	var snap *types.Snapshot
	err := s.guard.Do(ctx, func(c *store.Conn) error {
		var err error
		snap, err = store.Export(ctx, c.DB)
		return err
	})
	if errors.Is(err, types.ErrUninitialized) {
		r.record(StepBackup, OutcomeSkipped, err)
		return nil
	}
	if err != nil {
		r.record(StepBackup, OutcomeFailed, err)
		return nil
	}

	items, tags, workspaces := snap.Counts()
	r.log.Info("data set exported", "run", r.report.RunID,
		"items", items, "tags", tags, "workspaces", workspaces)
	if err := store.WriteSnapshotFile(s.files.Backup(), snap); err != nil {
		r.log.Warn("backup file not written", "run", r.report.RunID, "path", s.files.Backup(), "err", err)
	}
	r.record(StepBackup, OutcomeOK, nil)
	return snap
}

// disconnect releases the old connection. From here until the new one is
// installed repositories fail with ErrUninitialized.
func (s *Saga) disconnect(r *run) {
	old := s.guard.Take()
	if old == nil {
		r.record(StepDisconnected, OutcomeSkipped, nil)
		return
	}
	err := old.Close()
	if s.opts.SettleDelay > 0 {
		time.Sleep(s.opts.SettleDelay)
	}
	if err != nil {
		r.record(StepDisconnected, OutcomeFailed, err)
		return
	}
	r.record(StepDisconnected, OutcomeOK, nil)
}

// safetyCopy copies the closed store file aside. A stale copy from an
// earlier run is removed first so rollback can only see this run's copy.
func (s *Saga) safetyCopy(r *run) {
	if err := os.Remove(s.files.SafetyCopy()); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.record(StepSafetyCopy, OutcomeFailed, fmt.Errorf("removing stale safety copy: %w", err))
		return
	}
	if !s.files.Exists() {
		r.record(StepSafetyCopy, OutcomeSkipped, nil)
		return
	}
	if err := store.CopyFile(s.files.DB, s.files.SafetyCopy()); err != nil {
		r.record(StepSafetyCopy, OutcomeFailed, err)
		return
	}
	r.copied = true
	r.record(StepSafetyCopy, OutcomeOK, nil)
}

// migrateSchema prepares the cloud database so the replica can write as
// soon as it opens. A local target has nothing to prepare.
func (s *Saga) migrateSchema(ctx context.Context, r *run, target *types.SyncConfig) {
	if target == nil {
		r.record(StepSchemaMigrated, OutcomeSkipped, nil)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.MigrateTimeout)
	defer cancel()
	if err := s.opts.MigrateRemote(ctx, *target); err != nil {
		r.record(StepSchemaMigrated, OutcomeFailed, err)
		return
	}
	r.record(StepSchemaMigrated, OutcomeOK, nil)
}

// saveConfig persists the target before the old store is deleted, so a
// crash from here on reopens into the target backend.
func (s *Saga) saveConfig(r *run, target *types.SyncConfig) error {
	if err := s.opts.PersistConfig(s.files, target); err != nil {
		r.record(StepConfigSaved, OutcomeFailed, err)
		return err
	}
	r.record(StepConfigSaved, OutcomeOK, nil)
	return nil
}

func persistConfig(files paths.StoreFiles, cfg *types.SyncConfig) error {
	if cfg == nil {
		return store.DeleteSyncConfig(files)
	}
	return store.SaveSyncConfig(files, *cfg)
}

func (s *Saga) openBackend(ctx context.Context, r *run, target *types.SyncConfig) (*store.Conn, error) {
	if err := s.files.RemoveAll(); err != nil {
		err = fmt.Errorf("removing old store files: %w", err)
		r.record(StepBackendReady, OutcomeFailed, err)
		return nil, err
	}
	conn, err := s.opts.Opener(ctx, s.files, target)
	if err != nil {
		r.record(StepBackendReady, OutcomeFailed, err)
		return nil, err
	}
	r.record(StepBackendReady, OutcomeOK, nil)
	return conn, nil
}

// restore replays the snapshot into the new backend. It reports whether
// the data set is known to be complete.
func (s *Saga) restore(ctx context.Context, r *run, conn *store.Conn, snap *types.Snapshot) bool {
	if snap == nil {
		r.record(StepRestored, OutcomeSkipped, nil)
		return true
	}
	if err := store.Restore(ctx, conn.DB, snap); err != nil {
		r.record(StepRestored, OutcomeFailed, err)
		return false
	}
	r.record(StepRestored, OutcomeOK, nil)
	return true
}

func (s *Saga) sync(ctx context.Context, r *run) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SyncTimeout)
	defer cancel()
	err := s.guard.Do(ctx, func(c *store.Conn) error {
		return c.Engine.Sync(ctx)
	})
	switch {
	case errors.Is(err, types.ErrSyncNotConfigured):
		r.record(StepSynced, OutcomeSkipped, nil)
		return nil
	case err != nil:
		r.record(StepSynced, OutcomeFailed, err)
		return err
	}
	r.record(StepSynced, OutcomeOK, nil)
	return nil
}

// cleanup deletes the side files once the data set is safely in the new
// backend.
func (s *Saga) cleanup(r *run) {
	for _, p := range []string{s.files.Backup(), s.files.SafetyCopy()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.log.Warn("side file not removed", "run", r.report.RunID, "path", p, "err", err)
		}
	}
}

// rollback puts the previous backend back in place: this run's safety copy
// over the store path, the previous sync config, and a fresh connection in
// the guard. removed tells whether the old store files were already
// deleted. When they were and no safety copy can be put back, the exported
// snapshot is replayed into the reopened local store instead.
func (s *Saga) rollback(ctx context.Context, r *run, prev *types.SyncConfig, cause error, removed bool) error {
	var errs []error

	fromCopy := false
	if r.copied {
		if err := s.files.RemoveAll(); err != nil {
			errs = append(errs, fmt.Errorf("clearing store files: %w", err))
		} else if err := store.CopyFile(s.files.SafetyCopy(), s.files.DB); err != nil {
			errs = append(errs, fmt.Errorf("restoring safety copy: %w", err))
			removed = true
		} else {
			fromCopy = true
		}
	}
	if removed && !fromCopy {
		// Drop whatever the failed open or copy left behind.
		if err := s.files.RemoveAll(); err != nil {
			errs = append(errs, fmt.Errorf("clearing store files: %w", err))
		}
	}

	if err := s.opts.PersistConfig(s.files, prev); err != nil {
		errs = append(errs, fmt.Errorf("restoring sync config: %w", err))
	}

	rbErr := errors.Join(errs...)
	if rbErr != nil {
		r.record(StepRollingBack, OutcomeFailed, rbErr)
	} else {
		r.record(StepRollingBack, OutcomeOK, nil)
	}

	conn, err := s.opts.Opener(ctx, s.files, prev)
	if err != nil {
		r.record(StepLocalRestored, OutcomeFailed, err)
		return fmt.Errorf("migration failed: %w; rollback could not reopen the store: %w", cause, errors.Join(rbErr, err))
	}

	// A replica refills itself from the cloud; only a local store needs the
	// snapshot replayed.
	if removed && !fromCopy {
		if r.snap == nil || prev != nil {
			r.record(StepRestored, OutcomeSkipped, nil)
		} else if err := store.Restore(ctx, conn.DB, r.snap); err != nil {
			r.record(StepRestored, OutcomeFailed, err)
			rbErr = errors.Join(rbErr, err)
		} else {
			r.record(StepRestored, OutcomeOK, nil)
		}
	}

	s.guard.Install(conn)
	r.record(StepLocalRestored, OutcomeOK, nil)

	if rbErr != nil {
		return fmt.Errorf("migration failed: %w; rollback incomplete: %w", cause, rbErr)
	}
	return fmt.Errorf("migration failed and was rolled back: %w", cause)
}
