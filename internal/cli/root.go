// Package cli implements the tagall command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tagall/internal/app"
	"github.com/mesh-intelligence/tagall/internal/migrate"
	"github.com/mesh-intelligence/tagall/internal/paths"
	"github.com/mesh-intelligence/tagall/internal/store"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

var flags rootFlags

// runtime is what PersistentPreRunE prepares for the subcommands.
type runtime struct {
	configDir string
	settings  settings
	logger    *slog.Logger
	logCloser io.Closer
}

var rt runtime

// NewRootCmd creates the top-level "tagall" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tagall",
		Short: "Items, tags and workspaces in a local or cloud-synced store",
		Long: "tagall keeps an ordered item tree and a tag graph in an embedded database.\n" +
			"The store runs locally or as a replica of a cloud libSQL database.",
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return teardown()
		},
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newItemCmd())
	root.AddCommand(newTagCmd())
	root.AddCommand(newWorkspaceCmd())
	root.AddCommand(newSyncCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tagall:", err)
		teardown()
		os.Exit(exitCode(err))
	}
}

// exitCode maps caller mistakes to exitUserError and everything else to
// exitSysError.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrConflict),
		errors.Is(err, types.ErrSyncNotConfigured),
		errors.Is(err, types.ErrSyncURLEmpty),
		errors.Is(err, types.ErrSyncTokenEmpty):
		return exitUserError
	default:
		return exitSysError
	}
}

// setup resolves the config directory, loads config.yaml and installs the
// logger.
func setup(cmd *cobra.Command, args []string) error {
	loc, err := locator.Resolve(paths.ConfigDir, flags.configDir, "")
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	configDir := loc.Dir
	s, err := loadSettings(configDir)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(s, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	rt = runtime{configDir: configDir, settings: s, logger: logger, logCloser: closer}
	return nil
}

func teardown() error {
	if rt.logCloser == nil {
		return nil
	}
	err := rt.logCloser.Close()
	rt.logCloser = nil
	return err
}

// checkRemote verifies a cloud database before sync configure touches the
// store. Tests replace it to run offline.
var checkRemote = store.CheckRemote

// locator resolves the config and data directories.
var locator = paths.System()

// resolveStore applies --data-dir > config.yaml data_dir > TAGALL_DATA_DIR
// > platform default.
func resolveStore() (paths.StoreFiles, paths.Location, error) {
	files, loc, err := locator.Store(flags.dataDir, rt.settings.DataDir)
	if err != nil {
		return paths.StoreFiles{}, paths.Location{}, fmt.Errorf("resolve data dir: %w", err)
	}
	return files, loc, nil
}

// openApp opens the store in the resolved data directory. The caller must
// close the returned store.
func openApp(ctx context.Context) (*app.App, *store.Store, error) {
	files, loc, err := resolveStore()
	if err != nil {
		return nil, nil, err
	}
	rt.logger.Debug("data dir resolved", "dir", loc.Dir, "source", loc.Source)
	s, err := store.Open(ctx, files, store.Options{Logger: rt.logger})
	if err != nil {
		return nil, nil, err
	}

	mopts := migrate.DefaultOptions()
	mopts.Logger = rt.logger
	mopts.MigrateTimeout = rt.settings.MigrateTimeout
	mopts.SyncTimeout = rt.settings.SyncTimeout
	a := app.New(s, app.Options{
		Logger:      rt.logger,
		Migrate:     mopts,
		SyncTimeout: rt.settings.SyncTimeout,
		CheckRemote: checkRemote,
	})
	return a, s, nil
}

// withApp opens the store, runs fn and closes the store.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, s, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, a)
}
