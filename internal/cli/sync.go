package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tagall/internal/app"
	"github.com/mesh-intelligence/tagall/internal/migrate"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

// envSyncToken supplies the cloud token when --token is not given, keeping
// it out of shell history.
const envSyncToken = "TAGALL_SYNC_TOKEN"

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Configure and run cloud sync",
	}
	cmd.AddCommand(
		newSyncConfigureCmd(),
		newSyncShowCmd(),
		newSyncNowCmd(),
		newSyncDisableCmd(),
	)
	return cmd
}

func newSyncConfigureCmd() *cobra.Command {
	var (
		cfg       types.SyncConfig
		noMigrate bool
	)
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Move the store to a replica of a cloud database",
		Long: "Back up the store, switch it to an embedded replica of the cloud database,\n" +
			"restore the data into it and sync. A backend that fails to open is rolled\n" +
			"back to the previous local store. With --no-migrate the config is only saved\n" +
			"and takes effect on the next start.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Token == "" {
				cfg.Token = os.Getenv(envSyncToken)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if noMigrate {
					if err := a.SaveSyncConfig(ctx, cfg); err != nil {
						return err
					}
					red := cfg.Redacted()
					return printResult(cmd, red, func(w io.Writer) error {
						_, err := fmt.Fprintf(w, "saved sync config for %s\n", red.URL)
						return err
					})
				}
				rep, err := a.ConfigureCloudSync(ctx, cfg)
				return reportResult(cmd, rep, err)
			})
		},
	}
	cmd.Flags().StringVar(&cfg.URL, "url", "", "cloud database URL, e.g. libsql://db-org.turso.io")
	cmd.Flags().StringVar(&cfg.Token, "token", "", "auth token (default: $"+envSyncToken+")")
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "save the config without migrating")
	return cmd
}

func newSyncShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active backend and sync config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				st, err := a.SyncStatus(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd, st, func(w io.Writer) error {
					fmt.Fprintf(w, "mode:       %s\n", st.Mode)
					if !st.Configured {
						_, err := fmt.Fprintln(w, "cloud sync: not configured")
						return err
					}
					fmt.Fprintf(w, "url:        %s\n", st.URL)
					last := "never"
					if !st.LastSync.IsZero() {
						last = st.LastSync.Format(time.RFC3339)
					}
					_, err := fmt.Fprintf(w, "last sync:  %s (%d this session)\n", last, st.Syncs)
					return err
				})
			})
		},
	}
}

func newSyncNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Run one replication round",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.SyncNow(ctx); err != nil {
					return err
				}
				st, err := a.SyncStatus(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd, st, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "synced with %s\n", st.URL)
					return err
				})
			})
		},
	}
}

func newSyncDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Move the store back to a local-only database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				rep, err := a.DisableCloudSync(ctx)
				return reportResult(cmd, rep, err)
			})
		},
	}
}

// transitionView is a Transition with its error rendered.
type transitionView struct {
	migrate.Transition
	Error string `json:"error,omitempty"`
}

type reportView struct {
	RunID       string           `json:"run_id"`
	Target      string           `json:"target"`
	Final       migrate.Step     `json:"final"`
	RolledBack  bool             `json:"rolled_back"`
	Transitions []transitionView `json:"transitions"`
}

// reportResult prints a saga report, which is present even when the run
// failed, and then returns err.
func reportResult(cmd *cobra.Command, rep *migrate.Report, err error) error {
	if rep == nil || len(rep.Transitions) == 0 {
		return err
	}
	view := reportView{RunID: rep.RunID, Target: rep.Target, Final: rep.Final, RolledBack: rep.RolledBack()}
	for _, t := range rep.Transitions {
		tv := transitionView{Transition: t}
		if t.Err != nil {
			tv.Error = t.Err.Error()
		}
		view.Transitions = append(view.Transitions, tv)
	}
	perr := printResult(cmd, view, func(w io.Writer) error {
		rows := make([][]string, len(view.Transitions))
		for i, t := range view.Transitions {
			rows[i] = []string{string(t.Step), string(t.Outcome), t.Error}
		}
		if err := table(w, []string{"STEP", "OUTCOME", "ERROR"}, rows); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "migration %s to %s ended at %s\n", view.RunID, view.Target, view.Final)
		return err
	})
	if err != nil {
		return err
	}
	return perr
}
