package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tagall/internal/app"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long: "Create the configuration and data directories, write a default config.yaml\n" +
			"if none exists, and create or upgrade the store.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

type initResult struct {
	Config string `json:"config"`
	Store  string `json:"store"`
	Mode   string `json:"mode"`
}

func runInit(cmd *cobra.Command, args []string) error {
	_, loc, err := resolveStore()
	if err != nil {
		return err
	}
	// Only record data_dir when it was chosen explicitly.
	var recorded string
	if loc.Source.Explicit() {
		recorded = loc.Dir
	}
	configPath, err := writeConfigIfMissing(rt.configDir, recorded)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		st, err := a.Store().Status(ctx)
		if err != nil {
			return err
		}
		res := initResult{Config: configPath, Store: a.Store().Files().DB, Mode: st.Mode}
		rt.logger.Debug("initialized", "config", configPath, "data_dir", loc.Dir, "source", loc.Source)
		return printResult(cmd, res, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "tagall initialized\nconfig: %s\nstore:  %s (%s)\n", res.Config, res.Store, res.Mode)
			return err
		})
	})
}
