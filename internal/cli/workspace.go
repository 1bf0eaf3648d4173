package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tagall/internal/app"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces and their directories",
	}
	cmd.AddCommand(
		newWorkspaceListCmd(),
		newWorkspaceAddCmd(),
		newWorkspaceRenameCmd(),
		newWorkspaceRmCmd(),
		newWorkspaceDirCmd(),
	)
	return cmd
}

func newWorkspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				ws, err := a.Store().Workspaces.List(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd, ws, func(w io.Writer) error {
					rows := make([][]string, len(ws))
					for i, x := range ws {
						fixed := ""
						if types.IsFixedWorkspace(x.ID) {
							fixed = "fixed"
						}
						rows[i] = []string{fmtID(x.ID), x.Name, fixed}
					}
					return table(w, []string{"ID", "NAME", ""}, rows)
				})
			})
		},
	}
}

func newWorkspaceAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				ws, err := a.Store().Workspaces.Create(ctx, args[0])
				if err != nil {
					return err
				}
				return printResult(cmd, ws, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "created workspace %d %q\n", ws.ID, ws.Name)
					return err
				})
			})
		},
	}
}

func newWorkspaceRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("workspace", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store().Workspaces.Rename(ctx, id, args[1]); err != nil {
					return err
				}
				ws := types.Workspace{ID: id, Name: args[1]}
				return printResult(cmd, ws, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "renamed workspace %d to %q\n", id, args[1])
					return err
				})
			})
		},
	}
}

func newWorkspaceRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a workspace with its items and directories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("workspace", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store().Workspaces.Delete(ctx, id); err != nil {
					return err
				}
				return printResult(cmd, map[string]int64{"deleted": id}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "deleted workspace %d\n", id)
					return err
				})
			})
		},
	}
}

func newWorkspaceDirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dir",
		Short: "Manage the directories mounted into a workspace",
	}

	list := &cobra.Command{
		Use:   "list <workspace-id>",
		Short: "List the directories of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := parseID("workspace", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				dirs, err := a.Store().Workspaces.ListDirs(ctx, ws)
				if err != nil {
					return err
				}
				return printDirs(cmd, dirs)
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <workspace-id> <path>",
		Short: "Mount an absolute directory path into a workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := parseID("workspace", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				d, err := a.Store().Workspaces.AddDir(ctx, ws, args[1])
				if err != nil {
					return err
				}
				return printDirs(cmd, []types.WorkspaceDir{*d})
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <dir-id>",
		Short: "Unmount a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("directory", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store().Workspaces.RemoveDir(ctx, id); err != nil {
					return err
				}
				return printResult(cmd, map[string]int64{"deleted": id}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "removed directory %d\n", id)
					return err
				})
			})
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}

func printDirs(cmd *cobra.Command, dirs []types.WorkspaceDir) error {
	if dirs == nil {
		dirs = []types.WorkspaceDir{}
	}
	return printResult(cmd, dirs, func(w io.Writer) error {
		rows := make([][]string, len(dirs))
		for i, d := range dirs {
			rows[i] = []string{fmtID(d.ID), fmtID(d.WorkspaceID), strconv.FormatBool(d.Collapsed), d.Path}
		}
		return table(w, []string{"ID", "WORKSPACE", "COLLAPSED", "PATH"}, rows)
	})
}
