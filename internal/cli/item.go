package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tagall/internal/app"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage the item tree",
	}
	cmd.AddCommand(
		newItemAddCmd(),
		newItemListCmd(),
		newItemChildrenCmd(),
		newItemMoveCmd(),
		newItemRmCmd(),
		newItemToggleCmd(),
		newItemCollapseCmd(),
		newItemDescendantsCmd(),
		newItemResetCmd(),
	)
	return cmd
}

// scopeFlags selects a sibling set: a parent item or the roots of a
// workspace.
type scopeFlags struct {
	workspace int64
	parent    int64
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64VarP(&f.workspace, "workspace", "w", types.WorkspaceTodos, "workspace id")
	cmd.Flags().Int64VarP(&f.parent, "parent", "p", 0, "parent item id (default: workspace root)")
}

func (f *scopeFlags) parentID() *int64 {
	if f.parent == 0 {
		return nil
	}
	p := f.parent
	return &p
}

func newItemAddCmd() *cobra.Command {
	var (
		scope    scopeFlags
		itemType string
		memo     string
		target   int
		position int
	)
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Create an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := types.NewItem{
				Text:        args[0],
				Type:        types.ParseItemType(itemType),
				ParentID:    scope.parentID(),
				WorkspaceID: scope.workspace,
			}
			if cmd.Flags().Changed("memo") {
				n.Memo = &memo
			}
			if cmd.Flags().Changed("target") {
				n.TargetCount = &target
			}
			if cmd.Flags().Changed("position") {
				n.Position = &position
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				it, err := a.Store().Items.Create(ctx, n)
				if err != nil {
					return err
				}
				return printResult(cmd, it, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "created item %d at position %d\n", it.ID, it.Position)
					return err
				})
			})
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVarP(&itemType, "type", "t", string(types.ItemDaily), "item type: daily, once, countdown, document, label")
	cmd.Flags().StringVar(&memo, "memo", "", "memo text")
	cmd.Flags().IntVar(&target, "target", 0, "target count for countdown items")
	cmd.Flags().IntVar(&position, "position", 0, "insert at this sibling index (default: append)")
	return cmd
}

func newItemListCmd() *cobra.Command {
	var workspace int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the items of a workspace in tree order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				items, err := treeOrder(ctx, a, workspace)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printItems(cmd, items)
				}
				return printTree(cmd.OutOrStdout(), items)
			})
		},
	}
	cmd.Flags().Int64VarP(&workspace, "workspace", "w", types.WorkspaceTodos, "workspace id")
	return cmd
}

// treeOrder returns the items of a workspace depth-first, siblings by
// position.
func treeOrder(ctx context.Context, a *app.App, workspace int64) ([]types.Item, error) {
	roots, err := a.Store().Items.ChildrenOf(ctx, nil, workspace)
	if err != nil {
		return nil, err
	}
	var out []types.Item
	for _, r := range roots {
		out = append(out, r)
		desc, err := a.Store().Items.DescendantsOf(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, desc...)
	}
	return out, nil
}

// printTree prints items indented by depth, hiding the subtrees of
// collapsed items.
func printTree(w io.Writer, items []types.Item) error {
	depth := make(map[int64]int, len(items))
	hidden := make(map[int64]bool)
	for _, it := range items {
		d := 0
		if it.ParentID != nil {
			d = depth[*it.ParentID] + 1
			if hidden[*it.ParentID] {
				hidden[it.ID] = true
				continue
			}
		}
		depth[it.ID] = d
		if it.Collapsed {
			hidden[it.ID] = true
		}
		marker := " "
		if it.Collapsed {
			marker = "+"
		}
		if _, err := fmt.Fprintf(w, "%*s%s%s %s  (%d)\n", 2*d, "", marker, checkbox(it.Completed), it.Text, it.ID); err != nil {
			return err
		}
	}
	return nil
}

func newItemChildrenCmd() *cobra.Command {
	var workspace int64
	cmd := &cobra.Command{
		Use:   "children [parent-id]",
		Short: "List the direct children of an item, or the roots of a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var parent *int64
			if len(args) == 1 {
				id, err := parseID("item", args[0])
				if err != nil {
					return err
				}
				parent = &id
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				ws := workspace
				if parent != nil && !cmd.Flags().Changed("workspace") {
					p, err := a.Store().Items.Get(ctx, *parent)
					if err != nil {
						return err
					}
					ws = p.WorkspaceID
				}
				items, err := a.Store().Items.ChildrenOf(ctx, parent, ws)
				if err != nil {
					return err
				}
				return printItems(cmd, items)
			})
		},
	}
	cmd.Flags().Int64VarP(&workspace, "workspace", "w", types.WorkspaceTodos, "workspace id")
	return cmd
}

func newItemMoveCmd() *cobra.Command {
	var parent int64
	cmd := &cobra.Command{
		Use:   "move <id> <position>",
		Short: "Move an item to a position under a parent (default: root)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			pos, err := parsePosition(args[1])
			if err != nil {
				return err
			}
			var newParent *int64
			if parent != 0 {
				newParent = &parent
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store().Items.MoveTo(ctx, id, newParent, pos); err != nil {
					return err
				}
				it, err := a.Store().Items.Get(ctx, id)
				if err != nil {
					return err
				}
				return printResult(cmd, it, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "moved item %d under %s at position %d\n", id, fmtParent(it.ParentID), it.Position)
					return err
				})
			})
		},
	}
	cmd.Flags().Int64VarP(&parent, "parent", "p", 0, "new parent item id (default: root)")
	return cmd
}

func newItemRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an item and its subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store().Items.Delete(ctx, id); err != nil {
					return err
				}
				return printResult(cmd, map[string]int64{"deleted": id}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "deleted item %d\n", id)
					return err
				})
			})
		},
	}
}

type toggleResult struct {
	Item    *types.Item `json:"item"`
	Deleted bool        `json:"deleted"`
}

func newItemToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle the completed flag; completing a once item deletes it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				it, deleted, err := a.ToggleItem(ctx, id)
				if err != nil {
					return err
				}
				return printResult(cmd, toggleResult{Item: it, Deleted: deleted}, func(w io.Writer) error {
					switch {
					case deleted:
						_, err = fmt.Fprintf(w, "completed and removed item %d\n", id)
					default:
						_, err = fmt.Fprintf(w, "%s %s\n", checkbox(it.Completed), it.Text)
					}
					return err
				})
			})
		},
	}
}

func newItemCollapseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collapse <id>",
		Short: "Toggle the collapsed flag of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				collapsed, err := a.Store().Items.ToggleCollapsed(ctx, id)
				if err != nil {
					return err
				}
				return printResult(cmd, map[string]bool{"collapsed": collapsed}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "item %d collapsed: %t\n", id, collapsed)
					return err
				})
			})
		},
	}
}

func newItemDescendantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "descendants <id>",
		Short: "List every item below an item in pre-order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				items, err := a.Store().Items.DescendantsOf(ctx, id)
				if err != nil {
					return err
				}
				return printItems(cmd, items)
			})
		},
	}
}

func newItemResetCmd() *cobra.Command {
	var workspace int64
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the completed flag of every item in a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Store().Items.ResetCompleted(ctx, workspace)
				if err != nil {
					return err
				}
				return printResult(cmd, map[string]int64{"reset": n}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "reset %d items\n", n)
					return err
				})
			})
		},
	}
	cmd.Flags().Int64VarP(&workspace, "workspace", "w", types.WorkspaceTodos, "workspace id")
	return cmd
}
