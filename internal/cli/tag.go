package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tagall/internal/app"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage the tag hierarchy",
	}
	cmd.AddCommand(
		newTagAddCmd(),
		newTagListCmd(),
		newTagRmCmd(),
		newTagParentCmd(),
		newTagRootsCmd(),
		newTagMoveCmd(),
		newTagChildrenCmd(),
		newTagApplyCmd(),
		newTagUnapplyCmd(),
	)
	return cmd
}

// tagArgs parses leading tag id arguments.
func tagArgs(args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, a := range args {
		id, err := parseID("tag", a)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func newTagAddCmd() *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a root tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c *string
			if cmd.Flags().Changed("color") {
				c = &color
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				t, err := a.Store().Tags.Create(ctx, args[0], c)
				if err != nil {
					return err
				}
				return printResult(cmd, t, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "created tag %d %q\n", t.ID, t.Name)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "display color, e.g. #ff8800")
	return cmd
}

func newTagListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tags, err := a.Store().Tags.List(ctx)
				if err != nil {
					return err
				}
				return printTags(cmd, tags)
			})
		},
	}
}

func newTagRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a tag; its orphaned children become roots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := tagArgs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store().Tags.Delete(ctx, ids[0]); err != nil {
					return err
				}
				return printResult(cmd, map[string]int64{"deleted": ids[0]}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "deleted tag %d\n", ids[0])
					return err
				})
			})
		},
	}
}

func newTagParentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parent",
		Short: "Manage parent edges between tags",
	}

	add := &cobra.Command{
		Use:   "add <child> <parent>",
		Short: "Place a tag under a parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := tagArgs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.AddTagParent(ctx, ids[0], ids[1]); err != nil {
					return err
				}
				return edgeDone(cmd, "added", ids[0], ids[1])
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <child> <parent>",
		Short: "Remove a parent edge; a tag left without parents becomes a root",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := tagArgs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store().Tags.RemoveParent(ctx, ids[0], ids[1]); err != nil {
					return err
				}
				return edgeDone(cmd, "removed", ids[0], ids[1])
			})
		},
	}

	move := &cobra.Command{
		Use:   "move <child> <parent> <position>",
		Short: "Reorder a child among the children of a parent",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := tagArgs(args[:2])
			if err != nil {
				return err
			}
			pos, err := parsePosition(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store().Tags.MoveChild(ctx, ids[0], ids[1], pos); err != nil {
					return err
				}
				return edgeDone(cmd, "moved", ids[0], ids[1])
			})
		},
	}

	cmd.AddCommand(add, rm, move)
	return cmd
}

func edgeDone(cmd *cobra.Command, verb string, child, parent int64) error {
	v := map[string]any{"action": verb, "child": child, "parent": parent}
	return printResult(cmd, v, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s edge %d -> %d\n", verb, child, parent)
		return err
	})
}

func newTagRootsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roots",
		Short: "List root tags in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tags, err := a.Store().Tags.Roots(ctx)
				if err != nil {
					return err
				}
				return printTags(cmd, tags)
			})
		},
	}
}

func newTagMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <position>",
		Short: "Move a root tag to a position in the root ordering",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := tagArgs(args[:1])
			if err != nil {
				return err
			}
			pos, err := parsePosition(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store().Tags.MoveRoot(ctx, ids[0], pos); err != nil {
					return err
				}
				roots, err := a.Store().Tags.Roots(ctx)
				if err != nil {
					return err
				}
				return printTags(cmd, roots)
			})
		},
	}
}

func newTagChildrenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "children <id>",
		Short: "List the children of a tag in edge order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := tagArgs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tags, err := a.Store().Tags.ChildrenOf(ctx, ids[0])
				if err != nil {
					return err
				}
				return printTags(cmd, tags)
			})
		},
	}
}

func newTagApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <item-id> <tag-id>",
		Short: "Attach a tag to an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return itemTagEdge(cmd, args, true)
		},
	}
}

func newTagUnapplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unapply <item-id> <tag-id>",
		Short: "Detach a tag from an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return itemTagEdge(cmd, args, false)
		},
	}
}

func itemTagEdge(cmd *cobra.Command, args []string, attach bool) error {
	item, err := parseID("item", args[0])
	if err != nil {
		return err
	}
	tag, err := parseID("tag", args[1])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if attach {
			err = a.Store().Tags.TagItem(ctx, item, tag)
		} else {
			err = a.Store().Tags.UntagItem(ctx, item, tag)
		}
		if err != nil {
			return err
		}
		tags, err := a.Store().Tags.TagsOfItem(ctx, item)
		if err != nil {
			return err
		}
		return printTags(cmd, tags)
	})
}
