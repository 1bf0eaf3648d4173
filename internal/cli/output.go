package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes v as JSON in --json mode and calls text otherwise.
func printResult(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), v)
	}
	return text(cmd.OutOrStdout())
}

// table writes aligned columns.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func itemRows(items []types.Item) [][]string {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{
			fmtID(it.ID),
			fmtParent(it.ParentID),
			strconv.Itoa(it.Position),
			checkbox(it.Completed),
			string(it.Type),
			it.Text,
		}
	}
	return rows
}

var itemHeader = []string{"ID", "PARENT", "POS", "DONE", "TYPE", "TEXT"}

func printItems(cmd *cobra.Command, items []types.Item) error {
	if items == nil {
		items = []types.Item{}
	}
	return printResult(cmd, items, func(w io.Writer) error {
		return table(w, itemHeader, itemRows(items))
	})
}

func printTags(cmd *cobra.Command, tags []types.Tag) error {
	if tags == nil {
		tags = []types.Tag{}
	}
	return printResult(cmd, tags, func(w io.Writer) error {
		rows := make([][]string, len(tags))
		for i, t := range tags {
			color := ""
			if t.Color != nil {
				color = *t.Color
			}
			rows[i] = []string{fmtID(t.ID), strconv.Itoa(t.Position), t.Name, color}
		}
		return table(w, []string{"ID", "POS", "NAME", "COLOR"}, rows)
	})
}

func fmtID(id int64) string { return strconv.FormatInt(id, 10) }

func fmtParent(p *int64) string {
	if p == nil {
		return "-"
	}
	return fmtID(*p)
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

// parseID parses a positional id argument.
func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, types.InvalidInput("invalid %s id %q", what, s)
	}
	return id, nil
}

// parsePosition parses a positional index argument.
func parsePosition(s string) (int, error) {
	pos, err := strconv.Atoi(s)
	if err != nil || pos < 0 {
		return 0, types.InvalidInput("invalid position %q", s)
	}
	return pos, nil
}
