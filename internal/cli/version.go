package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tagall/pkg/tagall"
)

// Version is the CLI version string.
const Version = tagall.Version

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, map[string]string{"version": Version}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, "tagall", Version)
				return err
			})
		},
	}
}
