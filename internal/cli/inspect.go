package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/spriteforge/internal/asset/archive"
)

// newInspectCmd creates the inspect command
func newInspectCmd(a *app) *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Print the contents of a project archive",
		Long: `Print the manifest summary and node tree of a project archive.

Older archive versions are migrated in memory; the file is not changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, err := archive.Peek(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "format:  %s\n", info.Format)
			fmt.Fprintf(out, "version: %d\n", info.Version)
			fmt.Fprintf(out, "nodes:   %d\n", info.Nodes)
			fmt.Fprintf(out, "kinds:   %s\n", formatKinds(info.Kinds))
			if summary {
				return nil
			}

			t, blobs, err := archive.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			a.log.Debug("archive decoded", "path", args[0], "nodes", t.Len(), "blobs", blobs.Len())
			fmt.Fprintf(out, "blobs:   %d (%d bytes)\n\n", blobs.Len(), blobs.Size())
			fmt.Fprint(out, t.Dump())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&summary, "summary", "s", false, "Only print the manifest summary")

	return cmd
}

func formatKinds(kinds map[string]int) string {
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%d", k, kinds[k])
	}
	return strings.Join(parts, " ")
}
