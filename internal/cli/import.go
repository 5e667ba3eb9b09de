package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// newImportCmd creates the import command
func newImportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "import <file.aseprite>...",
		Short: "Import Aseprite files into a new project archive",
		Long: `Import one or more Aseprite files into a new project archive.

Files are decoded in parallel. Each becomes a sprite under the project root,
in the order given on the command line.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("an output archive is required (-o)")
			}

			eng := a.newEngine()
			defer eng.Close()

			ids, err := a.importAll(cmd.Context(), eng, args)
			if err != nil {
				return err
			}
			n, err := eng.Save(output)
			if err != nil {
				return err
			}

			s := eng.Stats()
			a.log.Info("archive written", "path", output, "bytes", n, "sprites", len(ids))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d sprites (%d nodes, %d blobs) to %s\n", len(ids), s.Nodes, s.Blobs, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive to write")

	return cmd
}
