package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/spriteforge/internal/asset/archive"
	"github.com/dshills/spriteforge/internal/asset/blob"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

// ErrRoundTrip is returned when a re-encoded archive differs from the first
// encoding.
var ErrRoundTrip = errors.New("archive round trip mismatch")

// newConvertCmd creates the convert command
func newConvertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert an Aseprite file or older archive to the current archive format",
		Long: `Convert an Aseprite file, or an archive in any supported version, to a
current archive.

The result is decoded and encoded a second time before it is written; the
command fails if the two encodings differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			t, blobs, err := a.load(in)
			if err != nil {
				return err
			}

			first, err := archive.Encode(t, blobs)
			if err != nil {
				return err
			}
			t2, blobs2, err := archive.Decode(first)
			if err != nil {
				return fmt.Errorf("decode converted archive: %w", err)
			}
			second, err := archive.Encode(t2, blobs2)
			if err != nil {
				return err
			}
			if !bytes.Equal(first, second) {
				return fmt.Errorf("%w: %d and %d bytes", ErrRoundTrip, len(first), len(second))
			}

			n, err := archive.WriteFile(out, t2, blobs2)
			if err != nil {
				return err
			}
			a.log.Info("archive converted", "in", in, "out", out, "bytes", n)
			fmt.Fprintf(cmd.OutOrStdout(), "Converted %s to %s (%d nodes, %d bytes)\n", in, out, t2.Len(), n)
			return nil
		},
	}

	return cmd
}

// load reads an Aseprite file or an archive, chosen by extension.
func (a *app) load(path string) (*tree.Tree, *blob.Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".aseprite", ".ase":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		blobs := blob.NewStore()
		t, err := a.newImporter(blobs).Import(spriteName(path), data)
		if err != nil {
			return nil, nil, err
		}
		return t, blobs, nil
	default:
		t, blobs, err := archive.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		return t, blobs, nil
	}
}
