package archive

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/dshills/spriteforge/internal/asset/blob"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

// WriteFile encodes t into path. The archive is written to a sibling
// temporary file and renamed into place, so path never holds a partial
// archive. It returns the number of bytes written.
func WriteFile(path string, t *tree.Tree, blobs *blob.Store) (int, error) {
	data, err := Encode(t, blobs)
	if err != nil {
		return 0, err
	}
	tmp := path + "_" + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create temp archive: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("write archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("sync archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename archive: %w", err)
	}
	return len(data), nil
}

// ReadFile decodes the archive at path.
func ReadFile(path string) (*tree.Tree, *blob.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return Decode(data)
}
