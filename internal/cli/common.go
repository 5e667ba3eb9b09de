package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/spriteforge/internal/asset/blob"
	"github.com/dshills/spriteforge/internal/asset/importer"
	"github.com/dshills/spriteforge/internal/engine"
	"github.com/dshills/spriteforge/internal/jobs"
)

func (a *app) newImporter(blobs *blob.Store) *importer.Importer {
	return importer.New(blobs,
		importer.WithCacheSize(a.cfg.Import.CacheSize),
		importer.WithConcurrency(a.cfg.Import.Concurrency),
		importer.WithLogger(a.log.With("component", "importer")))
}

// newEngine creates an empty project wired to the loaded configuration.
func (a *app) newEngine() *engine.Engine {
	return engine.New(a.engineOptions()...)
}

func (a *app) engineOptions() []engine.Option {
	h := a.cfg.History
	return []engine.Option{
		engine.WithLogger(a.log.With("component", "engine")),
		engine.WithImporter(a.newImporter(blob.NewStore())),
		engine.WithMaxUndoEntries(h.MaxEntries),
		engine.WithCoalescing(h.CoalesceWindow.Duration, h.CoalesceMaxOps),
		engine.WithJobOptions(
			jobs.WithTimeout(a.cfg.Import.Timeout.Duration),
			jobs.WithMaxConcurrent(a.cfg.Import.Concurrency)),
	}
}

// spriteName is the file name without directory or extension.
func spriteName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func readSources(paths []string) ([]importer.Source, error) {
	srcs := make([]importer.Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		srcs = append(srcs, importer.Source{Name: spriteName(p), Path: p, Data: data})
	}
	return srcs, nil
}

// importAll decodes every path in parallel and grafts the sprites under the
// project root as one history entry.
func (a *app) importAll(ctx context.Context, eng *engine.Engine, paths []string) ([]engine.ID, error) {
	srcs, err := readSources(paths)
	if err != nil {
		return nil, err
	}
	sprites, err := eng.Importer().DecodeAll(ctx, srcs)
	if err != nil {
		return nil, err
	}

	ids := make([]engine.ID, 0, len(sprites))
	err = eng.Transaction(fmt.Sprintf("Import %d sprites", len(sprites)), func() error {
		for i, d := range sprites {
			id, err := eng.Graft("Import "+srcs[i].Name, eng.Root(), engine.Append, d)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
