package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/spriteforge/internal/engine"
	"github.com/dshills/spriteforge/internal/event"
	"github.com/dshills/spriteforge/internal/event/events"
	"github.com/dshills/spriteforge/internal/watcher"
)

// newWatchCmd creates the watch command
func newWatchCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "watch <file.aseprite>...",
		Short: "Rebuild an archive whenever its Aseprite sources change",
		Long: `Import the given Aseprite files into an archive, then watch them and
re-import a sprite whenever its file is saved. The archive is rewritten after
every successful re-import. Stop with Ctrl-C.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("an output archive is required (-o)")
			}
			ctx := cmd.Context()

			bus := event.NewBus(event.WithLogger(a.log.Logger))
			if err := bus.Start(); err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = bus.Stop(stopCtx)
			}()
			a.logEvents(bus)

			eng := engine.New(append(a.engineOptions(), engine.WithBus(bus))...)
			defer eng.Close()

			r, err := a.newReloader(ctx, eng, args, output)
			if err != nil {
				return err
			}

			w, err := watcher.New(
				watcher.WithDebounce(a.cfg.Watch.Debounce.Duration),
				watcher.WithIgnore(a.cfg.Watch.Ignore...),
				watcher.WithLogger(a.log.With("component", "watcher")),
				watcher.WithBus(bus))
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer w.Close()
			for path := range r.sprites {
				if err := w.Watch(path); err != nil {
					return fmt.Errorf("watch %s: %w", path, err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %d files, writing %s\n", len(r.sprites), output)
			return r.run(ctx, w)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive to write")

	return cmd
}

// logEvents reports asset events on the debug log.
func (a *app) logEvents(bus event.Bus) {
	_, _ = bus.Subscribe("asset.**", event.HandlerFunc(func(_ context.Context, e any) error {
		if tp, ok := e.(event.TopicProvider); ok {
			a.log.Debug("event", "topic", tp.EventTopic())
		}
		return nil
	}), event.WithPriority(event.PriorityLow))
	_, _ = bus.Subscribe(events.TopicImportFailed, event.AsHandler(func(_ context.Context, e event.Event[events.ImportFailed]) error {
		a.log.Warn("re-import failed", "sprite", e.Payload.Name, "error", e.Payload.Err)
		return nil
	}))
}

// changeSource is the part of *watcher.Watcher the reload loop reads.
type changeSource interface {
	Events() <-chan watcher.Event
	Errors() <-chan error
}

// reloader keeps one sprite per watched file current in an archive.
type reloader struct {
	a       *app
	eng     *engine.Engine
	out     string
	sprites map[string]engine.ID
}

func (a *app) newReloader(ctx context.Context, eng *engine.Engine, paths []string, out string) (*reloader, error) {
	abs := make([]string, len(paths))
	for i, p := range paths {
		var err error
		if abs[i], err = filepath.Abs(p); err != nil {
			return nil, err
		}
	}
	ids, err := a.importAll(ctx, eng, abs)
	if err != nil {
		return nil, err
	}
	r := &reloader{a: a, eng: eng, out: out, sprites: make(map[string]engine.ID, len(ids))}
	for i, id := range ids {
		r.sprites[abs[i]] = id
	}
	if _, err := eng.Save(out); err != nil {
		return nil, err
	}
	return r, nil
}

// run reloads sprites until ctx ends or src closes. A failed reload keeps the
// previous sprite and is only logged; the file may still be mid-save.
func (r *reloader) run(ctx context.Context, src changeSource) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-src.Events():
			if !ok {
				return nil
			}
			if ev.Op.Gone() {
				r.a.log.Warn("source removed", "path", ev.Path)
				continue
			}
			if err := r.reload(ctx, ev.Path); err != nil {
				r.a.log.Warn("reload failed", "path", ev.Path, "error", err)
			}
		case err, ok := <-src.Errors():
			if !ok {
				return nil
			}
			r.a.log.Warn("watch error", "error", err)
		}
	}
}

// reload imports path next to its current sprite, removes the old sprite and
// saves the archive.
func (r *reloader) reload(ctx context.Context, path string) error {
	old, ok := r.sprites[path]
	if !ok {
		return nil
	}
	root := r.eng.Root()
	index, err := r.eng.IndexOf(old)
	if err != nil {
		return err
	}

	if _, err := r.eng.Import(ctx, engine.ImportRequest{Parent: root, Index: index, Path: path}); err != nil {
		return err
	}
	if err := r.eng.Wait(ctx); err != nil {
		return err
	}
	children, err := r.eng.Children(root)
	if err != nil {
		return err
	}
	if err := r.eng.Delete(old); err != nil {
		return err
	}
	r.sprites[path] = children[index]

	n, err := r.eng.Save(r.out)
	if err != nil {
		return err
	}
	r.a.log.Info("sprite reloaded", "path", path, "archive", r.out, "bytes", n)
	return nil
}
