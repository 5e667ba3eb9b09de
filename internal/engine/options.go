package engine

import (
	"log/slog"
	"time"

	"github.com/dshills/spriteforge/internal/asset/importer"
	"github.com/dshills/spriteforge/internal/engine/history"
	"github.com/dshills/spriteforge/internal/engine/tracking"
	"github.com/dshills/spriteforge/internal/event"
	"github.com/dshills/spriteforge/internal/jobs"
)

// Default configuration values.
const (
	DefaultMaxUndoEntries = history.DefaultMaxEntries
	DefaultMaxChanges     = tracking.DefaultMaxChanges
)

// ChangeFunc receives the change set of every committed command, undo or redo.
type ChangeFunc func(cs tracking.ChangeSet)

// Option configures an Engine during creation.
type Option func(*Engine)

// WithMaxUndoEntries sets the maximum number of undo history entries.
func WithMaxUndoEntries(max int) Option {
	return func(e *Engine) {
		if max > 0 {
			e.historyOpts = append(e.historyOpts, history.WithMaxEntries(max))
		}
	}
}

// WithCoalescing merges rapid edits of the same attribute that fall inside
// window, up to maxOps edits per entry. A zero window disables coalescing.
func WithCoalescing(window time.Duration, maxOps int) Option {
	return func(e *Engine) {
		e.historyOpts = append(e.historyOpts,
			history.WithCoalesceWindow(window),
			history.WithCoalesceMaxOps(maxOps))
	}
}

// WithClock sets the time source used for coalescing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.historyOpts = append(e.historyOpts, history.WithClock(now))
		}
	}
}

// WithMaxChanges sets how many change sets the tracker keeps for ChangesSince.
func WithMaxChanges(max int) Option {
	return func(e *Engine) {
		if max > 0 {
			e.trackerOpts = append(e.trackerOpts, tracking.WithMaxChanges(max))
		}
	}
}

// WithOnChange registers the rendering-layer callback.
func WithOnChange(fn ChangeFunc) Option {
	return func(e *Engine) {
		e.onChange = fn
	}
}

// WithBus publishes document, history and asset events on bus. The caller
// owns the bus lifecycle.
func WithBus(bus event.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithImporter sets the importer used by Import. Its blob store becomes the
// engine's blob store.
func WithImporter(im *importer.Importer) Option {
	return func(e *Engine) {
		if im != nil {
			e.importer = im
		}
	}
}

// WithJobOptions configures the background job runner.
func WithJobOptions(opts ...jobs.Option) Option {
	return func(e *Engine) {
		e.jobOpts = append(e.jobOpts, opts...)
	}
}
