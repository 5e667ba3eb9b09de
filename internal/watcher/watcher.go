// Package watcher reports changes to Aseprite source files so they can be
// re-imported.
//
// Files are watched through their parent directory, which keeps a watch alive
// across editors that save by writing a temporary file and renaming it over
// the original. Rapid changes to one path are coalesced into a single Event
// after a quiet period.
package watcher

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dshills/spriteforge/internal/event"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrNotWatching     = errors.New("path is not being watched")
	ErrPathNotExist    = errors.New("path does not exist")
	ErrNotSource       = errors.New("path does not match a source pattern")
)

// Op is a bit set of file system operations.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the operation names joined with '|'.
func (op Op) String() string {
	if op == 0 {
		return "NONE"
	}
	var s string
	for _, n := range []struct {
		op   Op
		name string
	}{{OpCreate, "CREATE"}, {OpWrite, "WRITE"}, {OpRemove, "REMOVE"}, {OpRename, "RENAME"}} {
		if op.Has(n.op) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}

// Has reports whether op includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Gone reports whether the file no longer exists at its path.
func (op Op) Gone() bool {
	return op&(OpRemove|OpRename) != 0 && op&(OpCreate|OpWrite) == 0
}

// Event is one debounced change to a watched source file.
type Event struct {
	Path string
	Op   Op
	// Seq increases by one for every event delivered by a Watcher.
	Seq       uint64
	Timestamp time.Time
}

// Stats provides watcher status information.
type Stats struct {
	WatchedFiles int
	WatchedDirs  int
	Pending      int
	Delivered    int64
	Coalesced    int64
	Dropped      int64
	Errors       int64
}

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 150 * time.Millisecond

// DefaultPatterns match Aseprite sources.
var DefaultPatterns = []string{"*.aseprite", "*.ase"}

type config struct {
	debounce   time.Duration
	bufferSize int
	patterns   []string
	ignore     []string
	logger     *slog.Logger
	bus        event.Bus
}

func defaultConfig() config {
	return config{
		debounce:   DefaultDebounce,
		bufferSize: 64,
		patterns:   DefaultPatterns,
		logger:     slog.New(slog.DiscardHandler),
	}
}

// Option configures a Watcher.
type Option func(*config)

// WithDebounce sets the quiet period before an event is delivered.
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithBufferSize sets the capacity of the event channel.
func WithBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithPatterns replaces the base-name patterns a directory watch picks up.
func WithPatterns(patterns ...string) Option {
	return func(c *config) {
		c.patterns = patterns
	}
}

// WithIgnore adds base-name patterns that are never reported.
func WithIgnore(patterns ...string) Option {
	return func(c *config) {
		c.ignore = append(c.ignore, patterns...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBus publishes an events.SourceChanged for every delivered event.
func WithBus(b event.Bus) Option {
	return func(c *config) {
		c.bus = b
	}
}
