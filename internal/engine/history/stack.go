package history

import (
	"sync"
	"time"

	"github.com/dshills/spriteforge/internal/engine/tracking"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

// DefaultMaxEntries is used when no positive limit is configured.
const DefaultMaxEntries = 1000

// entry wraps a command with metadata.
type entry struct {
	command   Command
	started   time.Time
	timestamp time.Time // last time a command was merged in
	ops       int
	sealed    bool // undone or redone at least once; no longer absorbs edits
}

// EntryInfo provides read-only info about a history entry.
// Used for displaying undo/redo history to users.
type EntryInfo struct {
	Description string
	Timestamp   time.Time
	Ops         int // number of coalesced commands
}

// Option configures a History.
type Option func(*History)

// WithMaxEntries bounds the number of entries; the oldest are trimmed first.
func WithMaxEntries(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.maxEntries = n
		}
	}
}

// WithCoalesceWindow sets how close together two edits must be to merge.
// Zero disables automatic coalescing.
func WithCoalesceWindow(d time.Duration) Option {
	return func(h *History) {
		h.coalesceWindow = d
	}
}

// WithCoalesceMaxOps caps how many commands one entry may absorb.
// Zero means no cap.
func WithCoalesceMaxOps(n int) Option {
	return func(h *History) {
		h.coalesceMaxOps = n
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *History) {
		h.now = now
	}
}

// History is the ordered list of applied entries plus a cursor. Entries
// before the cursor are applied; entries at or after it can be redone.
type History struct {
	mu sync.Mutex

	tree    *tree.Tree
	entries []*entry
	cursor  int

	// Transaction state
	recording bool
	txName    string
	txCmds    []Command
	txChanges tracking.ChangeSet

	// Configuration
	maxEntries     int
	coalesceWindow time.Duration
	coalesceMaxOps int
	now            func() time.Time

	coalesced uint64
}

// New creates a history over t.
func New(t *tree.Tree, opts ...Option) *History {
	h := &History{
		tree:       t,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Tree returns the tree the history edits.
func (h *History) Tree() *tree.Tree {
	return h.tree
}

// Execute runs a command. Outside a transaction the command becomes its own
// entry and the returned change set is final. Inside a transaction the command
// is buffered until Commit and the returned change set covers only this step.
func (h *History) Execute(cmd Command) (tracking.ChangeSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var cs tracking.ChangeSet
	if err := cmd.Execute(h.tree, &cs); err != nil {
		return tracking.ChangeSet{}, err
	}

	if h.recording {
		h.txCmds = append(h.txCmds, cmd)
		h.txChanges.Merge(cs)
		return cs, nil
	}

	h.recordLocked(cmd)
	return cs, nil
}

// recordLocked appends a command as a new entry, or merges it into the last
// applied entry when coalescing allows.
func (h *History) recordLocked(cmd Command) {
	now := h.now()
	h.entries = h.entries[:h.cursor]

	if h.cursor > 0 {
		last := h.entries[h.cursor-1]
		if h.canMergeLocked(last, now) {
			if c, ok := last.command.(Coalescer); ok && c.Coalesce(cmd) {
				last.timestamp = now
				last.ops++
				h.coalesced++
				return
			}
		}
	}

	h.entries = append(h.entries, &entry{
		command:   cmd,
		started:   now,
		timestamp: now,
		ops:       1,
	})
	h.cursor++
	h.trimLocked()
}

func (h *History) canMergeLocked(last *entry, at time.Time) bool {
	if h.coalesceWindow <= 0 || last.sealed {
		return false
	}
	if h.coalesceMaxOps > 0 && last.ops >= h.coalesceMaxOps {
		return false
	}
	return at.Sub(last.timestamp) <= h.coalesceWindow
}

// trimLocked drops the oldest applied entries, then the furthest redo
// entries, until the limit holds.
func (h *History) trimLocked() {
	excess := len(h.entries) - h.maxEntries
	if excess <= 0 {
		return
	}
	drop := min(excess, h.cursor)
	clear(h.entries[:drop])
	h.entries = h.entries[drop:]
	h.cursor -= drop
	if len(h.entries) > h.maxEntries {
		clear(h.entries[h.maxEntries:])
		h.entries = h.entries[:h.maxEntries]
	}
}

// Undo reverses the entry before the cursor. If the entry cannot be reversed
// an *UndoError is returned and the cursor stays where it was.
func (h *History) Undo() (tracking.ChangeSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.recording {
		return tracking.ChangeSet{}, ErrTransactionOpen
	}
	if h.cursor == 0 {
		return tracking.ChangeSet{}, ErrNothingToUndo
	}

	e := h.entries[h.cursor-1]
	var cs tracking.ChangeSet
	if err := e.command.Undo(h.tree, &cs); err != nil {
		return tracking.ChangeSet{}, &UndoError{Op: "undo", Description: e.command.Description(), Err: err}
	}
	e.sealed = true
	h.cursor--
	return cs, nil
}

// Redo re-applies the entry at the cursor.
func (h *History) Redo() (tracking.ChangeSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.recording {
		return tracking.ChangeSet{}, ErrTransactionOpen
	}
	if h.cursor == len(h.entries) {
		return tracking.ChangeSet{}, ErrNothingToRedo
	}

	e := h.entries[h.cursor]
	var cs tracking.ChangeSet
	if err := e.command.Execute(h.tree, &cs); err != nil {
		return tracking.ChangeSet{}, &UndoError{Op: "redo", Description: e.command.Description(), Err: err}
	}
	e.sealed = true
	h.cursor++
	return cs, nil
}

// CanUndo returns true if undo is available.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.entries)
}

// UndoCount returns the number of undo operations available.
func (h *History) UndoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// RedoCount returns the number of redo operations available.
func (h *History) RedoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries) - h.cursor
}

// Clear removes all undo/redo history. An open transaction is dropped
// without reverting its commands.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil
	h.cursor = 0
	h.recording = false
	h.txCmds = nil
	h.txChanges = tracking.ChangeSet{}
}

// UndoInfo describes the applied entries, oldest first.
func (h *History) UndoInfo() []EntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return infoOf(h.entries[:h.cursor])
}

// RedoInfo describes the undone entries, next redo first.
func (h *History) RedoInfo() []EntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return infoOf(h.entries[h.cursor:])
}

func infoOf(entries []*entry) []EntryInfo {
	result := make([]EntryInfo, len(entries))
	for i, e := range entries {
		result[i] = EntryInfo{
			Description: e.command.Description(),
			Timestamp:   e.timestamp,
			Ops:         e.ops,
		}
	}
	return result
}

// PeekUndo returns info about the next undo operation without applying it.
func (h *History) PeekUndo() (EntryInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor == 0 {
		return EntryInfo{}, false
	}
	return infoOf(h.entries[h.cursor-1 : h.cursor])[0], true
}

// PeekRedo returns info about the next redo operation without applying it.
func (h *History) PeekRedo() (EntryInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor == len(h.entries) {
		return EntryInfo{}, false
	}
	return infoOf(h.entries[h.cursor : h.cursor+1])[0], true
}

// SetMaxEntries changes the maximum number of entries.
// If the history is larger, oldest entries are removed.
func (h *History) SetMaxEntries(max int) {
	if max <= 0 {
		max = DefaultMaxEntries
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.maxEntries = max
	h.trimLocked()
}

// MaxEntries returns the maximum number of entries.
func (h *History) MaxEntries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxEntries
}

// Coalesced returns how many commands have been merged into earlier entries.
func (h *History) Coalesced() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.coalesced
}
