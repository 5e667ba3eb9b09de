package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dshills/spriteforge/internal/asset/archive"
	"github.com/dshills/spriteforge/internal/asset/blob"
	"github.com/dshills/spriteforge/internal/asset/importer"
	"github.com/dshills/spriteforge/internal/engine/history"
	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tracking"
	"github.com/dshills/spriteforge/internal/engine/tree"
	"github.com/dshills/spriteforge/internal/event"
	"github.com/dshills/spriteforge/internal/event/events"
	"github.com/dshills/spriteforge/internal/jobs"
)

// Re-export commonly used types for convenience.
type (
	// ID identifies a node.
	ID = store.ID

	// Node is a copy of a node's state.
	Node = store.Node

	// Kind is a node kind.
	Kind = store.Kind

	// Attrs holds node attributes.
	Attrs = store.Attrs

	// ChangeSet lists the identities touched by one change.
	ChangeSet = tracking.ChangeSet

	// Reference is a weak handle to a node.
	Reference = tracking.Reference

	// Command is an undoable tree edit.
	Command = history.Command

	// EntryInfo describes a history entry.
	EntryInfo = history.EntryInfo

	// Detached describes a subtree without identities.
	Detached = tree.Detached
)

// Re-export constants.
const (
	KindSprite = store.KindSprite
	KindGroup  = store.KindGroup
	KindLayer  = store.KindLayer
	KindFrame  = store.KindFrame

	Append = tree.Append

	SlotSelection   = tracking.SlotSelection
	SlotActiveFrame = tracking.SlotActiveFrame
	SlotActiveLayer = tracking.SlotActiveLayer
)

// source is the Metadata.Source of every event the engine publishes.
const source = "engine"

// notice is a change to announce once the engine lock is released.
type notice struct {
	changed   *events.DocumentChanged
	changeset tracking.ChangeSet
	outbox    []any
}

// Engine is the editor context. It owns the project tree, its history, the
// reference tracker and the background import runner.
//
// Mutations are serialized by a mutex and change notifications are delivered
// after it is released, so OnChange callbacks and bus handlers may read the
// engine. They must not mutate it.
type Engine struct {
	mu sync.RWMutex

	// Core components
	tree     *tree.Tree
	history  *history.History
	tracker  *tracking.Tracker
	blobs    *blob.Store
	importer *importer.Importer
	runner   *jobs.Runner

	// Notification
	onChange ChangeFunc
	bus      event.Bus
	logger   *slog.Logger

	// Configuration
	historyOpts []history.Option
	trackerOpts []tracking.TrackerOption
	jobOpts     []jobs.Option

	path      string
	txChanges tracking.ChangeSet
	pending   map[uint64]pendingImport
	backlog   []jobs.Result
	closed    bool
	stats     counters
}

type counters struct {
	commits   atomic.Uint64
	undos     atomic.Uint64
	redos     atomic.Uint64
	aborts    atomic.Uint64
	corrupt   atomic.Uint64
	imported  atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
	saves     atomic.Uint64
}

// New creates an engine holding an empty project.
func New(opts ...Option) *Engine {
	return newEngine(tree.New(), nil, opts)
}

// Open creates an engine holding the archive at path.
func Open(path string, opts ...Option) (*Engine, error) {
	t, blobs, err := archive.ReadFile(path)
	if err != nil {
		return nil, opError("open", store.NilID, err)
	}
	e := newEngine(t, blobs, opts)
	e.path = path
	e.logger.Info("project opened", "path", path, "nodes", t.Len(), "blobs", blobs.Len())
	e.emit(notice{outbox: []any{
		event.NewEvent(events.TopicDocumentOpened, events.DocumentOpened{Path: path, Root: t.Root(), Nodes: t.Len()}, source),
	}})
	return e, nil
}

func newEngine(t *tree.Tree, blobs *blob.Store, opts []Option) *Engine {
	e := &Engine{
		tree:    t,
		logger:  slog.New(slog.DiscardHandler),
		pending: make(map[uint64]pendingImport),
	}
	for _, opt := range opts {
		opt(e)
	}

	switch {
	case e.importer != nil:
		e.blobs = e.importer.Blobs()
		e.blobs.Merge(blobs)
	case blobs != nil:
		e.blobs = blobs
	default:
		e.blobs = blob.NewStore()
	}
	if e.importer == nil {
		e.importer = importer.New(e.blobs, importer.WithLogger(e.logger))
	}

	e.history = history.New(t, e.historyOpts...)
	e.tracker = tracking.NewTracker(t, e.trackerOpts...)
	e.runner = jobs.NewRunner(append([]jobs.Option{jobs.WithLogger(e.logger)}, e.jobOpts...)...)
	return e
}

// Close cancels pending imports and releases their pins. Further mutations
// fail with ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for id, p := range e.pending {
		e.tree.Unpin(p.parent)
		delete(e.pending, id)
	}
	e.backlog = nil
	e.mu.Unlock()

	e.runner.Close()
	return nil
}

// ============================================================================
// Read Operations
// ============================================================================

// Root returns the project root identity.
func (e *Engine) Root() ID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Root()
}

// Get returns a copy of a node.
func (e *Engine) Get(id ID) (Node, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Get(id)
}

// Children returns the ordered children of id.
func (e *Engine) Children(id ID) ([]ID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Children(id)
}

// Parent returns the parent of id, or NilID for the root.
func (e *Engine) Parent(id ID) (ID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Parent(id)
}

// IndexOf returns the position of id among its siblings.
func (e *Engine) IndexOf(id ID) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.IndexOf(id)
}

// Path returns the slash-separated names from the root to id.
func (e *Engine) Path(id ID) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Path(id)
}

// Len returns the number of live nodes.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Len()
}

// Export describes the subtree rooted at id.
func (e *Engine) Export(id ID) (Detached, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Export(id)
}

// Walk visits the subtree rooted at id in preorder.
func (e *Engine) Walk(id ID, fn func(n Node, depth int) bool) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Walk(id, fn)
}

// Dump renders the tree in a stable indented form.
func (e *Engine) Dump() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Dump()
}

// Validate checks the tree's structural invariants.
func (e *Engine) Validate() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Validate()
}

// Blobs returns the store holding pixel data.
func (e *Engine) Blobs() *blob.Store {
	return e.blobs
}

// Importer returns the importer used by Import. It writes into Blobs.
func (e *Engine) Importer() *importer.Importer {
	return e.importer
}

// FilePath returns the path the project was opened from or last saved to.
func (e *Engine) FilePath() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.path
}

// Revision returns the tracker revision, bumped by every reconciled change.
func (e *Engine) Revision() tracking.Revision {
	return e.tracker.Revision()
}

// ChangesSince returns the merged change set after rev. complete is false
// when older changes have been discarded.
func (e *Engine) ChangesSince(rev tracking.Revision) (ChangeSet, bool) {
	return e.tracker.ChangesSince(rev)
}

// ============================================================================
// Save
// ============================================================================

// Save writes the project archive to path, replacing any existing file
// atomically. It fails while a transaction is open.
func (e *Engine) Save(path string) (int, error) {
	e.mu.Lock()
	if e.history.Recording() {
		e.mu.Unlock()
		return 0, opError("save", store.NilID, ErrTransactionOpen)
	}
	n, err := archive.WriteFile(path, e.tree, e.blobs)
	if err != nil {
		e.mu.Unlock()
		return 0, opError("save", store.NilID, err)
	}
	e.path = path
	nodes := e.tree.Len()
	e.mu.Unlock()

	e.stats.saves.Add(1)
	e.logger.Info("project saved", "path", path, "bytes", n, "nodes", nodes)
	e.emit(notice{outbox: []any{
		event.NewEvent(events.TopicExportCompleted, events.ExportCompleted{Path: path, Bytes: int64(n), Nodes: nodes, Blobs: e.blobs.Len()}, source),
	}})
	return n, nil
}

// ============================================================================
// Notification
// ============================================================================

// changedLocked reconciles references and prepares the document notice.
func (e *Engine) changedLocked(cause events.Cause, desc string, cs tracking.ChangeSet) notice {
	return e.noticeLocked(e.tracker.Reconcile(cs), cause, desc, cs)
}

// noticeLocked prepares the notice for a change set the tracker has
// already reconciled.
func (e *Engine) noticeLocked(rev tracking.Revision, cause events.Cause, desc string, cs tracking.ChangeSet) notice {
	n := notice{
		changed: &events.DocumentChanged{
			Revision:    rev,
			Cause:       cause,
			Description: desc,
			Changes:     cs.Clone(),
		},
		changeset: cs,
	}
	hist := events.HistoryChanged{
		Description: desc,
		UndoCount:   e.history.UndoCount(),
		RedoCount:   e.history.RedoCount(),
	}
	switch cause {
	case events.CauseCommit, events.CauseImport:
		n.outbox = append(n.outbox, event.NewEvent(events.TopicHistoryCommitted, hist, source))
	case events.CauseUndo:
		n.outbox = append(n.outbox, event.NewEvent(events.TopicHistoryUndone, hist, source))
	case events.CauseRedo:
		n.outbox = append(n.outbox, event.NewEvent(events.TopicHistoryRedone, hist, source))
	}
	return n
}

// emit delivers a notice. It must be called without the lock held.
func (e *Engine) emit(n notice) {
	if n.changed != nil && e.onChange != nil {
		e.onChange(n.changeset)
	}
	if e.bus == nil || !e.bus.IsRunning() {
		return
	}
	ctx := context.Background()
	if n.changed != nil {
		e.publish(ctx, event.NewEvent(events.TopicDocumentChanged, *n.changed, source))
	}
	for _, ev := range n.outbox {
		e.publish(ctx, ev)
	}
}

func (e *Engine) publish(ctx context.Context, ev any) {
	if err := e.bus.Publish(ctx, ev); err != nil && !errors.Is(err, event.ErrBusNotRunning) {
		e.logger.Warn("event publish failed", "error", err)
	}
}
