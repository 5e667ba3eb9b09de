package engine

import (
	"errors"
	"time"

	"github.com/dshills/spriteforge/internal/engine/history"
	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tracking"
	"github.com/dshills/spriteforge/internal/event"
	"github.com/dshills/spriteforge/internal/event/events"
)

// ============================================================================
// Write Operations
// ============================================================================

// Execute runs cmd. Outside a transaction it becomes one history entry.
func (e *Engine) Execute(cmd Command) error {
	e.mu.Lock()
	n, err := e.executeLocked(cmd)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.emit(n)
	return nil
}

func (e *Engine) executeLocked(cmd Command) (notice, error) {
	if e.closed {
		return notice{}, ErrClosed
	}
	cs, err := e.history.Execute(cmd)
	if err != nil {
		return notice{}, err
	}
	if e.history.Recording() {
		e.tracker.Reconcile(cs)
		e.txChanges.Merge(cs)
		return notice{}, nil
	}
	e.stats.commits.Add(1)
	e.logger.Debug("command committed", "command", cmd.Description(), "changes", cs.Len())
	return e.changedLocked(events.CauseCommit, cmd.Description(), cs), nil
}

// Insert creates a node under parent at index (Append for the end).
func (e *Engine) Insert(parent ID, index int, kind Kind, attrs Attrs) (ID, error) {
	cmd := history.NewInsertCommand(parent, index, kind, attrs)
	if err := e.Execute(cmd); err != nil {
		return store.NilID, opError("insert", parent, err)
	}
	return cmd.ID(), nil
}

// Graft inserts a detached subtree and returns the identity of its root.
func (e *Engine) Graft(name string, parent ID, index int, d Detached) (ID, error) {
	cmd := history.NewGraftCommand(name, parent, index, d)
	if err := e.Execute(cmd); err != nil {
		return store.NilID, opError("graft", parent, err)
	}
	return cmd.ID(), nil
}

// Delete removes the subtree rooted at id.
func (e *Engine) Delete(id ID) error {
	return opError("delete", id, e.Execute(history.NewDeleteCommand(id)))
}

// Move reparents id under parent at index and returns its previous position.
// Moving a node to the position it already holds records nothing.
func (e *Engine) Move(id, parent ID, index int) (ID, int, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return store.NilID, 0, opError("move", id, ErrClosed)
	}
	if oldParent, oldIndex, ok := e.inPlaceLocked(id, parent, index); ok {
		e.mu.Unlock()
		return oldParent, oldIndex, nil
	}
	oldParent, _ := e.tree.Parent(id)
	oldIndex, _ := e.tree.IndexOf(id)
	n, err := e.executeLocked(history.NewMoveCommand(id, parent, index))
	e.mu.Unlock()
	if err != nil {
		return store.NilID, 0, opError("move", id, err)
	}
	e.emit(n)
	return oldParent, oldIndex, nil
}

// inPlaceLocked reports whether moving id to parent/index would leave it
// where it is.
func (e *Engine) inPlaceLocked(id, parent ID, index int) (ID, int, bool) {
	cur, err := e.tree.Parent(id)
	if err != nil || cur != parent || cur == store.NilID {
		return store.NilID, 0, false
	}
	at, err := e.tree.IndexOf(id)
	if err != nil {
		return store.NilID, 0, false
	}
	siblings, _ := e.tree.Children(parent)
	if index == at || (index == Append && at == len(siblings)-1) {
		return cur, at, true
	}
	return store.NilID, 0, false
}

// Rename sets the name attribute of id.
func (e *Engine) Rename(id ID, name string) error {
	return opError("rename", id, e.Execute(history.NewRenameCommand(id, name)))
}

// SetAttribute sets one attribute of id.
func (e *Engine) SetAttribute(id ID, key string, value any) error {
	return opError("set "+key, id, e.Execute(history.NewSetAttributeCommand(id, key, value)))
}

// ============================================================================
// Transactions
// ============================================================================

// Begin starts a transaction. Until Commit or Abort, edits are buffered into
// one history entry and change notifications are held back.
func (e *Engine) Begin(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if err := e.history.Begin(name); err != nil {
		return err
	}
	e.txChanges = tracking.ChangeSet{}
	return nil
}

// Commit records the open transaction as one entry and announces its
// combined change set.
func (e *Engine) Commit() error {
	e.mu.Lock()
	cs, err := e.history.Commit()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.txChanges = tracking.ChangeSet{}
	var n notice
	if !cs.Empty() {
		e.stats.commits.Add(1)
		desc := ""
		if info, ok := e.history.PeekUndo(); ok {
			desc = info.Description
		}
		e.logger.Debug("transaction committed", "command", desc, "changes", cs.Len())
		n = e.noticeLocked(e.tracker.Revision(), events.CauseCommit, desc, cs)
	}
	e.mu.Unlock()
	e.emit(n)
	return nil
}

// Abort reverts every edit since Begin. If the transaction changed anything
// that survives the reversal, the net change set is announced.
func (e *Engine) Abort() error {
	e.mu.Lock()
	cs, err := e.history.Abort()
	if errors.Is(err, ErrNoTransaction) {
		e.mu.Unlock()
		return err
	}
	rev := e.tracker.Reconcile(cs)
	merged := e.txChanges
	merged.Merge(cs)
	e.txChanges = tracking.ChangeSet{}
	e.stats.aborts.Add(1)
	var n notice
	if !merged.Empty() {
		n = e.noticeLocked(rev, events.CauseAbort, "abort", merged)
	}
	e.mu.Unlock()
	e.emit(n)
	if err != nil {
		return e.corrupt(err)
	}
	return nil
}

// Transaction runs fn inside Begin/Commit, aborting if fn fails.
func (e *Engine) Transaction(name string, fn func() error) error {
	if err := e.Begin(name); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if abortErr := e.Abort(); abortErr != nil {
			return errors.Join(err, abortErr)
		}
		return err
	}
	return e.Commit()
}

// InTransaction reports whether a transaction is open.
func (e *Engine) InTransaction() bool {
	return e.history.Recording()
}

// ============================================================================
// Undo/Redo
// ============================================================================

// Undo reverses the most recent entry.
func (e *Engine) Undo() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	desc := ""
	if info, ok := e.history.PeekUndo(); ok {
		desc = info.Description
	}
	cs, err := e.history.Undo()
	if err != nil {
		e.mu.Unlock()
		return e.corrupt(err)
	}
	e.stats.undos.Add(1)
	e.logger.Debug("undo", "command", desc, "changes", cs.Len())
	n := e.changedLocked(events.CauseUndo, desc, cs)
	e.mu.Unlock()
	e.emit(n)
	return nil
}

// Redo re-applies the most recently undone entry.
func (e *Engine) Redo() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	desc := ""
	if info, ok := e.history.PeekRedo(); ok {
		desc = info.Description
	}
	cs, err := e.history.Redo()
	if err != nil {
		e.mu.Unlock()
		return e.corrupt(err)
	}
	e.stats.redos.Add(1)
	e.logger.Debug("redo", "command", desc, "changes", cs.Len())
	n := e.changedLocked(events.CauseRedo, desc, cs)
	e.mu.Unlock()
	e.emit(n)
	return nil
}

// corrupt reports an entry that could not be reversed. Entries blocked by a
// pin are returned as operation errors without being counted. Other errors
// pass through unchanged.
func (e *Engine) corrupt(err error) error {
	var ue *history.UndoError
	if !errors.As(err, &ue) {
		return err
	}
	if !ue.Corrupt() {
		e.logger.Debug("history entry blocked", "op", ue.Op, "command", ue.Description, "error", ue.Err)
		return opError(ue.Op, store.NilID, err)
	}
	e.stats.corrupt.Add(1)
	e.logger.Warn("history entry corrupt", "op", ue.Op, "command", ue.Description, "error", ue.Err)
	e.emit(notice{outbox: []any{
		event.NewEvent(events.TopicHistoryCorrupt, events.HistoryCorrupt{
			Op:          ue.Op,
			Description: ue.Description,
			Err:         ue.Err.Error(),
		}, source),
	}})
	return opError(ue.Op, store.NilID, err)
}

// CanUndo reports whether Undo has an entry to reverse.
func (e *Engine) CanUndo() bool { return e.history.CanUndo() }

// CanRedo reports whether Redo has an entry to re-apply.
func (e *Engine) CanRedo() bool { return e.history.CanRedo() }

// UndoInfo describes the undoable entries, oldest first.
func (e *Engine) UndoInfo() []EntryInfo { return e.history.UndoInfo() }

// RedoInfo describes the redoable entries, next redo first.
func (e *Engine) RedoInfo() []EntryInfo { return e.history.RedoInfo() }

// Coalesce merges adjacent mergeable entries of the applied history whose
// gap is at most window. It returns the number of entries merged away.
func (e *Engine) Coalesce(window time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Coalesce(window)
}

// ClearHistory drops every undo and redo entry.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.Clear()
}

// ============================================================================
// References
// ============================================================================

// Track returns a weak reference to id.
func (e *Engine) Track(id ID) (*Reference, error) {
	return e.tracker.Track(id)
}

// Resolve returns the node ref points at, or ErrStale once it is destroyed.
func (e *Engine) Resolve(ref *Reference) (Node, error) {
	return e.tracker.Resolve(ref)
}

// Release stops tracking ref.
func (e *Engine) Release(ref *Reference) {
	e.tracker.Release(ref)
}

// Select replaces the contents of a named slot.
func (e *Engine) Select(slot string, ids ...ID) error {
	return e.tracker.Set(slot, ids...)
}

// Selected returns the live identities of a named slot.
func (e *Engine) Selected(slot string) []ID {
	return e.tracker.Get(slot)
}

// SlotRefs returns the references held by a named slot, stale ones included.
func (e *Engine) SlotRefs(slot string) []*Reference {
	return e.tracker.Refs(slot)
}

// ClearSlot empties a named slot.
func (e *Engine) ClearSlot(slot string) {
	e.tracker.Clear(slot)
}
