package history

import (
	"errors"
	"fmt"

	"github.com/dshills/spriteforge/internal/engine/tree"
)

var (
	// ErrNothingToUndo indicates the cursor is at the start of history.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo indicates the cursor is at the end of history.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrTransactionOpen indicates Begin while recording, or undo/redo inside
	// a transaction.
	ErrTransactionOpen = errors.New("transaction already open")

	// ErrNoTransaction indicates Commit or Abort without Begin.
	ErrNoTransaction = errors.New("no open transaction")

	// ErrCorruptEntry indicates a history entry whose inverse cannot be applied.
	ErrCorruptEntry = errors.New("corrupt history entry")

	// ErrNotExecuted indicates a command reversed before it ran.
	ErrNotExecuted = errors.New("command was never executed")
)

// UndoError reports a history entry that could not be undone or redone. The
// tree and the cursor are left as they were before the attempt.
//
// For undo and redo, a cause of tree.ErrInUse means a pending import pins
// part of the affected subtree; the entry is intact and may be retried once
// the pin is released. Any other cause, or any failed abort, marks the entry
// corrupt.
type UndoError struct {
	Op          string // "undo", "redo" or "abort"
	Description string
	Err         error
}

// Error implements the error interface.
func (e *UndoError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Description, e.Err)
}

// Corrupt reports whether the entry itself is broken rather than
// temporarily blocked.
func (e *UndoError) Corrupt() bool {
	return e.Op == "abort" || !errors.Is(e.Err, tree.ErrInUse)
}

// Unwrap exposes the underlying cause, plus ErrCorruptEntry when the entry
// is corrupt.
func (e *UndoError) Unwrap() []error {
	if !e.Corrupt() {
		return []error{e.Err}
	}
	return []error{ErrCorruptEntry, e.Err}
}
