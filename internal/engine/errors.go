package engine

import (
	"errors"
	"fmt"

	"github.com/dshills/spriteforge/internal/asset/archive"
	"github.com/dshills/spriteforge/internal/engine/history"
	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tracking"
	"github.com/dshills/spriteforge/internal/engine/tree"
	"github.com/dshills/spriteforge/internal/jobs"
)

// Errors returned by engine operations. Most are re-exported from the
// component packages so callers need a single import.
var (
	ErrNotFound           = tree.ErrNotFound
	ErrInUse              = tree.ErrInUse
	ErrInvalidParent      = tree.ErrInvalidParent
	ErrIndexOutOfRange    = tree.ErrIndexOutOfRange
	ErrCycleDetected      = tree.ErrCycleDetected
	ErrCannotRemoveRoot   = tree.ErrCannotRemoveRoot
	ErrInvalidAttribute   = tree.ErrInvalidAttribute
	ErrNothingToUndo      = history.ErrNothingToUndo
	ErrNothingToRedo      = history.ErrNothingToRedo
	ErrTransactionOpen    = history.ErrTransactionOpen
	ErrNoTransaction      = history.ErrNoTransaction
	ErrCorruptEntry       = history.ErrCorruptEntry
	ErrStale              = tracking.ErrStale
	ErrUnsupportedVersion = archive.ErrUnsupportedVersion
	ErrCancelled          = jobs.ErrCancelled

	// ErrClosed indicates the engine has been closed.
	ErrClosed = errors.New("engine closed")
)

// OpError records the operation and node that failed.
type OpError struct {
	Op   string
	Node store.ID
	Err  error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Node == store.NilID {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s node %d: %v", e.Op, e.Node, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op string, id store.ID, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Node: id, Err: err}
}
