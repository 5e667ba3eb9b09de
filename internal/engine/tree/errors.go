package tree

import (
	"errors"
	"fmt"

	"github.com/dshills/spriteforge/internal/engine/store"
)

// Errors returned by tree operations.
var (
	// ErrNotFound indicates the target node does not exist.
	ErrNotFound = store.ErrNotFound

	// ErrInUse indicates part of a subtree is pinned by an uncommitted command.
	ErrInUse = store.ErrInUse

	// ErrInvalidAttribute indicates an attribute rejected by the kind schema.
	ErrInvalidAttribute = store.ErrInvalidAttribute

	// ErrInvalidParent indicates the parent is absent or a leaf kind.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrIndexOutOfRange indicates a child index outside the parent's child list.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrCycleDetected indicates a move under the node itself or one of its descendants.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrCannotRemoveRoot indicates an attempt to remove the root.
	ErrCannotRemoveRoot = errors.New("cannot remove root")

	// ErrCorruptSnapshot indicates a snapshot that cannot be restored.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// SnapshotError describes why a snapshot could not be restored.
type SnapshotError struct {
	Reason string
}

// Error implements the error interface.
func (e *SnapshotError) Error() string {
	return fmt.Sprintf("corrupt snapshot: %s", e.Reason)
}

// Is allows errors.Is to match SnapshotError with ErrCorruptSnapshot.
func (e *SnapshotError) Is(target error) bool {
	return target == ErrCorruptSnapshot
}

func corrupt(format string, args ...any) error {
	return &SnapshotError{Reason: fmt.Sprintf(format, args...)}
}
