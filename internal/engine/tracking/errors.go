package tracking

import "errors"

var (
	// ErrStale indicates a reference to a node that no longer exists.
	ErrStale = errors.New("stale reference")

	// ErrUnknownSlot indicates an empty slot name.
	ErrUnknownSlot = errors.New("unknown slot")
)
