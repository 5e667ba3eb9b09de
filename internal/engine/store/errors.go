package store

import (
	"errors"
	"fmt"
)

// Errors returned by store operations.
var (
	// ErrNotFound indicates the ID is not a live node.
	ErrNotFound = errors.New("node not found")

	// ErrInUse indicates the node is pinned by an uncommitted command.
	ErrInUse = errors.New("node in use")

	// ErrInvalidKind indicates an unknown node kind.
	ErrInvalidKind = errors.New("invalid node kind")

	// ErrInvalidAttribute indicates an unknown attribute key or a value of the wrong type.
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrNotRetired indicates Revive was called for an ID that is live or was never allocated.
	ErrNotRetired = errors.New("id not retired")

	// ErrLeaf indicates children were assigned to a leaf kind.
	ErrLeaf = errors.New("leaf node cannot have children")
)

// AttrError describes a rejected attribute.
type AttrError struct {
	Kind  Kind
	Key   string
	Value any
	Err   error
}

// Error implements the error interface.
func (e *AttrError) Error() string {
	return fmt.Sprintf("%s attribute %q (%T): %v", e.Kind, e.Key, e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e *AttrError) Unwrap() error {
	return e.Err
}
