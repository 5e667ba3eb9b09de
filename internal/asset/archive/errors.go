package archive

import (
	"errors"
	"fmt"

	"github.com/dshills/spriteforge/internal/engine/store"
)

// ErrUnsupportedVersion indicates a manifest written by a newer format version.
var ErrUnsupportedVersion = errors.New("unsupported archive version")

// ParseError reports a malformed archive.
type ParseError struct {
	// Field is the archive entry or manifest path that failed.
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("archive: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// EncodeError reports a tree that cannot be packaged.
type EncodeError struct {
	Node   store.ID
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("archive: node %d: %s", e.Node, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error {
	return e.Err
}
