package aseprite

import "fmt"

// ParseError reports malformed or unsupported input.
type ParseError struct {
	// Field names the header field or chunk that failed, e.g. "header.magic".
	Field  string
	Reason string
	// Offset is the byte offset where the failing structure begins.
	Offset int64
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("aseprite: %s at offset %d: %s", e.Field, e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
