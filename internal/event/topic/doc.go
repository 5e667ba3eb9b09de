// Package topic provides hierarchical topic names and wildcard matching for
// the event bus.
//
// Topics use dot-notation:
//
//	document.changed
//	history.undone
//	asset.import.completed
//
// Two wildcards are supported in subscription patterns:
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
//
// Examples:
//
//	history.*          matches history.undone, history.redone
//	asset.**           matches asset.import.completed, asset.export.completed
//	**                 matches everything
package topic
