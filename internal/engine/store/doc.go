// Package store provides the node arena for the document engine.
//
// Every node of a project (sprites, groups, layers and frames) lives in a
// Store addressed by a stable ID. The store holds no parent pointers and no
// ownership cycles: structure is expressed only as ordered child ID lists,
// which the tree package keeps consistent.
//
// # Identity
//
// IDs are allocated from a monotonically increasing counter starting at 1.
// A destroyed ID is retired for the lifetime of the Store and is never
// returned by Create again, so a stale reference can always be detected by
// looking the ID up. Revive is the one way a retired ID comes back: it
// restores the exact node that was destroyed (undo of a delete), it does not
// reuse the ID for something new.
//
// # Attributes
//
// Attributes are a flat map of scalar values checked against a per-kind
// schema (see Kind.Schema). Integer values are normalized to int64 so that
// equality is well defined after a round trip through an archive.
//
// # Pinning
//
// A pending command that has not been committed yet (for example a background
// import that will insert under a group) pins its target. Destroying a pinned
// node fails with ErrInUse.
//
// The store is not safe for concurrent mutation; the engine serializes all
// writes on the editor goroutine.
package store
