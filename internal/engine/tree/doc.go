// Package tree maintains the parent/child/sibling-order structure of a project
// over the node arena in package store.
//
// A Tree has a single root (a group named "project") and guarantees that the
// graph reachable from the root is acyclic and that every non-root node has
// exactly one parent. Sibling order is an explicit ordered list; it is never
// derived from an attribute.
//
// # Validate then commit
//
// Every mutating operation checks all of its preconditions before touching the
// store. When an operation returns an error the tree is unchanged:
//
//	_, _, err := t.Move(group, child, 0)
//	if errors.Is(err, tree.ErrCycleDetected) {
//	    // t is exactly as it was before the call
//	}
//
// # Subtree snapshots
//
// RemoveSubtree returns a Snapshot holding the removed nodes in preorder along
// with the parent and index they were detached from. RestoreSubtree puts the
// same nodes back under their original identities, which is what undo of a
// delete (and redo of an insert) relies on.
//
// # Detached subtrees
//
// Detached describes a subtree without identities. Export produces one, Graft
// inserts one with freshly allocated identities and Build creates a new tree
// from one. Importers produce detached subtrees so that a background task
// never touches a live tree.
package tree
