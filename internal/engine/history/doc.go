// Package history provides undo/redo for the project tree.
//
// The history system uses the Command pattern to encapsulate tree edits,
// enabling them to be executed, undone, and redone. Each command stores only
// the state it needs to reverse itself: a delete keeps the removed subtree, a
// move keeps the old parent and index, an attribute edit keeps the old value.
//
// # Commands
//
// Built-in commands:
//   - InsertCommand: create one node
//   - GraftCommand: insert a detached subtree (imports)
//   - DeleteCommand: remove a subtree
//   - MoveCommand: reparent or reorder a node
//   - RenameCommand: change a node's name
//   - SetAttributeCommand: change one attribute
//   - CompoundCommand: several commands as one undo unit
//
// Commands report the identities they touch into a tracking.ChangeSet.
//
// # History
//
// History is an ordered list of applied entries plus a cursor:
//
//	h := history.New(t, history.WithMaxEntries(500))
//
//	cs, err := h.Execute(history.NewRenameCommand(id, "walk"))
//
//	h.Undo()
//	h.Redo()
//
// Executing after an undo drops the redo tail.
//
// # Transactions
//
// Several commands can be recorded as a single entry:
//
//	h.Begin("Import sprite")
//	// ... Execute ...
//	cs, err := h.Commit()
//
// Abort reverses everything executed since Begin. Transactions do not nest.
//
// # Coalescing
//
// Consecutive renames of one node, or consecutive edits of one attribute of
// one node, merge into a single entry when they arrive within the coalesce
// window and each edit starts from the value the previous one left.
package history
