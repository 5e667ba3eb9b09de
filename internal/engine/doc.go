// Package engine provides the document engine of the sprite editor.
//
// The engine package is the editor context: it combines the project tree,
// command-based undo/redo, weak node references and background imports into
// a single API. There is no global state; every open project is an Engine.
//
// # Architecture
//
// The engine is built on several sub-packages:
//
//   - store: the node arena (identities, kinds, attributes, pins)
//   - tree: parent/child structure with validated structural edits
//   - history: commands, transactions, coalescing and the undo cursor
//   - tracking: weak references, named slots and change sets
//
// Imports run on a jobs.Runner and are applied by ProcessResults or Wait.
// Projects are read and written with the archive package.
//
// # Basic Usage
//
//	e := engine.New(engine.WithOnChange(func(cs engine.ChangeSet) {
//		renderer.Apply(cs)
//	}))
//	defer e.Close()
//
//	sprite, _ := e.Insert(e.Root(), engine.Append, engine.KindSprite,
//		engine.Attrs{"name": "duck", "width": 32, "height": 32})
//	layer, _ := e.Insert(sprite, engine.Append, engine.KindLayer,
//		engine.Attrs{"name": "body"})
//
//	e.Rename(layer, "torso")
//	e.Undo() // name is "body" again
//	e.Redo() // name is "torso"
//
// # Transactions
//
// Group edits so they undo as one entry:
//
//	err := e.Transaction("Add walk cycle", func() error {
//		for i := range 4 {
//			if _, err := e.Insert(layer, engine.Append, engine.KindFrame,
//				engine.Attrs{"frame": i}); err != nil {
//				return err
//			}
//		}
//		return nil
//	})
//
// If fn fails the transaction is aborted and the tree is restored. Change
// notifications for a transaction are delivered once, on Commit.
//
// # References
//
// A Reference follows a node across edits. Resolving a reference to a
// deleted node returns ErrStale; undoing the delete makes it valid again
// because identities are never reused:
//
//	ref, _ := e.Track(layer)
//	e.Delete(layer)
//	_, err := e.Resolve(ref) // ErrStale
//	e.Undo()
//	n, _ := e.Resolve(ref)   // the restored layer
//
// # Background Imports
//
//	tok, _ := e.Import(ctx, engine.ImportRequest{Parent: e.Root(), Path: "duck.aseprite"})
//	...
//	e.ProcessResults() // from the editor loop, or
//	e.Wait(ctx)        // block until all imports are applied
//
// The import target is pinned until its result is applied: deleting it, or
// any ancestor, fails with ErrInUse. Cancelled or superseded results are
// discarded when they arrive.
//
// # Thread Safety
//
// Engine methods are safe for concurrent use, but the design assumes a
// single editor goroutine issuing mutations. OnChange callbacks and bus
// handlers run after the engine lock is released; they may read the engine
// and must not mutate it.
package engine
