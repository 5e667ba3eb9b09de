// Package tracking keeps selections and other references to nodes consistent
// with the tree as it changes.
//
// Every committed mutation, undo and redo produces a [ChangeSet] listing the
// identities that were added, removed, moved or updated. The [Tracker] applies
// each change set to the references it hands out:
//
//   - references to removed nodes become stale
//   - references to restored nodes become valid again
//   - moves leave references untouched
//
// # Usage
//
//	tracker := tracking.NewTracker(t)
//
//	ref, _ := tracker.Track(layerID)
//	rev := tracker.Reconcile(changes)
//
//	if _, err := tracker.Resolve(ref); errors.Is(err, tracking.ErrStale) {
//	    // the layer was deleted
//	}
//
// # Named slots
//
// The tracker also owns the editor's named reference slots: the selection,
// the active frame and the active layer. Slot entries that go stale are kept
// so that undoing the deletion brings them back.
//
// # Change history
//
// Reconciled change sets are kept in a bounded ring buffer keyed by revision
// so that a consumer that fell behind can ask for everything since the last
// revision it saw.
//
// # Thread Safety
//
// All Tracker operations are safe for concurrent use.
package tracking
