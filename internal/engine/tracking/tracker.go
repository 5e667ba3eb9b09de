package tracking

import (
	"slices"
	"sync"

	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

// Named slots used by the editor.
const (
	SlotSelection   = "selection"
	SlotActiveFrame = "active_frame"
	SlotActiveLayer = "active_layer"
)

// DefaultMaxChanges is the default number of change sets kept for ChangesSince.
const DefaultMaxChanges = 256

// Revision numbers reconciled change sets. Revision 0 is the initial state.
type Revision uint64

// Reference is a weak handle to a node. It does not keep the node alive.
type Reference struct {
	id    store.ID
	valid bool
}

// ID returns the referenced identity.
func (r *Reference) ID() store.ID {
	return r.id
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithMaxChanges sets the number of change sets kept for ChangesSince.
func WithMaxChanges(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.maxChanges = n
		}
	}
}

type trackedChange struct {
	revision Revision
	changes  ChangeSet
}

// Tracker hands out references and keeps them consistent with a tree.
type Tracker struct {
	mu sync.RWMutex

	tree  *tree.Tree
	refs  map[store.ID][]*Reference
	slots map[string][]*Reference

	revision Revision

	// Recent change sets in a ring buffer
	changes    []trackedChange
	head       int
	count      int
	maxChanges int
}

// NewTracker creates a tracker over t.
func NewTracker(t *tree.Tree, opts ...TrackerOption) *Tracker {
	tr := &Tracker{
		tree:       t,
		refs:       make(map[store.ID][]*Reference),
		slots:      make(map[string][]*Reference),
		maxChanges: DefaultMaxChanges,
	}
	for _, opt := range opts {
		opt(tr)
	}
	tr.changes = make([]trackedChange, tr.maxChanges)
	return tr
}

// Track returns a new reference to a live node.
func (t *Tracker) Track(id store.ID) (*Reference, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trackLocked(id)
}

func (t *Tracker) trackLocked(id store.ID) (*Reference, error) {
	if !t.tree.Has(id) {
		return nil, store.ErrNotFound
	}
	ref := &Reference{id: id, valid: true}
	t.refs[id] = append(t.refs[id], ref)
	return ref, nil
}

// Release stops updating ref. Released references always resolve as stale.
func (t *Tracker) Release(ref *Reference) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked(ref)
}

func (t *Tracker) releaseLocked(ref *Reference) {
	list := t.refs[ref.id]
	if i := slices.Index(list, ref); i >= 0 {
		list = slices.Delete(list, i, i+1)
	}
	if len(list) == 0 {
		delete(t.refs, ref.id)
	} else {
		t.refs[ref.id] = list
	}
	ref.valid = false
}

// Valid reports whether ref currently resolves.
func (t *Tracker) Valid(ref *Reference) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ref.valid && t.tree.Has(ref.id)
}

// Resolve returns the referenced node or ErrStale.
func (t *Tracker) Resolve(ref *Reference) (store.Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if ref == nil || !ref.valid {
		return store.Node{}, ErrStale
	}
	n, err := t.tree.Get(ref.id)
	if err != nil {
		return store.Node{}, ErrStale
	}
	return n, nil
}

// Reconcile applies a committed change set to every tracked reference and
// records it under a new revision, which is returned.
func (t *Tracker) Reconcile(cs ChangeSet) Revision {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range cs.Removed {
		for _, ref := range t.refs[id] {
			ref.valid = false
		}
	}
	for _, ids := range [][]store.ID{cs.Added, cs.Updated} {
		for _, id := range ids {
			live := t.tree.Has(id)
			for _, ref := range t.refs[id] {
				ref.valid = live
			}
		}
	}

	t.revision++
	t.recordLocked(t.revision, cs.Clone())
	return t.revision
}

func (t *Tracker) recordLocked(rev Revision, cs ChangeSet) {
	idx := (t.head + t.count) % t.maxChanges
	if t.count < t.maxChanges {
		t.count++
	} else {
		t.head = (t.head + 1) % t.maxChanges
	}
	t.changes[idx] = trackedChange{revision: rev, changes: cs}
}

// Revision returns the latest reconciled revision.
func (t *Tracker) Revision() Revision {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revision
}

// ChangesSince returns the retained change sets newer than rev, oldest first,
// merged into one. The boolean is false when the ring buffer no longer holds
// every revision after rev and the caller must resynchronize from the tree.
func (t *Tracker) ChangesSince(rev Revision) (ChangeSet, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out ChangeSet
	complete := rev >= t.revision
	for i := 0; i < t.count; i++ {
		tc := t.changes[(t.head+i)%t.maxChanges]
		if tc.revision <= rev {
			continue
		}
		if tc.revision == rev+1 {
			complete = true
		}
		out.Merge(tc.changes)
	}
	return out, complete
}

// Set replaces the contents of a named slot.
func (t *Tracker) Set(slot string, ids ...store.ID) error {
	if slot == "" {
		return ErrUnknownSlot
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	refs := make([]*Reference, 0, len(ids))
	for _, id := range ids {
		ref, err := t.trackLocked(id)
		if err != nil {
			for _, r := range refs {
				t.releaseLocked(r)
			}
			return err
		}
		refs = append(refs, ref)
	}
	t.clearLocked(slot)
	if len(refs) > 0 {
		t.slots[slot] = refs
	}
	return nil
}

// Get returns the live identities held in a named slot, in the order they
// were set.
func (t *Tracker) Get(slot string) []store.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []store.ID
	for _, ref := range t.slots[slot] {
		if ref.valid && t.tree.Has(ref.id) {
			ids = append(ids, ref.id)
		}
	}
	return ids
}

// Refs returns the references held in a named slot, stale ones included.
func (t *Tracker) Refs(slot string) []*Reference {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.slots[slot])
}

// Clear empties a named slot.
func (t *Tracker) Clear(slot string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLocked(slot)
}

func (t *Tracker) clearLocked(slot string) {
	for _, ref := range t.slots[slot] {
		t.releaseLocked(ref)
	}
	delete(t.slots, slot)
}

// RefCount returns the number of live tracked references.
func (t *Tracker) RefCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, list := range t.refs {
		n += len(list)
	}
	return n
}

// Reset drops every reference, slot and recorded change set. The revision
// counter keeps increasing.
func (t *Tracker) Reset(tr *tree.Tree) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, list := range t.refs {
		for _, ref := range list {
			ref.valid = false
		}
	}
	t.tree = tr
	t.refs = make(map[store.ID][]*Reference)
	t.slots = make(map[string][]*Reference)
	t.head, t.count = 0, 0
}
