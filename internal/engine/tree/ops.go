package tree

import (
	"fmt"
	"slices"

	"github.com/dshills/spriteforge/internal/engine/store"
)

// Snapshot is a removed subtree together with the slot it was removed from.
type Snapshot struct {
	Parent store.ID
	Index  int
	// Nodes holds the subtree in preorder; Nodes[0] is the subtree root.
	Nodes []store.Node
}

// Root returns the identity of the snapshot's subtree root.
func (s Snapshot) Root() store.ID {
	if len(s.Nodes) == 0 {
		return store.NilID
	}
	return s.Nodes[0].ID
}

// IDs returns the identities held by the snapshot in preorder.
func (s Snapshot) IDs() []store.ID {
	ids := make([]store.ID, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// container returns the child list of a node that may hold children.
func (t *Tree) container(parent store.ID) ([]store.ID, error) {
	kind, err := t.store.Kind(parent)
	if err != nil || kind.IsLeaf() {
		return nil, ErrInvalidParent
	}
	return t.store.Children(parent)
}

// slot resolves an insertion index against a child list of length n.
func slot(index, n int) (int, error) {
	if index == Append {
		return n, nil
	}
	if index < 0 || index > n {
		return 0, ErrIndexOutOfRange
	}
	return index, nil
}

// Insert creates a node under parent at index and returns its identity.
func (t *Tree) Insert(parent store.ID, index int, kind store.Kind, attrs store.Attrs) (store.ID, error) {
	children, err := t.container(parent)
	if err != nil {
		return store.NilID, err
	}
	at, err := slot(index, len(children))
	if err != nil {
		return store.NilID, err
	}
	id, err := t.store.Create(kind, attrs)
	if err != nil {
		return store.NilID, err
	}
	t.attach(parent, at, children, id)
	return id, nil
}

func (t *Tree) attach(parent store.ID, at int, children []store.ID, id store.ID) {
	_ = t.store.SetChildren(parent, slices.Insert(children, at, id))
	t.parents[id] = parent
}

// RemoveSubtree detaches id and destroys it along with all descendants.
func (t *Tree) RemoveSubtree(id store.ID) (Snapshot, error) {
	if id == t.root {
		return Snapshot{}, ErrCannotRemoveRoot
	}
	ids, err := t.Subtree(id)
	if err != nil {
		return Snapshot{}, err
	}
	for _, d := range ids {
		if t.store.Pinned(d) {
			return Snapshot{}, fmt.Errorf("remove %d: node %d: %w", id, d, ErrInUse)
		}
	}

	snap := Snapshot{Parent: t.parents[id], Nodes: make([]store.Node, 0, len(ids))}
	for _, d := range ids {
		n, err := t.store.Get(d)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	siblings, err := t.store.Children(snap.Parent)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Index = slices.Index(siblings, id)

	_ = t.store.SetChildren(snap.Parent, slices.Delete(siblings, snap.Index, snap.Index+1))
	for _, d := range ids {
		_ = t.store.Destroy(d)
		delete(t.parents, d)
	}
	return snap, nil
}

// RestoreSubtree re-inserts a removed subtree under its original identities.
func (t *Tree) RestoreSubtree(snap Snapshot) error {
	if len(snap.Nodes) == 0 {
		return corrupt("empty")
	}
	children, err := t.container(snap.Parent)
	if err != nil {
		return err
	}
	at, err := slot(snap.Index, len(children))
	if err != nil {
		return err
	}
	if err := t.checkSnapshot(snap); err != nil {
		return err
	}

	for _, n := range snap.Nodes {
		if err := t.store.Revive(n); err != nil {
			return fmt.Errorf("restore %d: %w", n.ID, err)
		}
		for _, c := range n.Children {
			t.parents[c] = n.ID
		}
	}
	t.attach(snap.Parent, at, children, snap.Root())
	return nil
}

func (t *Tree) checkSnapshot(snap Snapshot) error {
	owned := make(map[store.ID]int, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if _, dup := owned[n.ID]; dup {
			return corrupt("node %d listed twice", n.ID)
		}
		owned[n.ID] = 0
		if !t.store.Retired(n.ID) {
			return corrupt("node %d is not a removed node", n.ID)
		}
		if !n.Kind.Valid() {
			return corrupt("node %d has invalid kind", n.ID)
		}
		if n.Kind.IsLeaf() && len(n.Children) > 0 {
			return corrupt("leaf %d has children", n.ID)
		}
		if _, err := store.ValidateAttrs(n.Kind, n.Attrs); err != nil {
			return corrupt("node %d: %v", n.ID, err)
		}
	}
	for _, n := range snap.Nodes {
		for _, c := range n.Children {
			refs, ok := owned[c]
			if !ok {
				return corrupt("node %d references missing child %d", n.ID, c)
			}
			if refs > 0 || c == snap.Root() {
				return corrupt("node %d has more than one parent", c)
			}
			owned[c] = refs + 1
		}
	}
	for id, refs := range owned {
		if id != snap.Root() && refs == 0 {
			return corrupt("node %d is detached from the subtree", id)
		}
	}
	return nil
}

// Move reparents id under newParent at newIndex. When newParent is the current
// parent, newIndex addresses the child list with id already removed. The
// previous parent and index are returned; moving a node to where it already is
// changes nothing.
func (t *Tree) Move(id, newParent store.ID, newIndex int) (store.ID, int, error) {
	if !t.store.Has(id) {
		return store.NilID, 0, ErrNotFound
	}
	dest, err := t.container(newParent)
	if err != nil {
		return store.NilID, 0, err
	}
	if t.IsAncestor(id, newParent) {
		return store.NilID, 0, ErrCycleDetected
	}

	oldParent := t.parents[id]
	siblings, err := t.store.Children(oldParent)
	if err != nil {
		return store.NilID, 0, err
	}
	oldIndex := slices.Index(siblings, id)
	siblings = slices.Delete(siblings, oldIndex, oldIndex+1)
	if newParent == oldParent {
		dest = siblings
	}
	at, err := slot(newIndex, len(dest))
	if err != nil {
		return store.NilID, 0, err
	}
	if newParent == oldParent && at == oldIndex {
		return oldParent, oldIndex, nil
	}

	if newParent != oldParent {
		_ = t.store.SetChildren(oldParent, siblings)
	}
	t.attach(newParent, at, dest, id)
	return oldParent, oldIndex, nil
}

// Rename sets the name attribute and returns the previous name.
func (t *Tree) Rename(id store.ID, name string) (string, error) {
	old, _, err := t.SetAttribute(id, store.AttrName, name)
	if err != nil {
		return "", err
	}
	prev, _ := old.(string)
	return prev, nil
}

// SetAttribute replaces a single attribute and returns the previous value and
// whether it was set.
func (t *Tree) SetAttribute(id store.ID, key string, value any) (any, bool, error) {
	n, err := t.store.Get(id)
	if err != nil {
		return nil, false, err
	}
	v, err := store.ValidateAttr(n.Kind, key, value)
	if err != nil {
		return nil, false, err
	}
	old, had := n.Attrs[key]
	attrs := n.Attrs.Clone()
	attrs[key] = v
	if err := t.store.Update(id, attrs); err != nil {
		return nil, false, err
	}
	return old, had, nil
}

// UnsetAttribute removes a single attribute and returns the previous value and
// whether it was set.
func (t *Tree) UnsetAttribute(id store.ID, key string) (any, bool, error) {
	n, err := t.store.Get(id)
	if err != nil {
		return nil, false, err
	}
	if _, ok := n.Kind.AttrTypeOf(key); !ok {
		return nil, false, &store.AttrError{Kind: n.Kind, Key: key, Err: store.ErrInvalidAttribute}
	}
	old, had := n.Attrs[key]
	if !had {
		return nil, false, nil
	}
	attrs := n.Attrs.Clone()
	delete(attrs, key)
	if err := t.store.Update(id, attrs); err != nil {
		return nil, false, err
	}
	return old, true, nil
}

// Pin marks id as targeted by pending work. Removing id or any of its
// ancestors fails with ErrInUse until the matching Unpin.
func (t *Tree) Pin(id store.ID) error {
	return t.store.Pin(id)
}

// Unpin releases a Pin.
func (t *Tree) Unpin(id store.ID) {
	t.store.Unpin(id)
}
