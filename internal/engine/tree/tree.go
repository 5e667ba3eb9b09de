package tree

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dshills/spriteforge/internal/engine/store"
)

// Append inserts at the end of the parent's child list.
const Append = -1

// RootName is the name given to the root group of a new tree.
const RootName = "project"

// Tree is the project hierarchy.
type Tree struct {
	store   *store.Store
	root    store.ID
	parents map[store.ID]store.ID
}

// New creates a tree holding only the root group.
func New() *Tree {
	s := store.New()
	root, err := s.Create(store.KindGroup, store.Attrs{store.AttrName: RootName})
	if err != nil {
		panic(fmt.Sprintf("tree: create root: %v", err))
	}
	return &Tree{
		store:   s,
		root:    root,
		parents: make(map[store.ID]store.ID),
	}
}

// Root returns the root identity.
func (t *Tree) Root() store.ID {
	return t.root
}

// Store returns the underlying node store.
// Structural changes must go through the tree.
func (t *Tree) Store() *store.Store {
	return t.store
}

// Len returns the number of live nodes, root included.
func (t *Tree) Len() int {
	return t.store.Len()
}

// Has reports whether id is a live node.
func (t *Tree) Has(id store.ID) bool {
	return t.store.Has(id)
}

// Get returns a copy of the node.
func (t *Tree) Get(id store.ID) (store.Node, error) {
	return t.store.Get(id)
}

// Children returns a copy of the ordered child list.
func (t *Tree) Children(id store.ID) ([]store.ID, error) {
	return t.store.Children(id)
}

// Parent returns the parent of id. The root has no parent and returns NilID.
func (t *Tree) Parent(id store.ID) (store.ID, error) {
	if !t.store.Has(id) {
		return store.NilID, ErrNotFound
	}
	return t.parents[id], nil
}

// IndexOf returns the position of id within its parent's child list.
func (t *Tree) IndexOf(id store.ID) (int, error) {
	if !t.store.Has(id) {
		return -1, ErrNotFound
	}
	if id == t.root {
		return 0, nil
	}
	siblings, err := t.store.Children(t.parents[id])
	if err != nil {
		return -1, err
	}
	return slices.Index(siblings, id), nil
}

// IsAncestor reports whether ancestor lies on the path from id up to the root.
// A node is considered its own ancestor.
func (t *Tree) IsAncestor(ancestor, id store.ID) bool {
	for cur := id; cur != store.NilID; cur = t.parents[cur] {
		if cur == ancestor {
			return true
		}
		if cur == t.root {
			break
		}
	}
	return false
}

// Walk visits id and its descendants in preorder. Returning false from fn
// skips the children of the visited node.
func (t *Tree) Walk(id store.ID, fn func(n store.Node, depth int) bool) error {
	if !t.store.Has(id) {
		return ErrNotFound
	}
	t.walk(id, 0, fn)
	return nil
}

func (t *Tree) walk(id store.ID, depth int, fn func(store.Node, int) bool) {
	n, err := t.store.Get(id)
	if err != nil {
		return
	}
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		t.walk(c, depth+1, fn)
	}
}

// Subtree returns id and all of its descendants in preorder.
func (t *Tree) Subtree(id store.ID) ([]store.ID, error) {
	var ids []store.ID
	err := t.Walk(id, func(n store.Node, _ int) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids, err
}

// Path returns the names from the root down to id, joined by "/".
func (t *Tree) Path(id store.ID) (string, error) {
	if !t.store.Has(id) {
		return "", ErrNotFound
	}
	var names []string
	for cur := id; ; cur = t.parents[cur] {
		n, err := t.store.Get(cur)
		if err != nil {
			return "", err
		}
		names = append(names, n.Name())
		if cur == t.root {
			break
		}
	}
	slices.Reverse(names)
	return strings.Join(names, "/"), nil
}

// Dump renders the tree in a stable indented form. Two trees with the same
// identities, kinds, attributes and order dump identically.
func (t *Tree) Dump() string {
	var b strings.Builder
	t.walk(t.root, 0, func(n store.Node, depth int) bool {
		fmt.Fprintf(&b, "%s%d %s", strings.Repeat("  ", depth), n.ID, n.Kind)
		for _, key := range sortedKeys(n.Attrs) {
			fmt.Fprintf(&b, " %s=%v", key, n.Attrs[key])
		}
		b.WriteByte('\n')
		return true
	})
	return b.String()
}

// Validate checks the structural invariants: every live node is reachable
// exactly once from the root and the parent index agrees with the child lists.
func (t *Tree) Validate() error {
	seen := make(map[store.ID]bool, t.store.Len())
	var visit func(id, parent store.ID) error
	visit = func(id, parent store.ID) error {
		if seen[id] {
			return fmt.Errorf("node %d reachable twice", id)
		}
		seen[id] = true
		if id != t.root && t.parents[id] != parent {
			return fmt.Errorf("node %d: parent index %d, owner %d", id, t.parents[id], parent)
		}
		children, err := t.store.Children(id)
		if err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
		for _, c := range children {
			if err := visit(c, id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(t.root, store.NilID); err != nil {
		return err
	}
	if len(seen) != t.store.Len() {
		return fmt.Errorf("%d live nodes, %d reachable", t.store.Len(), len(seen))
	}
	if len(t.parents) != len(seen)-1 {
		return fmt.Errorf("parent index has %d entries, want %d", len(t.parents), len(seen)-1)
	}
	return nil
}

func sortedKeys(a store.Attrs) []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
