package tree

import (
	"fmt"

	"github.com/dshills/spriteforge/internal/engine/store"
)

// Detached describes a subtree without identities.
type Detached struct {
	Kind     store.Kind
	Attrs    store.Attrs
	Children []Detached
}

// Count returns the number of nodes in the description.
func (d Detached) Count() int {
	n := 1
	for _, c := range d.Children {
		n += c.Count()
	}
	return n
}

func (d Detached) validate(path string) error {
	if !d.Kind.Valid() {
		return fmt.Errorf("%s: %w", path, store.ErrInvalidKind)
	}
	if d.Kind.IsLeaf() && len(d.Children) > 0 {
		return fmt.Errorf("%s: %w", path, ErrInvalidParent)
	}
	if _, err := store.ValidateAttrs(d.Kind, d.Attrs); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for i, c := range d.Children {
		if err := c.validate(fmt.Sprintf("%s/%d", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// Export describes the subtree rooted at id.
func (t *Tree) Export(id store.ID) (Detached, error) {
	n, err := t.store.Get(id)
	if err != nil {
		return Detached{}, err
	}
	d := Detached{Kind: n.Kind, Attrs: n.Attrs}
	for _, c := range n.Children {
		cd, err := t.Export(c)
		if err != nil {
			return Detached{}, err
		}
		d.Children = append(d.Children, cd)
	}
	return d, nil
}

// Graft inserts a detached subtree under parent at index, allocating fresh
// identities. The new identities are returned in preorder.
func (t *Tree) Graft(parent store.ID, index int, d Detached) ([]store.ID, error) {
	children, err := t.container(parent)
	if err != nil {
		return nil, err
	}
	at, err := slot(index, len(children))
	if err != nil {
		return nil, err
	}
	if err := d.validate(d.Kind.String()); err != nil {
		return nil, err
	}
	ids := make([]store.ID, 0, d.Count())
	id, err := t.build(d, &ids)
	if err != nil {
		return nil, err
	}
	t.attach(parent, at, children, id)
	return ids, nil
}

func (t *Tree) build(d Detached, ids *[]store.ID) (store.ID, error) {
	id, err := t.store.Create(d.Kind, d.Attrs)
	if err != nil {
		return store.NilID, err
	}
	*ids = append(*ids, id)
	kids := make([]store.ID, 0, len(d.Children))
	for _, c := range d.Children {
		cid, err := t.build(c, ids)
		if err != nil {
			return store.NilID, err
		}
		kids = append(kids, cid)
		t.parents[cid] = id
	}
	if err := t.store.SetChildren(id, kids); err != nil {
		return store.NilID, err
	}
	return id, nil
}

// Build creates a new tree whose root is described by d. Identities are
// allocated in preorder starting at 1.
func Build(d Detached) (*Tree, error) {
	if d.Kind.IsLeaf() {
		return nil, fmt.Errorf("root kind %s: %w", d.Kind, ErrInvalidParent)
	}
	if err := d.validate(d.Kind.String()); err != nil {
		return nil, err
	}
	t := &Tree{
		store:   store.New(),
		parents: make(map[store.ID]store.ID),
	}
	var ids []store.ID
	root, err := t.build(d, &ids)
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}
