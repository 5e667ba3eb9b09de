package store

import (
	"slices"
)

// ID identifies a node for the lifetime of a Store.
type ID uint64

// NilID is never allocated.
const NilID ID = 0

// Node is one entry of the project tree.
type Node struct {
	ID       ID
	Kind     Kind
	Attrs    Attrs
	Children []ID
}

// Name returns the node's name attribute.
func (n Node) Name() string {
	return n.Attrs.String(AttrName)
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	return Node{
		ID:       n.ID,
		Kind:     n.Kind,
		Attrs:    n.Attrs.Clone(),
		Children: slices.Clone(n.Children),
	}
}

// Store is the node arena.
type Store struct {
	nodes   map[ID]*Node
	retired map[ID]struct{}
	pins    map[ID]int
	next    ID
}

// New creates an empty store.
func New() *Store {
	return &Store{
		nodes:   make(map[ID]*Node),
		retired: make(map[ID]struct{}),
		pins:    make(map[ID]int),
		next:    1,
	}
}

// Create allocates a new node with a fresh ID.
func (s *Store) Create(kind Kind, attrs Attrs) (ID, error) {
	if !kind.Valid() {
		return NilID, ErrInvalidKind
	}
	normalized, err := ValidateAttrs(kind, attrs)
	if err != nil {
		return NilID, err
	}
	id := s.next
	s.next++
	s.nodes[id] = &Node{ID: id, Kind: kind, Attrs: normalized}
	return id, nil
}

// Get returns a copy of the node.
func (s *Store) Get(id ID) (Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, ErrNotFound
	}
	return n.Clone(), nil
}

// Has reports whether id is a live node.
func (s *Store) Has(id ID) bool {
	_, ok := s.nodes[id]
	return ok
}

// Kind returns the kind of a live node.
func (s *Store) Kind(id ID) (Kind, error) {
	n, ok := s.nodes[id]
	if !ok {
		return 0, ErrNotFound
	}
	return n.Kind, nil
}

// Attr returns one attribute value.
func (s *Store) Attr(id ID, key string) (any, bool, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	v, set := n.Attrs[key]
	return v, set, nil
}

// Update replaces the attribute map of a node.
func (s *Store) Update(id ID, attrs Attrs) error {
	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	normalized, err := ValidateAttrs(n.Kind, attrs)
	if err != nil {
		return err
	}
	n.Attrs = normalized
	return nil
}

// Children returns a copy of the child list.
func (s *Store) Children(id ID) ([]ID, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(n.Children), nil
}

// ChildCount returns the number of children of id.
func (s *Store) ChildCount(id ID) (int, error) {
	n, ok := s.nodes[id]
	if !ok {
		return 0, ErrNotFound
	}
	return len(n.Children), nil
}

// SetChildren replaces the child list. The caller owns structural consistency.
func (s *Store) SetChildren(id ID, children []ID) error {
	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if n.Kind.IsLeaf() && len(children) > 0 {
		return ErrLeaf
	}
	n.Children = slices.Clone(children)
	return nil
}

// Destroy removes a node and retires its ID. Children are not touched.
func (s *Store) Destroy(id ID) error {
	if _, ok := s.nodes[id]; !ok {
		return ErrNotFound
	}
	if s.pins[id] > 0 {
		return ErrInUse
	}
	delete(s.nodes, id)
	s.retired[id] = struct{}{}
	return nil
}

// Revive restores a previously destroyed node under its original ID.
func (s *Store) Revive(n Node) error {
	if _, ok := s.retired[n.ID]; !ok {
		return ErrNotRetired
	}
	if !n.Kind.Valid() {
		return ErrInvalidKind
	}
	if n.Kind.IsLeaf() && len(n.Children) > 0 {
		return ErrLeaf
	}
	normalized, err := ValidateAttrs(n.Kind, n.Attrs)
	if err != nil {
		return err
	}
	delete(s.retired, n.ID)
	s.nodes[n.ID] = &Node{
		ID:       n.ID,
		Kind:     n.Kind,
		Attrs:    normalized,
		Children: slices.Clone(n.Children),
	}
	return nil
}

// Retired reports whether id was allocated and later destroyed.
func (s *Store) Retired(id ID) bool {
	_, ok := s.retired[id]
	return ok
}

// Pin marks a node as referenced by an uncommitted command.
func (s *Store) Pin(id ID) error {
	if _, ok := s.nodes[id]; !ok {
		return ErrNotFound
	}
	s.pins[id]++
	return nil
}

// Unpin releases one Pin. Unpinning an unpinned ID is a no-op.
func (s *Store) Unpin(id ID) {
	if s.pins[id] <= 1 {
		delete(s.pins, id)
		return
	}
	s.pins[id]--
}

// Pinned reports whether id is pinned.
func (s *Store) Pinned(id ID) bool {
	return s.pins[id] > 0
}

// Len returns the number of live nodes.
func (s *Store) Len() int {
	return len(s.nodes)
}

// IDs returns the live IDs in ascending order.
func (s *Store) IDs() []ID {
	ids := make([]ID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NextID returns the ID the next Create call will allocate.
func (s *Store) NextID() ID {
	return s.next
}
