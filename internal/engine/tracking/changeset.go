package tracking

import (
	"slices"

	"github.com/dshills/spriteforge/internal/engine/store"
)

// ChangeSet lists the identities touched by one committed mutation, undo or
// redo. Each list is unique and in first-touch order. A node that is created
// and destroyed within the same change set does not appear at all; a node that
// is destroyed and restored appears as updated.
type ChangeSet struct {
	Added   []store.ID
	Removed []store.ID
	Moved   []store.ID
	Updated []store.ID
}

// Empty reports whether the change set touches nothing.
func (cs ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Removed) == 0 && len(cs.Moved) == 0 && len(cs.Updated) == 0
}

// Len returns the number of entries across all lists.
func (cs ChangeSet) Len() int {
	return len(cs.Added) + len(cs.Removed) + len(cs.Moved) + len(cs.Updated)
}

// Clone returns a deep copy.
func (cs ChangeSet) Clone() ChangeSet {
	return ChangeSet{
		Added:   slices.Clone(cs.Added),
		Removed: slices.Clone(cs.Removed),
		Moved:   slices.Clone(cs.Moved),
		Updated: slices.Clone(cs.Updated),
	}
}

// Add records created or restored nodes.
func (cs *ChangeSet) Add(ids ...store.ID) {
	for _, id := range ids {
		if i := slices.Index(cs.Removed, id); i >= 0 {
			cs.Removed = slices.Delete(cs.Removed, i, i+1)
			cs.Update(id)
			continue
		}
		cs.Added = appendUnique(cs.Added, id)
	}
}

// Remove records destroyed nodes.
func (cs *ChangeSet) Remove(ids ...store.ID) {
	for _, id := range ids {
		if i := slices.Index(cs.Added, id); i >= 0 {
			cs.Added = slices.Delete(cs.Added, i, i+1)
			cs.Moved = without(cs.Moved, id)
			cs.Updated = without(cs.Updated, id)
			continue
		}
		cs.Moved = without(cs.Moved, id)
		cs.Updated = without(cs.Updated, id)
		cs.Removed = appendUnique(cs.Removed, id)
	}
}

// Move records reparented or reordered nodes.
func (cs *ChangeSet) Move(ids ...store.ID) {
	for _, id := range ids {
		if slices.Contains(cs.Added, id) {
			continue
		}
		cs.Moved = appendUnique(cs.Moved, id)
	}
}

// Update records nodes whose attributes changed.
func (cs *ChangeSet) Update(ids ...store.ID) {
	for _, id := range ids {
		if slices.Contains(cs.Added, id) {
			continue
		}
		cs.Updated = appendUnique(cs.Updated, id)
	}
}

// Merge folds other into cs as if its records had happened after cs's.
func (cs *ChangeSet) Merge(other ChangeSet) {
	cs.Remove(other.Removed...)
	cs.Add(other.Added...)
	cs.Move(other.Moved...)
	cs.Update(other.Updated...)
}

func appendUnique(ids []store.ID, id store.ID) []store.ID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func without(ids []store.ID, id store.ID) []store.ID {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
