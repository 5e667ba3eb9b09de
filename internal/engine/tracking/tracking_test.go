package tracking

import (
	"errors"
	"slices"
	"testing"

	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

func newTestTree(t *testing.T) (*tree.Tree, store.ID, store.ID) {
	t.Helper()
	tr := tree.New()
	g, err := tr.Insert(tr.Root(), tree.Append, store.KindGroup, store.Attrs{store.AttrName: "G"})
	if err != nil {
		t.Fatalf("Insert G: %v", err)
	}
	l, err := tr.Insert(g, tree.Append, store.KindLayer, store.Attrs{store.AttrName: "L1"})
	if err != nil {
		t.Fatalf("Insert L1: %v", err)
	}
	return tr, g, l
}

func TestChangeSetNetEffect(t *testing.T) {
	tests := []struct {
		name string
		fn   func(cs *ChangeSet)
		want ChangeSet
	}{
		{
			name: "add then remove cancels",
			fn: func(cs *ChangeSet) {
				cs.Add(5)
				cs.Update(5)
				cs.Remove(5)
			},
			want: ChangeSet{},
		},
		{
			name: "remove then add is an update",
			fn: func(cs *ChangeSet) {
				cs.Remove(5)
				cs.Add(5)
			},
			want: ChangeSet{Updated: []store.ID{5}},
		},
		{
			name: "remove drops earlier moves",
			fn: func(cs *ChangeSet) {
				cs.Move(3)
				cs.Update(3)
				cs.Remove(3)
			},
			want: ChangeSet{Removed: []store.ID{3}},
		},
		{
			name: "duplicates collapse",
			fn: func(cs *ChangeSet) {
				cs.Move(1, 1, 2)
				cs.Update(2)
				cs.Update(2)
			},
			want: ChangeSet{Moved: []store.ID{1, 2}, Updated: []store.ID{2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cs ChangeSet
			tt.fn(&cs)
			if !slices.Equal(cs.Added, tt.want.Added) || !slices.Equal(cs.Removed, tt.want.Removed) ||
				!slices.Equal(cs.Moved, tt.want.Moved) || !slices.Equal(cs.Updated, tt.want.Updated) {
				t.Errorf("got %+v, want %+v", cs, tt.want)
			}
		})
	}
}

func TestTrackResolve(t *testing.T) {
	tr, _, l := newTestTree(t)
	tracker := NewTracker(tr)

	ref, err := tracker.Track(l)
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	n, err := tracker.Resolve(ref)
	if err != nil || n.Name() != "L1" {
		t.Fatalf("Resolve = (%q, %v)", n.Name(), err)
	}

	if _, err := tracker.Track(999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Track(missing) = %v, want ErrNotFound", err)
	}
	if _, err := tracker.Resolve(nil); !errors.Is(err, ErrStale) {
		t.Errorf("Resolve(nil) = %v, want ErrStale", err)
	}
}

func TestReconcileStaleAndRestore(t *testing.T) {
	tr, g, l := newTestTree(t)
	tracker := NewTracker(tr)
	ref, _ := tracker.Track(l)
	gref, _ := tracker.Track(g)

	snap, err := tr.RemoveSubtree(l)
	if err != nil {
		t.Fatalf("RemoveSubtree: %v", err)
	}
	var removed ChangeSet
	removed.Remove(snap.IDs()...)
	tracker.Reconcile(removed)

	if _, err := tracker.Resolve(ref); !errors.Is(err, ErrStale) {
		t.Errorf("Resolve after delete = %v, want ErrStale", err)
	}
	if !tracker.Valid(gref) {
		t.Error("unrelated reference went stale")
	}

	if err := tr.RestoreSubtree(snap); err != nil {
		t.Fatalf("RestoreSubtree: %v", err)
	}
	var restored ChangeSet
	restored.Add(snap.IDs()...)
	tracker.Reconcile(restored)

	n, err := tracker.Resolve(ref)
	if err != nil || n.ID != l {
		t.Errorf("Resolve after restore = (%d, %v)", n.ID, err)
	}
}

func TestReconcileMoveKeepsReference(t *testing.T) {
	tr, _, l := newTestTree(t)
	tracker := NewTracker(tr)
	ref, _ := tracker.Track(l)

	if _, _, err := tr.Move(l, tr.Root(), 0); err != nil {
		t.Fatalf("Move: %v", err)
	}
	tracker.Reconcile(ChangeSet{Moved: []store.ID{l}})
	if !tracker.Valid(ref) {
		t.Error("move invalidated reference")
	}
}

func TestSlots(t *testing.T) {
	tr, g, l := newTestTree(t)
	tracker := NewTracker(tr)

	if err := tracker.Set(SlotSelection, g, l); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := tracker.Get(SlotSelection); !slices.Equal(got, []store.ID{g, l}) {
		t.Errorf("selection = %v", got)
	}

	snap, _ := tr.RemoveSubtree(l)
	tracker.Reconcile(ChangeSet{Removed: snap.IDs()})
	if got := tracker.Get(SlotSelection); !slices.Equal(got, []store.ID{g}) {
		t.Errorf("selection after delete = %v", got)
	}
	if refs := tracker.Refs(SlotSelection); len(refs) != 2 {
		t.Errorf("stale slot entries dropped: %d refs", len(refs))
	}

	_ = tr.RestoreSubtree(snap)
	tracker.Reconcile(ChangeSet{Added: snap.IDs()})
	if got := tracker.Get(SlotSelection); !slices.Equal(got, []store.ID{g, l}) {
		t.Errorf("selection after restore = %v", got)
	}

	if err := tracker.Set(SlotActiveLayer, 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Set missing = %v", err)
	}
	if err := tracker.Set("", g); !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("Set empty slot = %v", err)
	}

	tracker.Clear(SlotSelection)
	if got := tracker.Get(SlotSelection); len(got) != 0 {
		t.Errorf("selection after Clear = %v", got)
	}
	if n := tracker.RefCount(); n != 0 {
		t.Errorf("RefCount after Clear = %d", n)
	}
}

func TestChangesSince(t *testing.T) {
	tr := tree.New()
	tracker := NewTracker(tr, WithMaxChanges(2))

	r1 := tracker.Reconcile(ChangeSet{Added: []store.ID{10}})
	tracker.Reconcile(ChangeSet{Updated: []store.ID{11}})
	r3 := tracker.Reconcile(ChangeSet{Moved: []store.ID{12}})

	cs, ok := tracker.ChangesSince(r1)
	if !ok {
		t.Fatal("ChangesSince(r1) reported incomplete")
	}
	if !slices.Equal(cs.Updated, []store.ID{11}) || !slices.Equal(cs.Moved, []store.ID{12}) {
		t.Errorf("ChangesSince(r1) = %+v", cs)
	}
	if _, ok := tracker.ChangesSince(0); ok {
		t.Error("ChangesSince(0) should be incomplete after the ring wrapped")
	}
	if cs, ok := tracker.ChangesSince(r3); !ok || !cs.Empty() {
		t.Errorf("ChangesSince(latest) = %+v, %v", cs, ok)
	}
}
