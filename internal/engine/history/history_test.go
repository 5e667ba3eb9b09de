package history

import (
	"errors"
	"testing"
	"time"

	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tracking"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestHistory(t *testing.T, opts ...Option) (*History, *tree.Tree, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tr := tree.New()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(tr, opts...), tr, clock
}

func mustExecute(t *testing.T, h *History, cmd Command) tracking.ChangeSet {
	t.Helper()
	cs, err := h.Execute(cmd)
	if err != nil {
		t.Fatalf("Execute %q failed: %v", cmd.Description(), err)
	}
	return cs
}

// failingUndo executes normally and cannot be reversed.
type failingUndo struct{}

func (failingUndo) Execute(*tree.Tree, *tracking.ChangeSet) error { return nil }
func (failingUndo) Undo(*tree.Tree, *tracking.ChangeSet) error {
	return errors.New("inverse lost")
}
func (failingUndo) Description() string { return "broken" }

func TestUndoRedoRestoresStates(t *testing.T) {
	h, tr, _ := newTestHistory(t)

	states := []string{tr.Dump()}
	g := NewInsertCommand(tr.Root(), tree.Append, store.KindGroup, store.Attrs{store.AttrName: "G"})
	mustExecute(t, h, g)
	states = append(states, tr.Dump())

	l := NewInsertCommand(g.ID(), tree.Append, store.KindLayer, store.Attrs{store.AttrName: "L"})
	mustExecute(t, h, l)
	states = append(states, tr.Dump())

	cmds := []Command{
		NewInsertCommand(l.ID(), tree.Append, store.KindFrame, store.Attrs{store.AttrFrame: 0}),
		NewRenameCommand(l.ID(), "body"),
		NewSetAttributeCommand(l.ID(), store.AttrOpacity, 200),
		NewMoveCommand(l.ID(), tr.Root(), 0),
		NewDeleteCommand(g.ID()),
	}
	for _, cmd := range cmds {
		mustExecute(t, h, cmd)
		states = append(states, tr.Dump())
	}

	n := len(states) - 1
	for i := n; i > 0; i-- {
		if _, err := h.Undo(); err != nil {
			t.Fatalf("Undo %d failed: %v", i, err)
		}
		if got := tr.Dump(); got != states[i-1] {
			t.Fatalf("after undo to state %d:\n%s\nwant:\n%s", i-1, got, states[i-1])
		}
	}
	if _, err := h.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("extra Undo = %v, want ErrNothingToUndo", err)
	}

	for i := 1; i <= n; i++ {
		if _, err := h.Redo(); err != nil {
			t.Fatalf("Redo %d failed: %v", i, err)
		}
		if got := tr.Dump(); got != states[i] {
			t.Fatalf("after redo to state %d:\n%s\nwant:\n%s", i, got, states[i])
		}
	}
	if _, err := h.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Errorf("extra Redo = %v, want ErrNothingToRedo", err)
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestRedoKeepsIdentity(t *testing.T) {
	h, tr, _ := newTestHistory(t)
	cmd := NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, nil)
	cs := mustExecute(t, h, cmd)
	id := cmd.ID()
	if len(cs.Added) != 1 || cs.Added[0] != id {
		t.Errorf("insert change set = %+v", cs)
	}

	cs, _ = h.Undo()
	if len(cs.Removed) != 1 || cs.Removed[0] != id {
		t.Errorf("undo change set = %+v", cs)
	}
	if tr.Has(id) {
		t.Fatal("node survived undo")
	}
	if _, err := h.Redo(); err != nil {
		t.Fatalf("Redo failed: %v", err)
	}
	if !tr.Has(id) {
		t.Errorf("redo did not restore id %d", id)
	}
}

func TestExecuteTruncatesRedoTail(t *testing.T) {
	h, tr, _ := newTestHistory(t)
	for _, name := range []string{"a", "b", "c"} {
		mustExecute(t, h, NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, store.Attrs{store.AttrName: name}))
	}
	_, _ = h.Undo()
	_, _ = h.Undo()
	if h.RedoCount() != 2 {
		t.Fatalf("RedoCount = %d, want 2", h.RedoCount())
	}

	mustExecute(t, h, NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, store.Attrs{store.AttrName: "d"}))
	if h.CanRedo() {
		t.Error("redo tail survived a new command")
	}
	if h.UndoCount() != 2 {
		t.Errorf("UndoCount = %d, want 2", h.UndoCount())
	}
}

func TestFailedExecuteRecordsNothing(t *testing.T) {
	h, tr, _ := newTestHistory(t)
	before := tr.Dump()
	if _, err := h.Execute(NewDeleteCommand(tr.Root())); !errors.Is(err, tree.ErrCannotRemoveRoot) {
		t.Errorf("Execute = %v, want ErrCannotRemoveRoot", err)
	}
	if h.CanUndo() || tr.Dump() != before {
		t.Error("failed command left a trace")
	}
}

func TestTransactions(t *testing.T) {
	h, tr, _ := newTestHistory(t)

	if _, err := h.Commit(); !errors.Is(err, ErrNoTransaction) {
		t.Errorf("Commit without Begin = %v", err)
	}
	if _, err := h.Abort(); !errors.Is(err, ErrNoTransaction) {
		t.Errorf("Abort without Begin = %v", err)
	}

	if err := h.Begin("Build"); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := h.Begin("nested"); !errors.Is(err, ErrTransactionOpen) {
		t.Errorf("nested Begin = %v, want ErrTransactionOpen", err)
	}
	g := NewInsertCommand(tr.Root(), tree.Append, store.KindGroup, store.Attrs{store.AttrName: "G"})
	mustExecute(t, h, g)
	mustExecute(t, h, NewInsertCommand(g.ID(), tree.Append, store.KindLayer, nil))
	if _, err := h.Undo(); !errors.Is(err, ErrTransactionOpen) {
		t.Errorf("Undo while recording = %v, want ErrTransactionOpen", err)
	}

	cs, err := h.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if len(cs.Added) != 2 {
		t.Errorf("commit change set = %+v", cs)
	}
	if h.UndoCount() != 1 {
		t.Fatalf("UndoCount = %d, want 1", h.UndoCount())
	}
	if info, _ := h.PeekUndo(); info.Description != "Build" {
		t.Errorf("entry description = %q", info.Description)
	}

	if _, err := h.Undo(); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if tr.Len() != 1 {
		t.Errorf("undo of transaction left %d nodes", tr.Len())
	}
}

func TestEmptyTransactionRecordsNothing(t *testing.T) {
	h, _, _ := newTestHistory(t)
	_ = h.Begin("nothing")
	cs, err := h.Commit()
	if err != nil || !cs.Empty() {
		t.Fatalf("Commit = (%+v, %v)", cs, err)
	}
	if h.CanUndo() {
		t.Error("empty transaction created an entry")
	}
}

func TestAbortRevertsEverything(t *testing.T) {
	h, tr, _ := newTestHistory(t)
	l := NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, store.Attrs{store.AttrName: "L"})
	mustExecute(t, h, l)
	before := tr.Dump()

	_, err := h.Transaction("edit", func() error {
		mustExecute(t, h, NewRenameCommand(l.ID(), "renamed"))
		mustExecute(t, h, NewInsertCommand(l.ID(), tree.Append, store.KindFrame, nil))
		return errors.New("user cancelled")
	})
	if err == nil {
		t.Fatal("Transaction swallowed the error")
	}
	if got := tr.Dump(); got != before {
		t.Errorf("abort left:\n%s\nwant:\n%s", got, before)
	}
	if h.Recording() {
		t.Error("still recording after abort")
	}
	if h.UndoCount() != 1 {
		t.Errorf("UndoCount = %d, want 1", h.UndoCount())
	}
}

func TestCorruptEntry(t *testing.T) {
	h, tr, _ := newTestHistory(t)
	mustExecute(t, h, NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, nil))
	mustExecute(t, h, failingUndo{})

	_, err := h.Undo()
	var undoErr *UndoError
	if !errors.As(err, &undoErr) || !errors.Is(err, ErrCorruptEntry) {
		t.Fatalf("Undo = %v, want *UndoError wrapping ErrCorruptEntry", err)
	}
	if undoErr.Description != "broken" {
		t.Errorf("UndoError.Description = %q", undoErr.Description)
	}
	if h.UndoCount() != 2 {
		t.Errorf("cursor moved: UndoCount = %d", h.UndoCount())
	}

	// the rest of the history is still usable
	mustExecute(t, h, NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, nil))
	if _, err := h.Undo(); err != nil {
		t.Errorf("Undo after corrupt entry failed: %v", err)
	}
}

func TestPinnedEntryIsNotCorrupt(t *testing.T) {
	h, tr, _ := newTestHistory(t)
	ins := NewInsertCommand(tr.Root(), tree.Append, store.KindGroup, nil)
	mustExecute(t, h, ins)
	if err := tr.Pin(ins.ID()); err != nil {
		t.Fatal(err)
	}

	_, err := h.Undo()
	var undoErr *UndoError
	if !errors.As(err, &undoErr) || !errors.Is(err, tree.ErrInUse) {
		t.Fatalf("Undo = %v, want *UndoError wrapping ErrInUse", err)
	}
	if errors.Is(err, ErrCorruptEntry) || undoErr.Corrupt() {
		t.Errorf("pinned entry reported corrupt: %v", err)
	}
	if h.UndoCount() != 1 {
		t.Errorf("cursor moved: UndoCount = %d", h.UndoCount())
	}

	tr.Unpin(ins.ID())
	if _, err := h.Undo(); err != nil {
		t.Fatalf("Undo after Unpin: %v", err)
	}
	if tr.Len() != 1 {
		t.Errorf("Len = %d after undo", tr.Len())
	}
}

func TestCompoundRollsBackFailedStep(t *testing.T) {
	h, tr, _ := newTestHistory(t)
	before := tr.Dump()
	cmd := NewCompoundCommand("bad",
		NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, nil),
		NewDeleteCommand(tr.Root()),
	)
	if _, err := h.Execute(cmd); !errors.Is(err, tree.ErrCannotRemoveRoot) {
		t.Fatalf("Execute = %v", err)
	}
	if tr.Dump() != before {
		t.Error("compound left partial changes")
	}
}

func TestCoalescing(t *testing.T) {
	h, tr, clock := newTestHistory(t, WithCoalesceWindow(time.Second), WithCoalesceMaxOps(3))
	l := NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, store.Attrs{store.AttrOpacity: 0})
	mustExecute(t, h, l)
	id := l.ID()

	for _, v := range []int{10, 20, 30} {
		clock.Advance(100 * time.Millisecond)
		mustExecute(t, h, NewSetAttributeCommand(id, store.AttrOpacity, v))
	}
	if h.UndoCount() != 2 {
		t.Fatalf("UndoCount = %d, want 2 (insert + coalesced edits)", h.UndoCount())
	}
	if info, _ := h.PeekUndo(); info.Ops != 3 {
		t.Errorf("Ops = %d, want 3", info.Ops)
	}

	// max ops reached
	clock.Advance(100 * time.Millisecond)
	mustExecute(t, h, NewSetAttributeCommand(id, store.AttrOpacity, 40))
	if h.UndoCount() != 3 {
		t.Fatalf("UndoCount = %d after max ops, want 3", h.UndoCount())
	}

	// outside the window
	clock.Advance(2 * time.Second)
	mustExecute(t, h, NewSetAttributeCommand(id, store.AttrOpacity, 50))
	if h.UndoCount() != 4 {
		t.Fatalf("UndoCount = %d after window, want 4", h.UndoCount())
	}

	// a different key never merges
	clock.Advance(10 * time.Millisecond)
	mustExecute(t, h, NewSetAttributeCommand(id, store.AttrBlend, "multiply"))
	if h.UndoCount() != 5 {
		t.Fatalf("UndoCount = %d after other key, want 5", h.UndoCount())
	}

	if _, err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := tr.Store().Attr(id, store.AttrOpacity); v != int64(30) {
		t.Errorf("opacity after undoing to coalesced entry = %v, want 30", v)
	}
	if _, err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := tr.Store().Attr(id, store.AttrOpacity); v != int64(0) {
		t.Errorf("opacity after undoing coalesced entry = %v, want 0", v)
	}
	if h.Coalesced() != 2 {
		t.Errorf("Coalesced = %d, want 2", h.Coalesced())
	}
}

func TestCoalesceRequiresContinuity(t *testing.T) {
	h, tr, clock := newTestHistory(t, WithCoalesceWindow(time.Minute))
	l := NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, store.Attrs{store.AttrName: "a"})
	mustExecute(t, h, l)

	mustExecute(t, h, NewRenameCommand(l.ID(), "b"))
	// an edit outside history breaks continuity
	if _, err := tr.Rename(l.ID(), "x"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Millisecond)
	mustExecute(t, h, NewRenameCommand(l.ID(), "c"))
	if h.UndoCount() != 3 {
		t.Errorf("UndoCount = %d, want 3", h.UndoCount())
	}
}

func TestCoalesceSweep(t *testing.T) {
	h, tr, clock := newTestHistory(t)
	l := NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, store.Attrs{store.AttrName: "a"})
	mustExecute(t, h, l)
	for _, name := range []string{"b", "c", "d"} {
		clock.Advance(50 * time.Millisecond)
		mustExecute(t, h, NewRenameCommand(l.ID(), name))
	}
	clock.Advance(time.Hour)
	mustExecute(t, h, NewRenameCommand(l.ID(), "e"))
	_, _ = h.Undo()
	if h.UndoCount() != 4 || h.RedoCount() != 1 {
		t.Fatalf("counts = %d/%d", h.UndoCount(), h.RedoCount())
	}

	if merged := h.Coalesce(time.Second); merged != 2 {
		t.Errorf("Coalesce merged %d, want 2", merged)
	}
	if h.UndoCount() != 2 || h.RedoCount() != 1 {
		t.Errorf("counts after sweep = %d/%d", h.UndoCount(), h.RedoCount())
	}

	if _, err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if n, _ := tr.Get(l.ID()); n.Name() != "a" {
		t.Errorf("name after undoing swept entry = %q, want a", n.Name())
	}
	if _, err := h.Redo(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Redo(); err != nil {
		t.Fatal(err)
	}
	if n, _ := tr.Get(l.ID()); n.Name() != "e" {
		t.Errorf("name after redo = %q, want e", n.Name())
	}
}

func TestMaxEntries(t *testing.T) {
	h, tr, _ := newTestHistory(t, WithMaxEntries(3))
	for i := 0; i < 5; i++ {
		mustExecute(t, h, NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, nil))
	}
	if h.UndoCount() != 3 {
		t.Errorf("UndoCount = %d, want 3", h.UndoCount())
	}
	for h.CanUndo() {
		if _, err := h.Undo(); err != nil {
			t.Fatal(err)
		}
	}
	if kids, _ := tr.Children(tr.Root()); len(kids) != 2 {
		t.Errorf("%d children left, want the 2 trimmed inserts", len(kids))
	}

	h.SetMaxEntries(1)
	if h.RedoCount() != 1 {
		t.Errorf("RedoCount after shrinking = %d, want 1", h.RedoCount())
	}
}

func TestInfo(t *testing.T) {
	h, tr, _ := newTestHistory(t)
	l := NewInsertCommand(tr.Root(), tree.Append, store.KindLayer, store.Attrs{store.AttrName: "L"})
	mustExecute(t, h, l)
	mustExecute(t, h, NewRenameCommand(l.ID(), "M"))
	_, _ = h.Undo()

	undo := h.UndoInfo()
	if len(undo) != 1 || undo[0].Description != `Insert layer "L"` {
		t.Errorf("UndoInfo = %+v", undo)
	}
	redo := h.RedoInfo()
	if len(redo) != 1 || redo[0].Description != `Rename to "M"` {
		t.Errorf("RedoInfo = %+v", redo)
	}
}
