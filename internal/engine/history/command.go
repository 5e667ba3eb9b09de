package history

import (
	"fmt"

	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tracking"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

// Command represents a reversible tree edit.
type Command interface {
	// Execute performs the command and records the touched identities in cs.
	// A failed Execute leaves the tree unchanged.
	Execute(t *tree.Tree, cs *tracking.ChangeSet) error

	// Undo reverses the command and records the touched identities in cs.
	Undo(t *tree.Tree, cs *tracking.ChangeSet) error

	// Description returns a human-readable description of the command.
	Description() string
}

// Coalescer is implemented by commands that can absorb the command that
// follows them. Coalesce reports whether next was absorbed; when it was, the
// receiver's Undo reverses both.
type Coalescer interface {
	Command
	Coalesce(next Command) bool
}

// InsertCommand creates a single node.
type InsertCommand struct {
	Parent store.ID
	Index  int
	Kind   store.Kind
	Attrs  store.Attrs

	id   store.ID
	snap *tree.Snapshot
}

// NewInsertCommand creates an insert command. Use tree.Append as index to add
// after the last child.
func NewInsertCommand(parent store.ID, index int, kind store.Kind, attrs store.Attrs) *InsertCommand {
	return &InsertCommand{Parent: parent, Index: index, Kind: kind, Attrs: attrs}
}

// ID returns the identity of the created node, or NilID before Execute.
func (c *InsertCommand) ID() store.ID {
	return c.id
}

// Execute creates the node. Redo restores the identity allocated the first time.
func (c *InsertCommand) Execute(t *tree.Tree, cs *tracking.ChangeSet) error {
	if c.snap != nil {
		if err := t.RestoreSubtree(*c.snap); err != nil {
			return fmt.Errorf("redo insert %d: %w", c.id, err)
		}
		cs.Add(c.snap.IDs()...)
		c.snap = nil
		return nil
	}
	id, err := t.Insert(c.Parent, c.Index, c.Kind, c.Attrs)
	if err != nil {
		return fmt.Errorf("insert %s under %d: %w", c.Kind, c.Parent, err)
	}
	c.id = id
	cs.Add(id)
	return nil
}

// Undo removes the created node.
func (c *InsertCommand) Undo(t *tree.Tree, cs *tracking.ChangeSet) error {
	if c.id == store.NilID || c.snap != nil {
		return ErrNotExecuted
	}
	snap, err := t.RemoveSubtree(c.id)
	if err != nil {
		return fmt.Errorf("undo insert %d: %w", c.id, err)
	}
	c.snap = &snap
	cs.Remove(snap.IDs()...)
	return nil
}

// Description returns a human-readable description.
func (c *InsertCommand) Description() string {
	if name := c.Attrs.String(store.AttrName); name != "" {
		return fmt.Sprintf("Insert %s %q", c.Kind, name)
	}
	return fmt.Sprintf("Insert %s", c.Kind)
}

// GraftCommand inserts a detached subtree.
type GraftCommand struct {
	Parent  store.ID
	Index   int
	Subtree tree.Detached
	Name    string

	ids  []store.ID
	snap *tree.Snapshot
}

// NewGraftCommand creates a graft command. name is used as the description.
func NewGraftCommand(name string, parent store.ID, index int, subtree tree.Detached) *GraftCommand {
	return &GraftCommand{Parent: parent, Index: index, Subtree: subtree, Name: name}
}

// ID returns the identity of the grafted subtree root, or NilID before Execute.
func (c *GraftCommand) ID() store.ID {
	if len(c.ids) == 0 {
		return store.NilID
	}
	return c.ids[0]
}

// IDs returns every grafted identity in preorder.
func (c *GraftCommand) IDs() []store.ID {
	return c.ids
}

// Execute grafts the subtree.
func (c *GraftCommand) Execute(t *tree.Tree, cs *tracking.ChangeSet) error {
	if c.snap != nil {
		if err := t.RestoreSubtree(*c.snap); err != nil {
			return fmt.Errorf("redo graft: %w", err)
		}
		cs.Add(c.snap.IDs()...)
		c.snap = nil
		return nil
	}
	ids, err := t.Graft(c.Parent, c.Index, c.Subtree)
	if err != nil {
		return fmt.Errorf("graft under %d: %w", c.Parent, err)
	}
	c.ids = ids
	cs.Add(ids...)
	return nil
}

// Undo removes the grafted subtree.
func (c *GraftCommand) Undo(t *tree.Tree, cs *tracking.ChangeSet) error {
	if len(c.ids) == 0 || c.snap != nil {
		return ErrNotExecuted
	}
	snap, err := t.RemoveSubtree(c.ids[0])
	if err != nil {
		return fmt.Errorf("undo graft: %w", err)
	}
	c.snap = &snap
	cs.Remove(snap.IDs()...)
	return nil
}

// Description returns a human-readable description.
func (c *GraftCommand) Description() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("Insert %d nodes", c.Subtree.Count())
}

// DeleteCommand removes a subtree.
type DeleteCommand struct {
	Target store.ID

	snap *tree.Snapshot
}

// NewDeleteCommand creates a delete command.
func NewDeleteCommand(target store.ID) *DeleteCommand {
	return &DeleteCommand{Target: target}
}

// Execute removes the subtree and keeps it for undo.
func (c *DeleteCommand) Execute(t *tree.Tree, cs *tracking.ChangeSet) error {
	snap, err := t.RemoveSubtree(c.Target)
	if err != nil {
		return fmt.Errorf("delete %d: %w", c.Target, err)
	}
	c.snap = &snap
	cs.Remove(snap.IDs()...)
	return nil
}

// Undo restores the removed subtree under its original identities.
func (c *DeleteCommand) Undo(t *tree.Tree, cs *tracking.ChangeSet) error {
	if c.snap == nil {
		return ErrNotExecuted
	}
	if err := t.RestoreSubtree(*c.snap); err != nil {
		return fmt.Errorf("undo delete %d: %w", c.Target, err)
	}
	cs.Add(c.snap.IDs()...)
	return nil
}

// Description returns a human-readable description.
func (c *DeleteCommand) Description() string {
	if c.snap != nil {
		if name := c.snap.Nodes[0].Name(); name != "" {
			return fmt.Sprintf("Delete %q", name)
		}
		return fmt.Sprintf("Delete %s", c.snap.Nodes[0].Kind)
	}
	return fmt.Sprintf("Delete node %d", c.Target)
}

// MoveCommand reparents or reorders a node. Within the same parent Index
// addresses the child list with the node removed.
type MoveCommand struct {
	Target store.ID
	Parent store.ID
	Index  int

	oldParent store.ID
	oldIndex  int
	executed  bool
	moved     bool
}

// NewMoveCommand creates a move command.
func NewMoveCommand(target, parent store.ID, index int) *MoveCommand {
	return &MoveCommand{Target: target, Parent: parent, Index: index}
}

// Execute moves the node and remembers where it came from.
func (c *MoveCommand) Execute(t *tree.Tree, cs *tracking.ChangeSet) error {
	oldParent, oldIndex, err := t.Move(c.Target, c.Parent, c.Index)
	if err != nil {
		return fmt.Errorf("move %d under %d: %w", c.Target, c.Parent, err)
	}
	c.oldParent, c.oldIndex, c.executed = oldParent, oldIndex, true

	parent, _ := t.Parent(c.Target)
	index, _ := t.IndexOf(c.Target)
	c.moved = parent != oldParent || index != oldIndex
	if c.moved {
		cs.Move(c.Target)
	}
	return nil
}

// Undo moves the node back.
func (c *MoveCommand) Undo(t *tree.Tree, cs *tracking.ChangeSet) error {
	if !c.executed {
		return ErrNotExecuted
	}
	if _, _, err := t.Move(c.Target, c.oldParent, c.oldIndex); err != nil {
		return fmt.Errorf("undo move %d: %w", c.Target, err)
	}
	if c.moved {
		cs.Move(c.Target)
	}
	return nil
}

// Moved reports whether the last Execute changed the node's position.
func (c *MoveCommand) Moved() bool {
	return c.moved
}

// Description returns a human-readable description.
func (c *MoveCommand) Description() string {
	return fmt.Sprintf("Move node %d", c.Target)
}

// RenameCommand changes a node's name.
type RenameCommand struct {
	Target store.ID
	Name   string

	before    string
	hadBefore bool
	executed  bool
}

// NewRenameCommand creates a rename command.
func NewRenameCommand(target store.ID, name string) *RenameCommand {
	return &RenameCommand{Target: target, Name: name}
}

// Execute sets the new name.
func (c *RenameCommand) Execute(t *tree.Tree, cs *tracking.ChangeSet) error {
	_, had, err := t.Store().Attr(c.Target, store.AttrName)
	if err != nil {
		return fmt.Errorf("rename %d: %w", c.Target, err)
	}
	before, err := t.Rename(c.Target, c.Name)
	if err != nil {
		return fmt.Errorf("rename %d: %w", c.Target, err)
	}
	c.before, c.hadBefore, c.executed = before, had, true
	cs.Update(c.Target)
	return nil
}

// Undo restores the previous name.
func (c *RenameCommand) Undo(t *tree.Tree, cs *tracking.ChangeSet) error {
	if !c.executed {
		return ErrNotExecuted
	}
	var err error
	if c.hadBefore {
		_, err = t.Rename(c.Target, c.before)
	} else {
		_, _, err = t.UnsetAttribute(c.Target, store.AttrName)
	}
	if err != nil {
		return fmt.Errorf("undo rename %d: %w", c.Target, err)
	}
	cs.Update(c.Target)
	return nil
}

// Coalesce absorbs a following rename of the same node that starts from the
// name this one set.
func (c *RenameCommand) Coalesce(next Command) bool {
	n, ok := next.(*RenameCommand)
	if !ok || !c.executed || !n.executed {
		return false
	}
	if n.Target != c.Target || !n.hadBefore || n.before != c.Name {
		return false
	}
	c.Name = n.Name
	return true
}

// Description returns a human-readable description.
func (c *RenameCommand) Description() string {
	return fmt.Sprintf("Rename to %q", c.Name)
}

// SetAttributeCommand changes one attribute.
type SetAttributeCommand struct {
	Target store.ID
	Key    string
	Value  any

	before    any
	hadBefore bool
	after     any
	executed  bool
}

// NewSetAttributeCommand creates a set-attribute command.
func NewSetAttributeCommand(target store.ID, key string, value any) *SetAttributeCommand {
	return &SetAttributeCommand{Target: target, Key: key, Value: value}
}

// Execute sets the attribute.
func (c *SetAttributeCommand) Execute(t *tree.Tree, cs *tracking.ChangeSet) error {
	before, had, err := t.SetAttribute(c.Target, c.Key, c.Value)
	if err != nil {
		return fmt.Errorf("set %s on %d: %w", c.Key, c.Target, err)
	}
	after, _, _ := t.Store().Attr(c.Target, c.Key)
	c.before, c.hadBefore, c.after, c.executed = before, had, after, true
	cs.Update(c.Target)
	return nil
}

// Undo restores the previous value, or removes the attribute if it was unset.
func (c *SetAttributeCommand) Undo(t *tree.Tree, cs *tracking.ChangeSet) error {
	if !c.executed {
		return ErrNotExecuted
	}
	var err error
	if c.hadBefore {
		_, _, err = t.SetAttribute(c.Target, c.Key, c.before)
	} else {
		_, _, err = t.UnsetAttribute(c.Target, c.Key)
	}
	if err != nil {
		return fmt.Errorf("undo set %s on %d: %w", c.Key, c.Target, err)
	}
	cs.Update(c.Target)
	return nil
}

// Coalesce absorbs a following edit of the same attribute of the same node
// that starts from the value this one set.
func (c *SetAttributeCommand) Coalesce(next Command) bool {
	n, ok := next.(*SetAttributeCommand)
	if !ok || !c.executed || !n.executed {
		return false
	}
	if n.Target != c.Target || n.Key != c.Key || !n.hadBefore || n.before != c.after {
		return false
	}
	c.Value, c.after = n.Value, n.after
	return true
}

// Description returns a human-readable description.
func (c *SetAttributeCommand) Description() string {
	return fmt.Sprintf("Set %s", c.Key)
}

// CompoundCommand groups multiple commands as one undo unit.
type CompoundCommand struct {
	Name     string
	Commands []Command
}

// NewCompoundCommand creates a new compound command.
func NewCompoundCommand(name string, commands ...Command) *CompoundCommand {
	return &CompoundCommand{
		Name:     name,
		Commands: commands,
	}
}

// Execute runs all commands in order. If a step fails the earlier steps are
// undone and the tree is left as it was.
func (c *CompoundCommand) Execute(t *tree.Tree, cs *tracking.ChangeSet) error {
	for i, cmd := range c.Commands {
		if err := cmd.Execute(t, cs); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = c.Commands[j].Undo(t, cs)
			}
			return fmt.Errorf("compound command '%s' step %d: %w", c.Name, i, err)
		}
	}
	return nil
}

// Undo reverses all commands in reverse order. If a step fails the steps
// already undone are executed again.
func (c *CompoundCommand) Undo(t *tree.Tree, cs *tracking.ChangeSet) error {
	for i := len(c.Commands) - 1; i >= 0; i-- {
		if err := c.Commands[i].Undo(t, cs); err != nil {
			for j := i + 1; j < len(c.Commands); j++ {
				_ = c.Commands[j].Execute(t, cs)
			}
			return fmt.Errorf("undo compound command '%s' step %d: %w", c.Name, i, err)
		}
	}
	return nil
}

// Description returns the compound command's name.
func (c *CompoundCommand) Description() string {
	if c.Name != "" {
		return c.Name
	}
	if len(c.Commands) == 1 {
		return c.Commands[0].Description()
	}
	return fmt.Sprintf("%d operations", len(c.Commands))
}

// Add adds a command to the compound command.
func (c *CompoundCommand) Add(cmd Command) {
	c.Commands = append(c.Commands, cmd)
}

// IsEmpty returns true if the compound command has no commands.
func (c *CompoundCommand) IsEmpty() bool {
	return len(c.Commands) == 0
}
