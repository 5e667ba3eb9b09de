package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/spriteforge/internal/engine/tracking"
)

// Begin starts recording a transaction. Commands executed until Commit form
// a single history entry named name.
func (h *History) Begin(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.recording {
		return ErrTransactionOpen
	}
	h.recording = true
	h.txName = name
	h.txCmds = nil
	h.txChanges = tracking.ChangeSet{}
	return nil
}

// Recording returns true while a transaction is open.
func (h *History) Recording() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recording
}

// Commit closes the transaction and records it as one entry, dropping the
// redo tail. An empty transaction records nothing. The returned change set
// covers every command in the transaction.
func (h *History) Commit() (tracking.ChangeSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.recording {
		return tracking.ChangeSet{}, ErrNoTransaction
	}
	cmds, cs, name := h.txCmds, h.txChanges, h.txName
	h.endLocked()

	switch len(cmds) {
	case 0:
		return tracking.ChangeSet{}, nil
	case 1:
		h.recordLocked(cmds[0])
	default:
		h.recordLocked(NewCompoundCommand(name, cmds...))
	}
	return cs, nil
}

// Abort closes the transaction and reverses every command executed since
// Begin, newest first. The returned change set covers the reversal.
func (h *History) Abort() (tracking.ChangeSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.recording {
		return tracking.ChangeSet{}, ErrNoTransaction
	}
	cmds, name := h.txCmds, h.txName
	h.endLocked()

	var cs tracking.ChangeSet
	var errs []error
	for i := len(cmds) - 1; i >= 0; i-- {
		if err := cmds[i].Undo(h.tree, &cs); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return cs, &UndoError{Op: "abort", Description: name, Err: errors.Join(errs...)}
	}
	return cs, nil
}

func (h *History) endLocked() {
	h.recording = false
	h.txName = ""
	h.txCmds = nil
	h.txChanges = tracking.ChangeSet{}
}

// Transaction executes fn within a transaction.
// If fn returns an error, the transaction is aborted.
// Otherwise, it is committed.
func (h *History) Transaction(name string, fn func() error) (tracking.ChangeSet, error) {
	if err := h.Begin(name); err != nil {
		return tracking.ChangeSet{}, err
	}
	if err := fn(); err != nil {
		if _, abortErr := h.Abort(); abortErr != nil {
			return tracking.ChangeSet{}, errors.Join(err, abortErr)
		}
		return tracking.ChangeSet{}, err
	}
	return h.Commit()
}

// Coalesce sweeps the applied entries and merges adjacent coalescable
// entries whose gap is at most window. The redo tail is not touched. It
// returns the number of entries merged away.
func (h *History) Coalesce(window time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.recording {
		return 0
	}

	tail := append([]*entry(nil), h.entries[h.cursor:]...)
	kept := make([]*entry, 0, h.cursor)
	merged := 0
	for _, e := range h.entries[:h.cursor] {
		if n := len(kept); n > 0 {
			last := kept[n-1]
			fits := h.coalesceMaxOps <= 0 || last.ops+e.ops <= h.coalesceMaxOps
			if fits && e.started.Sub(last.timestamp) <= window {
				if c, ok := last.command.(Coalescer); ok && c.Coalesce(e.command) {
					last.timestamp = e.timestamp
					last.ops += e.ops
					merged++
					continue
				}
			}
		}
		kept = append(kept, e)
	}

	h.entries = append(kept, tail...)
	h.cursor = len(kept)
	h.coalesced += uint64(merged)
	return merged
}
