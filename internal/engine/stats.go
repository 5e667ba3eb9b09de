package engine

import "github.com/dshills/spriteforge/internal/engine/tracking"

// Stats is a snapshot of engine counters.
type Stats struct {
	Commits          uint64
	Undos            uint64
	Redos            uint64
	Aborts           uint64
	Corrupt          uint64
	Coalesced        uint64
	ImportsApplied   uint64
	ImportsFailed    uint64
	ImportsDiscarded uint64
	Saves            uint64

	Revision    tracking.Revision
	Nodes       int
	Blobs       int
	UndoDepth   int
	RedoDepth   int
	PendingJobs int
	TrackedRefs int
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Commits:          e.stats.commits.Load(),
		Undos:            e.stats.undos.Load(),
		Redos:            e.stats.redos.Load(),
		Aborts:           e.stats.aborts.Load(),
		Corrupt:          e.stats.corrupt.Load(),
		Coalesced:        e.history.Coalesced(),
		ImportsApplied:   e.stats.imported.Load(),
		ImportsFailed:    e.stats.failed.Load(),
		ImportsDiscarded: e.stats.discarded.Load(),
		Saves:            e.stats.saves.Load(),
		Revision:         e.tracker.Revision(),
		Nodes:            e.tree.Len(),
		Blobs:            e.blobs.Len(),
		UndoDepth:        e.history.UndoCount(),
		RedoDepth:        e.history.RedoCount(),
		PendingJobs:      len(e.pending),
		TrackedRefs:      e.tracker.RefCount(),
	}
}
