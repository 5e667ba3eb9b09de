package events

import (
	"time"

	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tracking"
	"github.com/dshills/spriteforge/internal/event/topic"
)

// Document and history topics.
const (
	// TopicDocumentChanged is published once per committed command, undo or redo.
	TopicDocumentChanged topic.Topic = "document.changed"

	// TopicDocumentOpened is published when a project is opened or replaced.
	TopicDocumentOpened topic.Topic = "document.opened"

	// TopicHistoryCommitted is published when an entry is recorded.
	TopicHistoryCommitted topic.Topic = "history.committed"

	// TopicHistoryUndone is published after a successful undo.
	TopicHistoryUndone topic.Topic = "history.undone"

	// TopicHistoryRedone is published after a successful redo.
	TopicHistoryRedone topic.Topic = "history.redone"

	// TopicHistoryCorrupt is published when an entry cannot be undone or redone.
	TopicHistoryCorrupt topic.Topic = "history.corrupt"
)

// Cause says what produced a document change.
type Cause string

// Causes of document changes.
const (
	CauseCommit Cause = "commit"
	CauseUndo   Cause = "undo"
	CauseRedo   Cause = "redo"
	CauseAbort  Cause = "abort"
	CauseImport Cause = "import"
)

// DocumentChanged carries the change set the renderer applies.
type DocumentChanged struct {
	Revision    tracking.Revision
	Cause       Cause
	Description string
	Changes     tracking.ChangeSet
}

// DocumentOpened is published when the engine switches to a new tree.
type DocumentOpened struct {
	Path  string
	Root  store.ID
	Nodes int
}

// HistoryChanged describes the history after a commit, undo or redo.
type HistoryChanged struct {
	Description string
	UndoCount   int
	RedoCount   int
}

// HistoryCorrupt reports an entry that could not be reversed.
type HistoryCorrupt struct {
	Op          string
	Description string
	Err         string
}

// Timing is embedded in payloads of background work.
type Timing struct {
	Started  time.Time
	Duration time.Duration
}
