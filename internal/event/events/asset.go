package events

import (
	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/event/topic"
)

// Asset topics.
const (
	// TopicImportCompleted is published when an import result is applied.
	TopicImportCompleted topic.Topic = "asset.import.completed"

	// TopicImportFailed is published when an import task fails.
	TopicImportFailed topic.Topic = "asset.import.failed"

	// TopicImportDiscarded is published when a cancelled or superseded result arrives.
	TopicImportDiscarded topic.Topic = "asset.import.discarded"

	// TopicExportCompleted is published when an archive has been written.
	TopicExportCompleted topic.Topic = "asset.export.completed"

	// TopicSourceChanged is published when a watched source file changes.
	TopicSourceChanged topic.Topic = "asset.source.changed"
)

// ImportCompleted describes an applied import.
type ImportCompleted struct {
	Name  string
	Root  store.ID
	Nodes int
	Timing
}

// ImportFailed describes a failed import.
type ImportFailed struct {
	Name string
	Err  string
	Timing
}

// ImportDiscarded describes a result that arrived after being cancelled.
type ImportDiscarded struct {
	Name string
}

// ExportCompleted describes a written archive.
type ExportCompleted struct {
	Path  string
	Bytes int64
	Nodes int
	Blobs int
}

// SourceChanged describes a change to a watched file.
type SourceChanged struct {
	Path string
	Op   string
}
