// Package events defines the topics and payloads published by the engine.
//
// Topics follow <area>.<entity>.<action> naming:
//
//   - document.changed: one per committed command, undo or redo
//   - history.*: history cursor movements and failures
//   - asset.import.*, asset.export.*: background import and export outcomes
//   - asset.source.changed: a watched source file changed on disk
//
// Usage:
//
//	bus.Subscribe(events.TopicDocumentChanged, event.AsHandler(
//	    func(ctx context.Context, e event.Event[events.DocumentChanged]) error {
//	        return renderer.Apply(e.Payload.Changes)
//	    }))
package events
