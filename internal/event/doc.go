// Package event provides the publish/subscribe bus that carries document
// notifications from the engine to its consumers (renderer, history panel,
// CLI progress output).
//
// # Topics
//
// Events are addressed by hierarchical topics (see package topic); payload
// types and topic constants live in package events.
//
// # Publishing
//
// Publish delivers synchronously to sync subscribers, in priority order, on
// the caller's goroutine, and queues the event for async subscribers:
//
//	evt := event.NewEvent(events.TopicDocumentChanged, payload, "engine")
//	bus.Publish(ctx, evt)
//
// # Subscribing
//
//	sub, err := bus.Subscribe("history.*", event.HandlerFunc(func(ctx context.Context, e any) error {
//	    ...
//	}), event.WithPriority(event.PriorityHigh))
//
// Handlers that panic are isolated; the panic is counted and reported to the
// configured panic handler.
package event
