package event

import "context"

// Priority orders sync handlers. Lower values run first.
type Priority int

const (
	// PriorityCritical is for the renderer and reference bookkeeping.
	PriorityCritical Priority = 0

	// PriorityHigh is for UI panels that mirror document state.
	PriorityHigh Priority = 100

	// PriorityNormal is the default.
	PriorityNormal Priority = 200

	// PriorityLow is for logging and statistics.
	PriorityLow Priority = 300
)

// DeliveryMode specifies how events are delivered to handlers.
type DeliveryMode int

const (
	// DeliverySync runs the handler on the publisher's goroutine.
	DeliverySync DeliveryMode = iota

	// DeliveryAsync queues the event for the bus worker.
	DeliveryAsync
)

// String returns a human-readable delivery mode name.
func (m DeliveryMode) String() string {
	switch m {
	case DeliverySync:
		return "sync"
	case DeliveryAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Handler processes events. The event is type-erased; handlers type-assert.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// TypedHandlerFunc handles events of one payload type.
type TypedHandlerFunc[T any] func(ctx context.Context, event Event[T]) error

// AsHandler adapts a typed handler. Events of other payload types are skipped.
func AsHandler[T any](fn TypedHandlerFunc[T]) Handler {
	return HandlerFunc(func(ctx context.Context, event any) error {
		if e, ok := event.(Event[T]); ok {
			return fn(ctx, e)
		}
		return nil
	})
}

// FilterFunc reports whether an event should be delivered.
type FilterFunc func(event any) bool

// PanicHandler is called when a handler panics.
type PanicHandler func(event any, err *PanicError)

// Stats contains event bus statistics.
type Stats struct {
	EventsPublished   uint64
	EventsDelivered   uint64
	EventsDropped     uint64
	HandlerErrors     uint64
	HandlerPanics     uint64
	ActiveSubscribers int
	QueueDepth        int
}
