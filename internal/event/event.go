package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/spriteforge/internal/event/topic"
)

// Event is a typed event. Events are immutable once created.
type Event[T any] struct {
	Type     topic.Topic
	Payload  T
	Metadata Metadata
}

// Metadata is attached to every event.
type Metadata struct {
	ID        string
	Timestamp time.Time
	// Source identifies the component that published the event.
	Source string
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent[T any](eventType topic.Topic, payload T, source string) Event[T] {
	return Event[T]{
		Type:    eventType,
		Payload: payload,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// EventTopic returns the event's topic for type-erased handling.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Type
}

// TopicProvider is implemented by anything the bus can route.
type TopicProvider interface {
	EventTopic() topic.Topic
}
