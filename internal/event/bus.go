package event

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dshills/spriteforge/internal/event/topic"
)

// Bus is the event bus interface.
type Bus interface {
	Publish(ctx context.Context, event any) error

	Subscribe(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error)
	Unsubscribe(sub Subscription) error

	Start() error
	Stop(ctx context.Context) error

	Stats() Stats
	IsRunning() bool
}

type queued struct {
	ctx   context.Context
	event any
	topic topic.Topic
	subs  []*subscription
}

// bus is the default Bus implementation.
type bus struct {
	mu   sync.RWMutex
	subs []*subscription // sorted by priority

	queue chan queued
	done  chan struct{}

	running atomic.Bool
	config  busConfig

	eventsPublished atomic.Uint64
	eventsDelivered atomic.Uint64
	eventsDropped   atomic.Uint64
	handlerErrors   atomic.Uint64
	handlerPanics   atomic.Uint64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &bus{config: config}
}

// Start starts the async worker.
func (b *bus) Start() error {
	if b.running.Swap(true) {
		return ErrBusAlreadyRunning
	}
	b.queue = make(chan queued, b.config.asyncQueueSize)
	b.done = make(chan struct{})
	go b.worker(b.queue, b.done)
	return nil
}

// Stop stops accepting events and waits for queued async deliveries to
// finish or for ctx to end.
func (b *bus) Stop(ctx context.Context) error {
	if !b.running.Swap(false) {
		return ErrBusNotRunning
	}
	b.mu.Lock()
	close(b.queue)
	done := b.done
	b.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns true if the bus is running.
func (b *bus) IsRunning() bool {
	return b.running.Load()
}

func (b *bus) worker(queue <-chan queued, done chan<- struct{}) {
	defer close(done)
	for q := range queue {
		for _, sub := range q.subs {
			b.deliver(q.ctx, q.topic, q.event, sub)
		}
	}
}

// Publish delivers the event to sync subscribers in priority order and queues
// it for async subscribers. A full async queue drops the event for those
// subscribers.
func (b *bus) Publish(ctx context.Context, event any) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}
	tp, ok := event.(TopicProvider)
	if !ok || !tp.EventTopic().IsValid() {
		return ErrInvalidEvent
	}
	t := tp.EventTopic()

	b.mu.RLock()
	var direct, deferred []*subscription
	for _, sub := range b.subs {
		if !sub.wants(t, event) {
			continue
		}
		if sub.config.mode == DeliveryAsync {
			deferred = append(deferred, sub)
		} else {
			direct = append(direct, sub)
		}
	}
	if len(deferred) > 0 && b.running.Load() {
		select {
		case b.queue <- queued{ctx: context.WithoutCancel(ctx), event: event, topic: t, subs: deferred}:
		default:
			b.eventsDropped.Add(1)
		}
	}
	b.mu.RUnlock()

	if len(direct) == 0 && len(deferred) == 0 {
		return nil
	}
	b.eventsPublished.Add(1)
	for _, sub := range direct {
		b.deliver(ctx, t, event, sub)
	}
	return nil
}

func (b *bus) deliver(ctx context.Context, t topic.Topic, event any, sub *subscription) {
	if !sub.IsActive() {
		return
	}
	err := b.invoke(ctx, t, event, sub)
	switch {
	case err == nil:
		b.eventsDelivered.Add(1)
		if sub.config.once {
			_ = b.Unsubscribe(sub)
		}
	case errors.Is(err, ErrHandlerPanic):
		b.config.logger.Error("event handler panicked", "topic", t, "subscription", sub.id, "panic", err)
	default:
		b.handlerErrors.Add(1)
		b.config.logger.Warn("event handler failed", "topic", t, "subscription", sub.id, "error", err)
	}
}

func (b *bus) invoke(ctx context.Context, t topic.Topic, event any, sub *subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerPanics.Add(1)
			perr := &PanicError{SubscriptionID: sub.id, Topic: t.String(), Value: r}
			if b.config.panicHandler != nil {
				b.config.panicHandler(event, perr)
			}
			err = perr
		}
	}()
	return sub.handler.Handle(ctx, event)
}

// Subscribe registers handler for topics matching pattern.
func (b *bus) Subscribe(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, ErrInvalidTopic
	}

	sub := newSubscription(pattern, handler, opts...)
	b.mu.Lock()
	defer b.mu.Unlock()
	i, _ := slices.BinarySearchFunc(b.subs, sub.config.priority, func(s *subscription, p Priority) int {
		if s.config.priority <= p {
			return -1
		}
		return 1
	})
	b.subs = slices.Insert(b.subs, i, sub)
	return sub, nil
}

// Unsubscribe cancels and removes a subscription.
func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	sub.Cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.IndexFunc(b.subs, func(s *subscription) bool { return s.id == sub.ID() })
	if i < 0 {
		return ErrSubscriptionNotFound
	}
	b.subs = slices.Delete(b.subs, i, i+1)
	return nil
}

// Stats returns current bus statistics.
func (b *bus) Stats() Stats {
	b.mu.RLock()
	active := len(b.subs)
	depth := 0
	if b.queue != nil && b.running.Load() {
		depth = len(b.queue)
	}
	b.mu.RUnlock()

	return Stats{
		EventsPublished:   b.eventsPublished.Load(),
		EventsDelivered:   b.eventsDelivered.Load(),
		EventsDropped:     b.eventsDropped.Load(),
		HandlerErrors:     b.handlerErrors.Load(),
		HandlerPanics:     b.handlerPanics.Load(),
		ActiveSubscribers: active,
		QueueDepth:        depth,
	}
}
