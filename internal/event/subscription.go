package event

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/spriteforge/internal/event/topic"
)

// Subscription is a registered handler.
type Subscription interface {
	ID() string
	Topic() topic.Topic
	IsActive() bool
	Cancel()
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*subscriptionConfig)

type subscriptionConfig struct {
	priority Priority
	mode     DeliveryMode
	filter   FilterFunc
	once     bool
}

// WithPriority sets the handler priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.priority = p
	}
}

// WithAsync delivers events to the handler on the bus worker goroutine.
func WithAsync() SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.mode = DeliveryAsync
	}
}

// WithFilter only delivers events for which f returns true.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.filter = f
	}
}

// WithOnce cancels the subscription after its first successful delivery.
func WithOnce() SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.once = true
	}
}

type subscription struct {
	id        string
	pattern   topic.Topic
	handler   Handler
	config    subscriptionConfig
	cancelled atomic.Bool
}

func newSubscription(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) *subscription {
	cfg := subscriptionConfig{priority: PriorityNormal, mode: DeliverySync}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: handler,
		config:  cfg,
	}
}

func (s *subscription) ID() string         { return s.id }
func (s *subscription) Topic() topic.Topic { return s.pattern }
func (s *subscription) IsActive() bool     { return !s.cancelled.Load() }
func (s *subscription) Cancel()            { s.cancelled.Store(true) }

func (s *subscription) wants(t topic.Topic, event any) bool {
	if !s.IsActive() || !t.Matches(s.pattern) {
		return false
	}
	return s.config.filter == nil || s.config.filter(event)
}
