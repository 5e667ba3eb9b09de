package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/spriteforge/internal/event/topic"
)

type payload struct {
	N int
}

func newRunningBus(t *testing.T, opts ...BusOption) Bus {
	t.Helper()
	b := NewBus(opts...)
	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = b.Stop(ctx)
	})
	return b
}

func TestPublishRequiresRunningBus(t *testing.T) {
	b := NewBus()
	err := b.Publish(context.Background(), NewEvent[payload]("document.changed", payload{}, "test"))
	if !errors.Is(err, ErrBusNotRunning) {
		t.Errorf("Publish = %v, want ErrBusNotRunning", err)
	}
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(); !errors.Is(err, ErrBusAlreadyRunning) {
		t.Errorf("second Start = %v", err)
	}
	_ = b.Stop(context.Background())
}

func TestSyncDeliveryOrder(t *testing.T) {
	b := newRunningBus(t)
	var order []string
	record := func(name string) Handler {
		return HandlerFunc(func(context.Context, any) error {
			order = append(order, name)
			return nil
		})
	}

	mustSubscribe := func(pattern topic.Topic, h Handler, opts ...SubscriptionOption) Subscription {
		sub, err := b.Subscribe(pattern, h, opts...)
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		return sub
	}
	mustSubscribe("document.*", record("normal"))
	mustSubscribe("**", record("low"), WithPriority(PriorityLow))
	mustSubscribe("document.changed", record("critical"), WithPriority(PriorityCritical))
	mustSubscribe("history.*", record("unrelated"))

	if err := b.Publish(context.Background(), NewEvent[payload]("document.changed", payload{}, "test")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	want := []string{"critical", "normal", "low"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestTypedHandlerAndFilter(t *testing.T) {
	b := newRunningBus(t)
	var got []int
	_, err := b.Subscribe("document.changed", AsHandler(func(_ context.Context, e Event[payload]) error {
		got = append(got, e.Payload.N)
		return nil
	}), WithFilter(func(e any) bool {
		ev, ok := e.(Event[payload])
		return ok && ev.Payload.N%2 == 0
	}))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		_ = b.Publish(context.Background(), NewEvent[payload]("document.changed", payload{N: i}, "test"))
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("got %v, want [0 2]", got)
	}
}

func TestOnceAndUnsubscribe(t *testing.T) {
	b := newRunningBus(t)
	calls := 0
	sub, _ := b.Subscribe("document.changed", HandlerFunc(func(context.Context, any) error {
		calls++
		return nil
	}), WithOnce())

	evt := NewEvent[payload]("document.changed", payload{}, "test")
	_ = b.Publish(context.Background(), evt)
	_ = b.Publish(context.Background(), evt)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if sub.IsActive() {
		t.Error("once subscription still active")
	}
	if err := b.Unsubscribe(sub); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("Unsubscribe after once = %v", err)
	}
}

func TestHandlerPanicIsolated(t *testing.T) {
	var recovered *PanicError
	b := newRunningBus(t, WithBusPanicHandler(func(_ any, err *PanicError) {
		recovered = err
	}))
	reached := false
	_, _ = b.Subscribe("document.changed", HandlerFunc(func(context.Context, any) error {
		panic("boom")
	}), WithPriority(PriorityCritical))
	_, _ = b.Subscribe("document.changed", HandlerFunc(func(context.Context, any) error {
		reached = true
		return nil
	}))

	if err := b.Publish(context.Background(), NewEvent[payload]("document.changed", payload{}, "test")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !reached {
		t.Error("panic stopped delivery to later handlers")
	}
	if recovered == nil || !errors.Is(recovered, ErrHandlerPanic) {
		t.Errorf("panic handler got %v", recovered)
	}
	if s := b.Stats(); s.HandlerPanics != 1 {
		t.Errorf("HandlerPanics = %d", s.HandlerPanics)
	}
}

func TestAsyncDelivery(t *testing.T) {
	b := NewBus()
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	var got []int
	_, _ = b.Subscribe("asset.**", AsHandler(func(_ context.Context, e Event[payload]) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Payload.N)
		return nil
	}), WithAsync())

	for i := 0; i < 3; i++ {
		_ = b.Publish(context.Background(), NewEvent[payload]("asset.import.completed", payload{N: i}, "test"))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Errorf("async handler saw %v", got)
	}
}

func TestSubscribeValidation(t *testing.T) {
	b := NewBus()
	if _, err := b.Subscribe("", HandlerFunc(func(context.Context, any) error { return nil })); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty pattern = %v", err)
	}
	if _, err := b.Subscribe("document.changed", nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("nil handler = %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = b.Stop(context.Background()) }()
	if err := b.Publish(context.Background(), "not an event"); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Publish(string) = %v", err)
	}
}
