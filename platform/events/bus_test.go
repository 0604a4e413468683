package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"engagement_backend/platform/logger"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublishSyncRunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))
	var order []int
	for i := 0; i < 3; i++ {
		n := i
		bus.Subscribe("test.ordered", HandlerFunc(func(context.Context, Event) error {
			order = append(order, n)
			return nil
		}))
	}

	if err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "test.ordered"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("handlers ran out of order: %v", order)
	}
}

func TestPublishSyncReturnsFirstError(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))
	boom := errors.New("boom")
	ranAfterFailure := false
	bus.Subscribe("test.failing", HandlerFunc(func(context.Context, Event) error {
		return boom
	}))
	bus.Subscribe("test.failing", HandlerFunc(func(context.Context, Event) error {
		ranAfterFailure = true
		return nil
	}))

	err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "test.failing"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected first handler error, got %v", err)
	}
	if ranAfterFailure {
		t.Fatal("handlers after a failure must not run in sync mode")
	}
}

func TestPublishDeliversAsynchronously(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))
	var wg sync.WaitGroup
	wg.Add(2)
	bus.Subscribe("test.async", HandlerFunc(func(context.Context, Event) error {
		wg.Done()
		return nil
	}))
	bus.Subscribe("test.async", HandlerFunc(func(context.Context, Event) error {
		wg.Done()
		return nil
	}))

	bus.Publish(context.Background(), testEvent{NewBaseEvent(), "test.async"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers never ran")
	}
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))
	survived := make(chan struct{})
	bus.Subscribe("test.panic", HandlerFunc(func(context.Context, Event) error {
		panic("handler bug")
	}))
	bus.Subscribe("test.panic", HandlerFunc(func(context.Context, Event) error {
		close(survived)
		return nil
	}))

	bus.Publish(context.Background(), testEvent{NewBaseEvent(), "test.panic"})

	select {
	case <-survived:
	case <-time.After(2 * time.Second):
		t.Fatal("panic in one handler starved the others")
	}
}
