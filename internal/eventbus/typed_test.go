package eventbus

import (
	"testing"
	"time"
)

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[string]()
	ch := bus.Subscribe()
	bus.Publish("hello")
	v := <-ch
	if v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestTypedBusBufferedDropsWhenFull(t *testing.T) {
	bus := NewTyped[int]()
	ch := bus.SubscribeBuffered(2)
	for i := range 5 {
		bus.Publish(i)
	}
	if len(ch) != 2 {
		t.Fatalf("expected 2 buffered events, got %d", len(ch))
	}
	if v := <-ch; v != 0 {
		t.Fatalf("expected oldest event first, got %d", v)
	}
}

func TestTypedBusCountsDrops(t *testing.T) {
	bus := NewTyped[int]()
	_ = bus.SubscribeBuffered(2)
	for i := range 5 {
		bus.Publish(i)
	}
	if got := bus.Dropped(); got != 3 {
		t.Fatalf("expected 3 dropped events, got %d", got)
	}
}

func TestTypedBusWaitDeliversEverything(t *testing.T) {
	bus := NewTyped[int]()
	ch := bus.SubscribeWait(4)
	const n = 1000
	got := make(chan int)
	go func() {
		count := 0
		for range ch {
			time.Sleep(50 * time.Microsecond)
			count++
		}
		got <- count
	}()
	for i := range n {
		bus.Publish(i)
	}
	bus.Close()
	if c := <-got; c != n {
		t.Fatalf("published=%d delivered=%d", n, c)
	}
	if bus.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", bus.Dropped())
	}
}

func TestTypedBusUnsubscribeReleasesBlockedPublisher(t *testing.T) {
	bus := NewTyped[int]()
	ch := bus.SubscribeWait(1)
	bus.Publish(1)
	published := make(chan struct{})
	go func() {
		bus.Publish(2)
		close(published)
	}()
	time.Sleep(10 * time.Millisecond)
	bus.Unsubscribe(ch)
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after unsubscribe")
	}
}
