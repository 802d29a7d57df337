package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan SlotStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e SlotStateChangedEvent) {
		received <- e
	})
	defer unsub()

	code := 1
	bus.Publish(SlotStateChangedEvent{Slot: 2, OldState: "running", State: "exited", ExitCode: &code})

	select {
	case got := <-received:
		if got.Slot != 2 || got.State != "exited" || got.ExitCode == nil || *got.ExitCode != 1 {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	stateReceived := make(chan bool, 1)
	metricsReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(SlotStateChangedEvent) { stateReceived <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(SlotMetricsEvent) { metricsReceived <- true })
	defer unsub2()

	bus.Publish(SlotMetricsEvent{Slot: 1, FPS: 25})
	<-metricsReceived

	select {
	case <-stateReceived:
		t.Fatal("state subscriber should not receive metrics events")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan SourcesReloadedEvent, 1)

	unsub := bus.Subscribe(func(e SourcesReloadedEvent) { received <- e })
	bus.Publish(SourcesReloadedEvent{Changed: []int{1}})
	<-received

	unsub()

	bus.Publish(SourcesReloadedEvent{Changed: []int{2}})
	select {
	case <-received:
		t.Fatal("should not receive event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandlerIsNoop(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	const goroutines, perGoroutine = 10, 100

	receivedCh := make(chan bool, goroutines*perGoroutine)
	unsub := bus.Subscribe(func(LogEntryEvent) { receivedCh <- true })
	defer unsub()

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				bus.Publish(LogEntryEvent{Level: "info", Message: "x"})
			}
		}()
	}
	wg.Wait()

	for range goroutines * perGoroutine {
		<-receivedCh
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[SlotStateChangedEvent](bus, ch)
	defer unsub()

	bus.Publish(SlotStateChangedEvent{Slot: 4, State: "running"})

	select {
	case received := <-ch:
		ev, ok := received.(SlotStateChangedEvent)
		if !ok {
			t.Fatalf("expected SlotStateChangedEvent, got %T", received)
		}
		if ev.Slot != 4 {
			t.Errorf("slot = %d, want 4", ev.Slot)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestSubscribeToChannel_DropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)

	unsub := SubscribeToChannel[SlotMetricsEvent](bus, ch)
	defer unsub()

	for i := range 10 {
		bus.Publish(SlotMetricsEvent{Slot: i})
	}
	time.Sleep(50 * time.Millisecond)

	if got := len(ch); got != 1 {
		t.Errorf("channel len = %d, want 1", got)
	}
	deadline := time.Now().Add(time.Second)
	for bus.Dropped() < 9 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := bus.Dropped(); got != 9 {
		t.Errorf("dropped = %d, want 9", got)
	}
}
