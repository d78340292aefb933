package callback

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	var received []Event
	bus.Subscribe(KindQueryStart, func(e Event) { received = append(received, e) })

	bus.Publish(Event{Kind: KindQueryStart, QueryID: "q1"})

	assert.Len(t, received, 1)
	assert.Equal(t, "q1", received[0].QueryID)
	assert.NotEmpty(t, received[0].ID)
	assert.False(t, received[0].Ts.IsZero())
}

func TestBus_PublishOnlyNotifiesMatchingKind(t *testing.T) {
	bus := NewBus(nil)
	var startCount, completeCount int
	bus.Subscribe(KindQueryStart, func(Event) { startCount++ })
	bus.Subscribe(KindQueryComplete, func(Event) { completeCount++ })

	bus.Publish(Event{Kind: KindQueryStart})

	assert.Equal(t, 1, startCount)
	assert.Equal(t, 0, completeCount)
}

func TestBus_MultipleSubscribersInRegistrationOrder(t *testing.T) {
	bus := NewBus(nil)
	var order []int
	bus.Subscribe(KindQueryStart, func(Event) { order = append(order, 1) })
	bus.Subscribe(KindQueryStart, func(Event) { order = append(order, 2) })
	bus.Subscribe(KindQueryStart, func(Event) { order = append(order, 3) })

	bus.Publish(Event{Kind: KindQueryStart})

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	id := bus.Subscribe(KindQueryStart, func(Event) { calls++ })

	bus.Publish(Event{Kind: KindQueryStart})
	bus.Unsubscribe(id)
	bus.Publish(Event{Kind: KindQueryStart})

	assert.Equal(t, 1, calls)
}

func TestBus_PanickingSubscriberIsRemovedNotFatal(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(KindQueryStart, func(Event) { panic("boom") })
	var secondCalls int
	bus.Subscribe(KindQueryStart, func(Event) { secondCalls++ })

	assert.NotPanics(t, func() { bus.Publish(Event{Kind: KindQueryStart}) })
	assert.Equal(t, 1, secondCalls)

	// The panicking subscriber should have been auto-removed; a second
	// publish must not panic and must still reach the survivor.
	assert.NotPanics(t, func() { bus.Publish(Event{Kind: KindQueryStart}) })
	assert.Equal(t, 2, secondCalls)
}

func TestBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus(nil)
	var mu sync.Mutex
	count := 0
	bus.Subscribe(KindModelCallStart, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Kind: KindModelCallStart})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, count)
}
