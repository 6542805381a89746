// internal/events/bus_test.go
package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(4)
	defer unsubscribe()

	bus.Publish(TypeScanRecorded, map[string]interface{}{"scan_id": "abc"})

	select {
	case evt := <-ch:
		assert.Equal(t, TypeScanRecorded, evt.Type)
		assert.Equal(t, "abc", evt.Payload["scan_id"])
		assert.False(t, evt.EmittedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	// Second publish finds the buffer full and must not block.
	done := make(chan struct{})
	go func() {
		bus.Publish(TypeScanRecorded, nil)
		bus.Publish(TypeScanRecorded, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}

	// Only the first event made it through.
	require.Len(t, ch, 1)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(1)

	unsubscribe()
	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is a no-op.
	unsubscribe()

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(TypeFraudFlagged, nil)
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	bus := NewBus()

	bus.Publish(TypeScanRecorded, map[string]interface{}{"n": 1})
	bus.Publish(TypeFraudFlagged, map[string]interface{}{"n": 2})
	bus.Publish(TypeChainSealed, map[string]interface{}{"n": 3})

	recent := bus.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, TypeChainSealed, recent[0].Type)
	assert.Equal(t, TypeFraudFlagged, recent[1].Type)

	all := bus.Recent(0)
	assert.Len(t, all, 3)
}

func TestRecentRingIsBounded(t *testing.T) {
	bus := NewBus()

	for i := 0; i < 150; i++ {
		bus.Publish(TypeScanRecorded, map[string]interface{}{"n": i})
	}

	all := bus.Recent(0)
	require.Len(t, all, 100)
	// Newest first: the last published event leads.
	assert.Equal(t, 149, all[0].Payload["n"])
}
