package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationcalyx/calyx/pkg/types"
)

func receive(t *testing.T, sub Subscriber) *types.Event {
	t.Helper()
	select {
	case event := <-sub:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishSubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&types.Event{
		Type:     EventExecutionFinished,
		IntentID: "i-1",
		Message:  "schema_validation done",
	})

	event := receive(t, sub)
	assert.Equal(t, EventExecutionFinished, event.Type)
	assert.Equal(t, "i-1", event.IntentID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestBroadcastToAllSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	first := broker.Subscribe()
	second := broker.Subscribe()
	defer broker.Unsubscribe(first)
	defer broker.Unsubscribe(second)

	require.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(&types.Event{Type: EventPulseStarted})

	assert.Equal(t, EventPulseStarted, receive(t, first).Type)
	assert.Equal(t, EventPulseStarted, receive(t, second).Type)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)

	_, open := <-sub
	assert.False(t, open)
	assert.Equal(t, 0, broker.SubscriberCount())
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	// Never drained, so its buffer fills and overflow is dropped
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for i := 0; i < 200; i++ {
		broker.Publish(&types.Event{Type: EventIntentAdded})
	}

	// The publisher made it through without blocking; the subscriber
	// holds at most its buffer
	deadline := time.After(2 * time.Second)
	received := 0
	for received < 50 {
		select {
		case <-sub:
			received++
		case <-deadline:
			t.Fatalf("expected at least the buffered 50 events, got %d", received)
		}
	}
}
