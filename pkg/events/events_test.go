package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&Event{
		Type:     EventConfigurationAdded,
		Metadata: map[string]string{"name": "Cities"},
	})

	select {
	case ev := <-sub:
		assert.Equal(t, EventConfigurationAdded, ev.Type)
		assert.Equal(t, "Cities", ev.Metadata["name"])
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	broker := NewBroker()

	sub := broker.Subscribe()
	require.Equal(t, 1, broker.SubscriberCount())

	broker.Unsubscribe(sub)
	assert.Equal(t, 0, broker.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)

	// Second unsubscribe is a no-op
	broker.Unsubscribe(sub)
}

func TestBrokerPublishAfterStop(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	broker.Stop()
	broker.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			broker.Publish(&Event{Type: EventSyncCompleted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked after stop")
	}
}

func TestBrokerCountsDroppedEvents(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	slow := broker.Subscribe()
	defer broker.Unsubscribe(slow)

	for i := 0; i < bufferSize+5; i++ {
		broker.Publish(&Event{Type: EventSyncCompleted})
	}

	require.Eventually(t, func() bool {
		return broker.Dropped(slow) == 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, slow, bufferSize)
}

func TestBrokerDroppedUnknownSubscriber(t *testing.T) {
	broker := NewBroker()
	assert.Zero(t, broker.Dropped(make(Subscriber)))
}
