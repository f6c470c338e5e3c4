package events

import (
	"sync"
	"time"

	"github.com/cuemby/confsync/pkg/metrics"
	"github.com/google/uuid"
)

// EventType names what happened
type EventType string

const (
	EventConfigurationAdded   EventType = "configuration.added"
	EventConfigurationUpdated EventType = "configuration.updated"
	EventConfigurationDeleted EventType = "configuration.deleted"
	EventConfigurationToggled EventType = "configuration.toggled"
	EventSyncCompleted        EventType = "sync.completed"
	EventSyncFailed           EventType = "sync.failed"
	EventSyncSkipped          EventType = "sync.skipped"
)

// queueSize bounds events waiting for distribution; bufferSize bounds each
// subscriber
const (
	queueSize  = 100
	bufferSize = 50
)

// Event is a configuration change or a finished sync session
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Publisher accepts events for distribution
type Publisher interface {
	Publish(event *Event)
}

// Subscriber receives events. The broker closes it on Unsubscribe.
type Subscriber chan *Event

type subscription struct {
	dropped int
}

// Broker fans events out to subscribers on a single goroutine
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]*subscription

	queue    chan *Event
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBroker creates a broker. Call Start before publishing.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]*subscription),
		queue:       make(chan *Event, queueSize),
		stopCh:      make(chan struct{}),
	}
}

// Start begins distributing published events
func (b *Broker) Start() {
	go b.run()
}

// Stop ends distribution. Publish returns immediately afterwards.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe registers a new buffered subscriber
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, bufferSize)
	b.subscribers[sub] = &subscription{}
	return sub
}

// Unsubscribe removes sub and closes it. Unknown subscribers are ignored.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Dropped returns how many events sub missed because its buffer was full
func (b *Broker) Dropped(sub Subscriber) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if s, ok := b.subscribers[sub]; ok {
		return s.dropped
	}
	return 0
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish stamps event with an ID and timestamp when missing and queues it.
// It blocks while the queue is full, until the broker stops.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.queue <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.queue:
			b.deliver(event)
		case <-b.stopCh:
			return
		}
	}
}

// deliver never blocks on a slow subscriber; the event is counted as
// dropped for it instead
func (b *Broker) deliver(event *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub, s := range b.subscribers {
		select {
		case sub <- event:
		default:
			s.dropped++
			metrics.EventsDropped.Inc()
		}
	}
}
