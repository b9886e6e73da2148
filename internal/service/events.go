package service

import (
	"sync"
	"time"
)

// EventType names a catalog change
type EventType string

const (
	EventDatasetIngested EventType = "dataset_ingested"
	EventDatasetDeleted  EventType = "dataset_deleted"
)

// DatasetEvent identifies the dataset an event is about. Only DatasetID is
// set for deletions.
type DatasetEvent struct {
	DatasetID  string `json:"dataset_id"`
	Path       string `json:"path,omitempty"`
	SignalType string `json:"signal_type,omitempty"`
	LoadKind   string `json:"load_kind,omitempty"`
}

// Event is published on the EventBus after every catalog change
type Event struct {
	Type    EventType    `json:"type"`
	Time    time.Time    `json:"time"`
	Payload DatasetEvent `json:"payload"`
}

// EventBus fans events out to subscriber channels
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[chan<- Event]struct{}
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[chan<- Event]struct{}),
	}
}

// Subscribe registers ch for all future events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[ch] = struct{}{}
}

// Unsubscribe stops delivery to ch. The channel is not closed.
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	delete(eb.subscribers, ch)
}

// Publish stamps the event and offers it to every subscriber. Subscribers
// whose buffers are full miss the event.
func (eb *EventBus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
