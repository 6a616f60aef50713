// internal/handler/event_bus.go
package handler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"healthkit-link/internal/model"
)

// EventBus fans controller events out to subscribers. It implements
// link.Consumer.
type EventBus struct {
	subscribers map[model.EventType][]chan Event
	events      chan Event
	mutex       sync.RWMutex
	logger      *zap.Logger
	closed      bool
}

// Event represents a consumer-facing event
type Event struct {
	Type      model.EventType `json:"type"`
	Source    string          `json:"source"`
	Data      interface{}     `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[model.EventType][]chan Event),
		events:      make(chan Event, 1000),
		logger:      logger.With(zap.String("component", "event-bus")),
	}
}

// Start distributes published events until Close is called
func (eb *EventBus) Start() {
	for event := range eb.events {
		eb.distributeEvent(event)
	}

	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	closed := make(map[chan Event]bool)
	for _, subscribers := range eb.subscribers {
		for _, subscriber := range subscribers {
			if !closed[subscriber] {
				closed[subscriber] = true
				close(subscriber)
			}
		}
	}
	eb.subscribers = make(map[model.EventType][]chan Event)
}

// Close stops the bus and closes every subscriber channel
func (eb *EventBus) Close() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if !eb.closed {
		eb.closed = true
		close(eb.events)
	}
}

// Publish publishes an event without blocking the caller
func (eb *EventBus) Publish(event Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	if eb.closed {
		return
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// Subscribe subscribes to events of the given types on one channel
func (eb *EventBus) Subscribe(eventTypes ...model.EventType) <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan Event, 100)
	for _, eventType := range eventTypes {
		eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	}
	return subscriber
}

// unsubscribe removes a subscriber and closes its channel
func (eb *EventBus) unsubscribe(ch <-chan Event) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	var found chan Event
	for eventType, subscribers := range eb.subscribers {
		kept := subscribers[:0]
		for _, subscriber := range subscribers {
			if (<-chan Event)(subscriber) == ch {
				found = subscriber
				continue
			}
			kept = append(kept, subscriber)
		}
		eb.subscribers[eventType] = kept
	}
	if found != nil {
		close(found)
	}
}

// OnStateChanged publishes a controller state change
func (eb *EventBus) OnStateChanged(event model.StateChange) {
	eb.Publish(Event{
		Type:      model.EventStateChanged,
		Source:    "link",
		Data:      event,
		Timestamp: event.Timestamp,
	})
}

// OnReading publishes a decoded reading
func (eb *EventBus) OnReading(event model.ReadingEvent) {
	eb.Publish(Event{
		Type:      model.EventReadingDecoded,
		Source:    "telemetry",
		Data:      event,
		Timestamp: event.Timestamp,
	})
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, subscriber := range eb.subscribers[event.Type] {
		select {
		case subscriber <- event:
		default:
			eb.logger.Warn("Subscriber is slow, dropping event",
				zap.String("event_type", string(event.Type)),
			)
		}
	}
}
