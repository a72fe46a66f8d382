package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventAlertReceived   EventType = "ALERT_RECEIVED"
	EventStateChanged    EventType = "STATE_CHANGED"
	EventSignalFiltered  EventType = "SIGNAL_FILTERED"
	EventTradeRecorded   EventType = "TRADE_RECORDED"
	EventSweepReset      EventType = "SWEEP_RESET"
	EventOverrideToggled EventType = "OVERRIDE_TOGGLED"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishAlertReceived publishes an alert ingress event
func (eb *EventBus) PublishAlertReceived(strategyName, symbol, direction, tier string) {
	eb.Publish(Event{
		Type: EventAlertReceived,
		Data: map[string]interface{}{
			"strategy":  strategyName,
			"symbol":    symbol,
			"direction": direction,
			"tier":      tier,
		},
	})
}

// PublishStateChanged publishes a macro state transition event
func (eb *EventBus) PublishStateChanged(marketState, signalName string, leverage int) {
	eb.Publish(Event{
		Type: EventStateChanged,
		Data: map[string]interface{}{
			"market_state": marketState,
			"signal":       signalName,
			"leverage":     leverage,
		},
	})
}

// PublishSignalFiltered publishes a filtered tactical signal event
func (eb *EventBus) PublishSignalFiltered(strategyName, symbol, reason string) {
	eb.Publish(Event{
		Type: EventSignalFiltered,
		Data: map[string]interface{}{
			"strategy": strategyName,
			"symbol":   symbol,
			"reason":   reason,
		},
	})
}

// PublishTradeRecorded publishes a trade record event
func (eb *EventBus) PublishTradeRecorded(symbol, direction string, sizeUSD float64, paper bool) {
	eb.Publish(Event{
		Type: EventTradeRecorded,
		Data: map[string]interface{}{
			"symbol":    symbol,
			"direction": direction,
			"size_usd":  sizeUSD,
			"paper":     paper,
		},
	})
}

// PublishOverrideToggled publishes a manual override change event
func (eb *EventBus) PublishOverrideToggled(paused bool) {
	eb.Publish(Event{
		Type: EventOverrideToggled,
		Data: map[string]interface{}{
			"paused": paused,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
