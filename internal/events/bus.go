package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated  EventType = "SIGNAL_GENERATED"
	EventTradeOpened      EventType = "TRADE_OPENED"
	EventTradeResolved    EventType = "TRADE_RESOLVED"
	EventBalanceUpdate    EventType = "BALANCE_UPDATE"
	EventBotStarted       EventType = "BOT_STARTED"
	EventBotStopped       EventType = "BOT_STOPPED"
	EventTournamentJoined EventType = "TOURNAMENT_JOINED"
	EventError            EventType = "ERROR"
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
	allSubs     []Subscriber // Subscribers to all events
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

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(asset, direction string, confidence float64, reasoning string) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"asset":      asset,
			"direction":  direction,
			"confidence": confidence,
			"reasoning":  reasoning,
		},
	})
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(tradeID, asset, direction string, amount float64, expiration int) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"trade_id":   tradeID,
			"asset":      asset,
			"direction":  direction,
			"amount":     amount,
			"expiration": expiration,
		},
	})
}

// PublishTradeResolved publishes a trade resolved event
func (eb *EventBus) PublishTradeResolved(tradeID, asset, outcome string, profit, balance float64) {
	eb.Publish(Event{
		Type: EventTradeResolved,
		Data: map[string]interface{}{
			"trade_id": tradeID,
			"asset":    asset,
			"outcome":  outcome,
			"profit":   profit,
			"balance":  balance,
		},
	})
}

// PublishBalanceUpdate publishes a balance update event
func (eb *EventBus) PublishBalanceUpdate(balance float64) {
	eb.Publish(Event{
		Type: EventBalanceUpdate,
		Data: map[string]interface{}{
			"balance": balance,
		},
	})
}

// PublishTournamentJoined publishes a tournament joined event
func (eb *EventBus) PublishTournamentJoined(tournamentID string) {
	eb.Publish(Event{
		Type: EventTournamentJoined,
		Data: map[string]interface{}{
			"tournament_id": tournamentID,
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
