package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventUsersChanged         EventType = "USERS_CHANGED"
	EventMessagesChanged      EventType = "MESSAGES_CHANGED"
	EventTransactionsChanged  EventType = "TRANSACTIONS_CHANGED"
	EventNotificationsChanged EventType = "NOTIFICATIONS_CHANGED"
	EventUserLogin            EventType = "USER_LOGIN"
	EventUserLogout           EventType = "USER_LOGOUT"
	EventTyping               EventType = "TYPING"
	EventError                EventType = "ERROR"
)

// CollectionEvent maps a collection name to its change event type.
// Collections without a change event return "".
func CollectionEvent(collection string) EventType {
	switch collection {
	case "users":
		return EventUsersChanged
	case "messages":
		return EventMessagesChanged
	case "transactions":
		return EventTransactionsChanged
	case "notifications":
		return EventNotificationsChanged
	default:
		return ""
	}
}

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

// PublishCollectionChanged publishes a change event for a named collection.
// userID identifies the row owner so clients can filter; "" means every
// session should reload.
func (eb *EventBus) PublishCollectionChanged(collection, userID string) {
	eventType := CollectionEvent(collection)
	if eventType == "" {
		return
	}
	eb.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{
			"collection": collection,
			"user_id":    userID,
		},
	})
}

// PublishUserLogin publishes a user login event
func (eb *EventBus) PublishUserLogin(userID string, admin bool) {
	eb.Publish(Event{
		Type: EventUserLogin,
		Data: map[string]interface{}{
			"user_id": userID,
			"admin":   admin,
		},
	})
}

// PublishUserLogout publishes a user logout event
func (eb *EventBus) PublishUserLogout(userID string) {
	eb.Publish(Event{
		Type: EventUserLogout,
		Data: map[string]interface{}{
			"user_id": userID,
		},
	})
}

// PublishTyping publishes a typing presence event for a conversation
func (eb *EventBus) PublishTyping(userID, peerID string, typing bool) {
	eb.Publish(Event{
		Type: EventTyping,
		Data: map[string]interface{}{
			"user_id": userID,
			"peer_id": peerID,
			"typing":  typing,
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
