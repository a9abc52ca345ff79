package events

import "time"

// EventType represents different types of events in the system
type EventType string

const (
	// Session lifecycle events
	EventTypeSessionStarted   EventType = "session.started"
	EventTypeSessionCompleted EventType = "session.completed"

	// Gameplay events
	EventTypeRoundLogged  EventType = "round.logged"
	EventTypeStateChanged EventType = "state.changed"
	EventTypeBalanceRead  EventType = "balance.read"

	// Watchdog events
	EventTypeScreenFrozen EventType = "screen.frozen"

	// Error events
	EventTypeError EventType = "error"
)

// Event represents a system event with metadata
type Event struct {
	Type      EventType              // Type of event
	Source    string                 // Component that emitted event (e.g., "loop", "watchdog")
	Timestamp time.Time              // When the event occurred
	Data      map[string]interface{} // Event-specific data
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus defines the interface for event pub/sub
type EventBus interface {
	// Subscribe registers a handler for a specific event type
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID

	// Unsubscribe removes a subscription by ID
	Unsubscribe(id SubscriptionID)

	// Publish sends an event to all subscribers (blocking)
	Publish(event Event)

	// PublishAsync sends an event asynchronously (non-blocking)
	PublishAsync(event Event)

	// Stop stops the event bus and drains remaining events
	Stop()
}

// Helper functions to create common events

// NewSessionStartedEvent creates a session started event
func NewSessionStartedEvent(game, sessionID string, duration time.Duration) Event {
	return Event{
		Type:      EventTypeSessionStarted,
		Source:    "loop",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"game":             game,
			"session_id":       sessionID,
			"duration_minutes": duration.Minutes(),
		},
	}
}

// NewSessionCompletedEvent creates a session completed event
func NewSessionCompletedEvent(game, sessionID string, rounds int, elapsed time.Duration) Event {
	return Event{
		Type:      EventTypeSessionCompleted,
		Source:    "loop",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"game":            game,
			"session_id":      sessionID,
			"rounds":          rounds,
			"elapsed_minutes": elapsed.Minutes(),
		},
	}
}

// NewRoundLoggedEvent creates a round logged event. balance is nil when the
// balance read failed for the round.
func NewRoundLoggedEvent(game string, round int, balance *float64, notes string) Event {
	data := map[string]interface{}{
		"game":  game,
		"round": round,
		"notes": notes,
	}
	if balance != nil {
		data["balance"] = *balance
	}
	return Event{
		Type:      EventTypeRoundLogged,
		Source:    "session",
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewStateChangedEvent creates a state changed event
func NewStateChangedEvent(game, from, to string) Event {
	return Event{
		Type:      EventTypeStateChanged,
		Source:    "loop",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"game": game,
			"from": from,
			"to":   to,
		},
	}
}

// NewBalanceReadEvent creates a balance read event
func NewBalanceReadEvent(game string, balance float64) Event {
	return Event{
		Type:      EventTypeBalanceRead,
		Source:    "session",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"game":    game,
			"balance": balance,
		},
	}
}

// NewScreenFrozenEvent creates a screen frozen event
func NewScreenFrozenEvent(consecutive int, distance int) Event {
	return Event{
		Type:      EventTypeScreenFrozen,
		Source:    "watchdog",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"consecutive": consecutive,
			"distance":    distance,
		},
	}
}

// NewErrorEvent creates an error event
func NewErrorEvent(source, phase string, err error) Event {
	return Event{
		Type:      EventTypeError,
		Source:    source,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"phase": phase,
			"error": err.Error(),
		},
	}
}
