package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"feltworks.io/live-table-go/internal/events"
)

// EventLogger subscribes to the event bus and logs every event it sees
// to a timestamped file alongside stdout.
type EventLogger struct {
	logger        *Logger
	eventBus      events.EventBus
	subscriptions []events.SubscriptionID
	logFile       *os.File
}

// NewEventLogger creates a new event logger writing under logDir
func NewEventLogger(eventBus events.EventBus, logDir string) (*EventLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("events_%s.log", timestamp))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := NewLogger("events")
	logger.AddOutput(logFile)

	el := &EventLogger{
		logger:   logger,
		eventBus: eventBus,
		logFile:  logFile,
	}

	el.subscribeToEvents()

	return el, nil
}

// subscribeToEvents registers a handler for every event type the bus carries
func (el *EventLogger) subscribeToEvents() {
	eventTypes := []events.EventType{
		events.EventTypeSessionStarted,
		events.EventTypeSessionCompleted,
		events.EventTypeRoundLogged,
		events.EventTypeStateChanged,
		events.EventTypeBalanceRead,
		events.EventTypeScreenFrozen,
		events.EventTypeError,
	}

	for _, eventType := range eventTypes {
		id := el.eventBus.Subscribe(eventType, el.handleEvent)
		el.subscriptions = append(el.subscriptions, id)
	}
}

// handleEvent logs an incoming event with its data flattened into context
func (el *EventLogger) handleEvent(event events.Event) {
	context := map[string]interface{}{
		"event_type": string(event.Type),
		"source":     event.Source,
	}

	for k, v := range event.Data {
		context[k] = v
	}

	el.logger.InfoWithContext(fmt.Sprintf("Event: %s", event.Type), context)
}

// Close unsubscribes from the bus and closes the log file
func (el *EventLogger) Close() error {
	for _, id := range el.subscriptions {
		el.eventBus.Unsubscribe(id)
	}
	el.subscriptions = nil

	if el.logFile != nil {
		return el.logFile.Close()
	}
	return nil
}
