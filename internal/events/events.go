package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventTaskProgress      = "task_progress"
	EventTaskSucceeded     = "task_succeeded"
	EventTaskFailed        = "task_failed"
	EventServerUnreachable = "server_unreachable"
	EventServerRecovered   = "server_recovered"
	EventSyncCommitted     = "sync_committed"
	EventSyncFailed        = "sync_failed"
)

// AllTypes lists every event type the poller and scheduler emit.
var AllTypes = []string{
	EventTaskProgress,
	EventTaskSucceeded,
	EventTaskFailed,
	EventServerUnreachable,
	EventServerRecovered,
	EventSyncCommitted,
	EventSyncFailed,
}

// TaskEventPayload is the poller's view of the tracked task.
type TaskEventPayload struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Progress string `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
	PostID   string `json:"post_id,omitempty"`
}

// ServerEventPayload accompanies unreachable/recovered transitions.
type ServerEventPayload struct {
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
}

// SyncEventPayload describes one scheduler outcome.
type SyncEventPayload struct {
	IntentID     string `json:"intent_id"`
	MediaDriveID string `json:"media_drive_id"`
	Platform     string `json:"platform"`
	Action       string `json:"action"`
	ScheduleTime string `json:"schedule_time,omitempty"`
	Result       string `json:"result,omitempty"`
	Position     int    `json:"position"`
	Error        string `json:"error,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger
// when it is set.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
