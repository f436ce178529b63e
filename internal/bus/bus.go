// Package bus provides the telemetry event bus: engine components publish
// fire-and-forget events that observers consume for dashboards and alerts.
package bus

import (
	"context"
	"fmt"
	"time"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type (e.g., "query.answered").
	Type string `json:"type"`

	// Source is the component that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created.
	Timestamp int64 `json:"timestamp"`

	// UserID is the user the event concerns, if any.
	UserID string `json:"user_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// Topics for engine telemetry.
const (
	// TopicQueryAnswered fires once per completed query.
	TopicQueryAnswered = "insights.query.answered"

	// TopicBackendDegraded fires when a backend call resolves to nothing.
	TopicBackendDegraded = "insights.backend.degraded"

	// TopicBreakerState fires on circuit breaker state transitions.
	TopicBreakerState = "insights.breaker.state"
)

// QueryAnswered is the payload for TopicQueryAnswered.
type QueryAnswered struct {
	QueryType  string  `json:"query_type"`
	Confidence float64 `json:"confidence"`
	CacheHit   bool    `json:"cache_hit"`
	Fallback   bool    `json:"fallback"`
	ElapsedMs  int64   `json:"elapsed_ms"`
}

// BackendDegraded is the payload for TopicBackendDegraded.
type BackendDegraded struct {
	Backend string `json:"backend"`
	Reason  string `json:"reason"`
}

// BreakerStateChanged is the payload for TopicBreakerState.
type BreakerStateChanged struct {
	Backend string `json:"backend"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// NewEvent creates an event with a generated ID and current timestamp.
func NewEvent(eventType, source, userID string, payload any) Event {
	now := time.Now()
	return Event{
		ID:        fmt.Sprintf("%s-%d", eventType, now.UnixNano()),
		Type:      eventType,
		Source:    source,
		Timestamp: now.Unix(),
		UserID:    userID,
		Payload:   payload,
	}
}
