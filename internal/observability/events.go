package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Publisher is the event bus sink used for domain and websocket events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type EventEnvelope struct {
	EventType  string    `json:"event_type"`
	EventName  string    `json:"event_name"`
	RequestID  string    `json:"request_id,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewEnvelope wraps payload and stamps it with the trace of ctx, if any.
func NewEnvelope(ctx context.Context, eventType, eventName, requestID string, at time.Time, payload any) EventEnvelope {
	envelope := EventEnvelope{
		EventType:  eventType,
		EventName:  eventName,
		RequestID:  requestID,
		OccurredAt: at.UTC(),
		Payload:    payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		envelope.TraceID = sc.TraceID().String()
	}
	return envelope
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent sends the envelope with the event name as routing key.
// Without a configured publisher it does nothing.
func PublishEvent(ctx context.Context, envelope EventEnvelope) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, envelope.EventName, envelope)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
