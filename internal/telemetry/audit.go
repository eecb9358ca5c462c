package telemetry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// AuditLevel is the severity carried in an audit record.
type AuditLevel string

const (
	LevelInfo  AuditLevel = "INFO"
	LevelWarn  AuditLevel = "WARN"
	LevelError AuditLevel = "ERROR"
)

const auditSchemaVersion = 1

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AuditConfig identifies the emitting service and where records are routed.
type AuditConfig struct {
	RoutingKey  string
	Service     string
	Environment string
}

// AuditEmitter publishes one audit record per mutating operation or denial.
// A nil emitter drops everything.
type AuditEmitter struct {
	publisher Publisher
	cfg       AuditConfig
	clock     clockwork.Clock
	logger    logrus.FieldLogger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	TraceID       string       `json:"trace_id,omitempty"`
	UserID        *int         `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level AuditLevel `json:"level"`
	Text  string     `json:"text"`
}

func NewAuditEmitter(publisher Publisher, cfg AuditConfig, clock clockwork.Clock, logger logrus.FieldLogger) *AuditEmitter {
	return &AuditEmitter{publisher: publisher, cfg: cfg, clock: clock, logger: logger}
}

// Emit publishes text at level. A zero userID marks an anonymous caller.
func (e *AuditEmitter) Emit(ctx context.Context, level AuditLevel, text, requestID string, userID int) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := e.envelope(ctx, level, text, requestID, userID)
	e.logger.WithFields(logrus.Fields{
		"audit_level": level,
		"request_id":  requestID,
		"user_id":     userID,
	}).Debug(text)

	if err := e.publisher.Publish(ctx, e.cfg.RoutingKey, envelope); err != nil {
		e.logger.WithError(err).WithField("request_id", requestID).Warn("audit publish failed")
	}
}

func (e *AuditEmitter) envelope(ctx context.Context, level AuditLevel, text, requestID string, userID int) AuditEnvelope {
	env := AuditEnvelope{
		SchemaVersion: auditSchemaVersion,
		EventType:     "audit_log",
		OccurredAt:    e.clock.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.cfg.Service,
		Environment:   e.cfg.Environment,
		RequestID:     requestID,
		Payload:       AuditPayload{Level: level, Text: text},
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	if userID != 0 {
		env.UserID = &userID
	}
	return env
}
