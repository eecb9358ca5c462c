package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func TestEmitPublishesEnvelope(t *testing.T) {
	pub := new(publisherMock)
	logger, _ := test.NewNullLogger()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 19, 10, 0, 0, 0, time.UTC))
	emitter := NewAuditEmitter(pub, AuditConfig{RoutingKey: "audit.messenger", Service: "messenger-service", Environment: "test"}, clock, logger)

	pub.On("Publish", mock.Anything, "audit.messenger", mock.AnythingOfType("telemetry.AuditEnvelope")).Return(nil).Once()

	emitter.Emit(context.Background(), LevelInfo, "Status viewed", "req-1", 5)

	pub.AssertExpectations(t)
	envelope := pub.Calls[0].Arguments.Get(2).(AuditEnvelope)
	require.NotNil(t, envelope.UserID)
	assert.Equal(t, 5, *envelope.UserID)
	assert.Equal(t, LevelInfo, envelope.Payload.Level)
	assert.Empty(t, envelope.TraceID)
	assert.Equal(t, "2024-03-19T10:00:00Z", envelope.OccurredAt)
	assert.Equal(t, "Status viewed", envelope.Payload.Text)
	assert.Equal(t, "req-1", envelope.RequestID)
}

func TestEmitAnonymousOmitsUser(t *testing.T) {
	pub := new(publisherMock)
	logger, _ := test.NewNullLogger()
	emitter := NewAuditEmitter(pub, AuditConfig{RoutingKey: "audit.messenger", Service: "svc", Environment: "test"}, clockwork.NewRealClock(), logger)

	pub.On("Publish", mock.Anything, "audit.messenger", mock.Anything).Return(assert.AnError).Once()

	emitter.Emit(context.Background(), LevelError, "login failed", "req-2", 0)

	envelope := pub.Calls[0].Arguments.Get(2).(AuditEnvelope)
	assert.Nil(t, envelope.UserID)
}

func TestEmitOnNilEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), LevelInfo, "x", "", 1)
	})
}

func TestInitTracerWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "", "svc", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestEmitCarriesTraceID(t *testing.T) {
	pub := new(publisherMock)
	logger, _ := test.NewNullLogger()
	emitter := NewAuditEmitter(pub, AuditConfig{RoutingKey: "audit.messenger"}, clockwork.NewRealClock(), logger)
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID}))

	pub.On("Publish", ctx, "audit.messenger", mock.Anything).Return(nil).Once()

	emitter.Emit(ctx, LevelWarn, "create status denied", "req-3", 2)

	envelope := pub.Calls[0].Arguments.Get(2).(AuditEnvelope)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", envelope.TraceID)
}
