package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/telemetry"
)

var (
	_ rabbitmq.Publisher      = (*PublisherMock)(nil)
	_ observability.Publisher = (*PublisherMock)(nil)
	_ telemetry.Publisher     = (*PublisherMock)(nil)
)

// PublisherMock stands in for the event bus in handler tests.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}
