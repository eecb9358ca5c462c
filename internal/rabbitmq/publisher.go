package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends JSON events to the messenger topic exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

var errNoURL = errors.New("empty amqp url")

// NewPublisher connects to the broker and declares exchange. When the URL is empty
// or the broker cannot be reached the service keeps running on a noop publisher.
func NewPublisher(amqpURL, exchange string, logger logrus.FieldLogger) Publisher {
	p, err := connect(amqpURL, exchange, logger)
	if err != nil {
		logger.WithError(err).WithField("exchange", exchange).Warn("event bus unavailable, events will be dropped")
		return noopPublisher{reason: err.Error(), logger: logger}
	}
	logger.WithField("exchange", exchange).Info("event bus connected")
	return p
}

func connect(amqpURL, exchange string, logger logrus.FieldLogger) (*amqpPublisher, error) {
	if amqpURL == "" {
		return nil, errNoURL
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// durable topic exchange; consumers bind by event name prefix
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

type amqpPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   logrus.FieldLogger
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", routingKey, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		Body:         body,
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"routing_key": routingKey,
			"message_id":  msg.MessageId,
		}).Error("event publish failed")
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// noopPublisher drops events. It is selected when the broker is disabled or down.
type noopPublisher struct {
	reason string
	logger logrus.FieldLogger
}

func (p noopPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	if p.logger != nil {
		p.logger.WithField("routing_key", routingKey).Debug("event dropped")
	}
	return nil
}

func (noopPublisher) Close() error { return nil }

// PublisherMode is "amqp" or "noop"; main logs it at startup.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	}
	return "unknown"
}

// PublisherNoopReason returns why the noop publisher was chosen, or "".
func PublisherNoopReason(p Publisher) string {
	if noop, ok := p.(noopPublisher); ok {
		return noop.reason
	}
	return ""
}
