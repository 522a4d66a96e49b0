package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/frahmantamala/admin-dashboard/pkg/logger"
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPForwarder relays bus events to a durable RabbitMQ queue. Broker
// failures are logged and never reach the publisher of the event.
type AMQPForwarder struct {
	ch     Channel
	queue  string
	logger *slog.Logger
	mu     sync.Mutex
}

// DialAMQPForwarder connects to the broker and declares the queue.
func DialAMQPForwarder(url, queue string, logger *slog.Logger) (*AMQPForwarder, *amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	f, err := NewAMQPForwarder(ch, queue, logger)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return f, conn, nil
}

func NewAMQPForwarder(ch Channel, queue string, logger *slog.Logger) (*AMQPForwarder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("rabbitmq queue declare %s: %w", queue, err)
	}
	return &AMQPForwarder{ch: ch, queue: queue, logger: logger}, nil
}

// Attach subscribes the forwarder to every auth event type on bus.
func (f *AMQPForwarder) Attach(bus *EventBus) {
	bus.SubscribeMany(AuthEventTypes(), f.Handle)
}

func (f *AMQPForwarder) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(Envelope{
		ID:        event.EventID(),
		Type:      event.EventType(),
		Timestamp: event.OccurredAt(),
		Data:      event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID(), err)
	}

	// amqp channels are not safe for concurrent publishing
	f.mu.Lock()
	defer f.mu.Unlock()

	err = f.ch.PublishWithContext(ctx, "", f.queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.EventID(),
		CorrelationId: logger.RequestID(ctx),
		Type:          event.EventType(),
		Timestamp:     time.Now().UTC(),
		Body:          body,
	})
	if err != nil {
		f.logger.Error("rabbitmq publish failed", "event_type", event.EventType(), "error", err)
		return fmt.Errorf("publish event %s: %w", event.EventID(), err)
	}
	return nil
}

func (f *AMQPForwarder) Close() error {
	return f.ch.Close()
}

// Envelope is the wire form of a forwarded event.
type Envelope struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Consume reads envelopes from queue until ctx is cancelled or the delivery
// channel closes. Messages that fail to decode or handle are rejected without requeue.
func Consume(ctx context.Context, conn *amqp.Connection, queue string, logger *slog.Logger, handle func(context.Context, Envelope) error) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("rabbitmq qos failed", "error", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			var env Envelope
			if err := json.Unmarshal(d.Body, &env); err != nil {
				logger.Error("rabbitmq decode failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			if err := handle(ctx, env); err != nil {
				logger.Error("event handling failed", "event_type", env.Type, "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
