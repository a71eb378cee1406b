package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrNoRouteForEventType is returned when the route table has no entry for
// an event's type. This is a configuration gap, not a crash condition: the
// processing loop records it like any other publish failure.
var ErrNoRouteForEventType = errors.New("no route for event type")

// Publisher hands a stored event to the task queue.
type Publisher interface {
	Publish(ctx context.Context, event EventRecord) error
	Close() error
}

// NopPublisher is a publisher that does nothing. Useful for testing.
type NopPublisher struct{}

// NewNopPublisher creates a new NopPublisher.
func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

// Publish implements the Publisher interface.
func (p *NopPublisher) Publish(_ context.Context, _ EventRecord) error {
	return nil
}

// Close implements the Publisher interface.
func (p *NopPublisher) Close() error {
	return nil
}

// TaskMessage is the JSON envelope enqueued for the worker pool.
type TaskMessage struct {
	Task   string                 `json:"task"`
	ID     string                 `json:"id"`
	Args   []interface{}          `json:"args"`
	Kwargs map[string]interface{} `json:"kwargs"`
}

// AMQPChannel is the slice of *amqp.Channel the publisher uses.
type AMQPChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends events to RabbitMQ according to a route table.
type AMQPPublisher struct {
	logger         *zap.Logger
	conn           *amqp.Connection
	channel        AMQPChannel
	routes         RouteTable
	exchange       string
	publishTimeout time.Duration
}

// NewAMQPPublisher dials the broker, declares the exchange and the route
// queues, and returns a ready publisher. Declaring the topology up front is
// the broker availability check: a misconfigured or unreachable broker fails
// construction instead of the first processing pass.
func NewAMQPPublisher(logger *zap.Logger, url string, opts ...AMQPPublisherOption) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &AMQPPublisher{
		logger:         logger,
		routes:         DefaultRouteTable(),
		exchange:       defaultTaskExchange,
		publishTimeout: defaultPublishTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.channel == nil {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to broker: %w", err)
		}
		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to open channel: %w", err)
		}
		p.conn = conn
		p.channel = channel
	}

	if err := p.declareTopology(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

func (p *AMQPPublisher) declareTopology() error {
	if err := p.channel.ExchangeDeclare(p.exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", p.exchange, err)
	}

	declared := make(map[string]struct{})
	for eventType, route := range p.routes {
		if _, ok := declared[route.Queue]; ok {
			continue
		}
		declared[route.Queue] = struct{}{}

		if _, err := p.channel.QueueDeclare(route.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %q for %s: %w", route.Queue, eventType, err)
		}
		if err := p.channel.QueueBind(route.Queue, route.RoutingKey, p.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q: %w", route.Queue, err)
		}
	}
	return nil
}

// Publish enqueues the event's task message on its route. The publish has a
// bounded timeout so a wedged broker cannot stall the processing pass.
func (p *AMQPPublisher) Publish(ctx context.Context, event EventRecord) error {
	route, ok := p.routes[EventType(event.EventType)]
	if !ok {
		p.logger.Warn("No route for event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
		)
		return fmt.Errorf("%w: %s", ErrNoRouteForEventType, event.EventType)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	message := TaskMessage{
		Task:   route.Task,
		ID:     event.ID,
		Args:   []interface{}{},
		Kwargs: map[string]interface{}{},
	}
	if route.Args != nil {
		message.Args = route.Args(event.AggregateID, payload)
	}
	if route.Kwargs != nil {
		message.Kwargs = route.Kwargs(payload)
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}

	p.logger.Debug("Publishing event",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("queue", route.Queue),
		zap.String("routing_key", route.RoutingKey),
	)

	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(ctx, p.exchange, route.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.EventType,
		Timestamp:    time.Now(),
		Headers:      buildAMQPHeaders(event),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %q: %w", route.Queue, err)
	}
	return nil
}

// Close closes the channel and, when the publisher dialed it, the
// connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("Failed to close channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// buildAMQPHeaders carries the event metadata, including any propagated
// trace context, into the message headers.
func buildAMQPHeaders(event EventRecord) amqp.Table {
	headers := amqp.Table{
		"event_id":       event.ID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
	}

	if len(event.Headers) > 0 {
		var eventHeaders map[string]string
		if err := json.Unmarshal(event.Headers, &eventHeaders); err == nil {
			for k, v := range eventHeaders {
				headers[k] = v
			}
		}
	}

	return headers
}
