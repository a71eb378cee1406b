package outbox

import (
	"time"

	"go.uber.org/zap"

	"github.com/veridata/outbox/storage"
)

const (
	defaultBatchSize          = 100
	defaultMaxRetries         = 3
	defaultRetryDelay         = 60 * time.Second
	defaultStuckTimeout       = 10 * time.Minute
	defaultCompletedRetention = 24 * time.Hour
	defaultPublishTimeout     = 5 * time.Second
	defaultPassLockTTL        = 30 * time.Second
	defaultTaskExchange       = "outbox.tasks"
)

// DefaultProcessingInterval is the recommended interval between processing
// passes when wiring the processor into a BaseWorker.
const DefaultProcessingInterval = 20 * time.Second

//
// Carrier Options
//

type CarrierOption func(*Carrier)

func WithLogger(logger *zap.Logger) CarrierOption {
	return func(c *Carrier) {
		c.logger = logger
	}
}

func WithMetrics(metrics MetricsCollector) CarrierOption {
	return func(c *Carrier) {
		c.metrics = metrics
	}
}

func WithPublisher(publisher Publisher) CarrierOption {
	return func(c *Carrier) {
		c.publisher = publisher
	}
}

func WithStore(store storage.Store) CarrierOption {
	return func(c *Carrier) {
		c.store = store
	}
}

// WithPassLock enables cross-instance mutual exclusion around each pass.
// Required as soon as more than one process runs the processing loop.
func WithPassLock(lock PassLock) CarrierOption {
	return func(c *Carrier) {
		c.passLock = lock
	}
}

//
// AMQPPublisher Options
//

type AMQPPublisherOption func(*AMQPPublisher)

// WithRouteTable replaces the whole route table.
func WithRouteTable(routes RouteTable) AMQPPublisherOption {
	return func(p *AMQPPublisher) {
		p.routes = routes
	}
}

// WithRoute binds one event type on top of the existing table.
func WithRoute(eventType EventType, route Route) AMQPPublisherOption {
	return func(p *AMQPPublisher) {
		p.routes[eventType] = route
	}
}

func WithTaskExchange(exchange string) AMQPPublisherOption {
	return func(p *AMQPPublisher) {
		p.exchange = exchange
	}
}

func WithPublishTimeout(timeout time.Duration) AMQPPublisherOption {
	return func(p *AMQPPublisher) {
		p.publishTimeout = timeout
	}
}

// WithAMQPChannel supplies an already-open channel; the publisher then skips
// dialing and never owns a connection.
func WithAMQPChannel(channel AMQPChannel) AMQPPublisherOption {
	return func(p *AMQPPublisher) {
		p.channel = channel
	}
}

//
// EventProcessor Options
//

type EventProcessorOption func(*EventProcessor)

func WithProcessorBatchSize(size int) EventProcessorOption {
	return func(p *EventProcessor) {
		p.batchSize = size
	}
}

// WithProcessorRetryDelay sets the fixed delay before a failed event becomes
// eligible for another attempt.
func WithProcessorRetryDelay(delay time.Duration) EventProcessorOption {
	return func(p *EventProcessor) {
		p.retryDelay = delay
	}
}

//
// StuckEventSweeper Options
//

type StuckEventSweeperOption func(*StuckEventSweeper)

func WithSweeperBatchSize(size int) StuckEventSweeperOption {
	return func(s *StuckEventSweeper) {
		s.batchSize = size
	}
}

func WithSweeperStuckTimeout(timeout time.Duration) StuckEventSweeperOption {
	return func(s *StuckEventSweeper) {
		s.stuckTimeout = timeout
	}
}

//
// CleanupService Options
//

type CleanupServiceOption func(*CleanupService)

func WithCleanupRetention(retention time.Duration) CleanupServiceOption {
	return func(s *CleanupService) {
		s.retention = retention
	}
}
