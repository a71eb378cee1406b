package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/veridata/outbox/storage"
)

func TestEventProcessorOptions(t *testing.T) {
	processor := NewEventProcessor(new(storage.MockStore), NewNopPublisher(), zap.NewNop(), nil,
		WithProcessorBatchSize(25),
		WithProcessorRetryDelay(5*time.Second),
	)

	assert.Equal(t, 25, processor.batchSize)
	assert.Equal(t, 5*time.Second, processor.retryDelay)
}

func TestEventProcessorDefaults(t *testing.T) {
	processor := NewEventProcessor(new(storage.MockStore), NewNopPublisher(), nil, nil)

	assert.Equal(t, defaultBatchSize, processor.batchSize)
	assert.Equal(t, defaultRetryDelay, processor.retryDelay)
	assert.NotNil(t, processor.logger)
	assert.NotNil(t, processor.metrics)
}

func TestStuckEventSweeperOptions(t *testing.T) {
	sweeper := NewStuckEventSweeper(new(storage.MockStore), nil, nil,
		WithSweeperBatchSize(10),
		WithSweeperStuckTimeout(time.Minute),
	)

	assert.Equal(t, 10, sweeper.batchSize)
	assert.Equal(t, time.Minute, sweeper.stuckTimeout)
}

func TestCleanupServiceOptions(t *testing.T) {
	cleaner := NewCleanupService(new(storage.MockStore), nil, nil, WithCleanupRetention(72*time.Hour))

	assert.Equal(t, 72*time.Hour, cleaner.retention)
}

func TestAMQPPublisherOptions(t *testing.T) {
	channel := newFakeAMQPChannel()
	publisher := newTestPublisher(t, channel,
		WithTaskExchange("custom.tasks"),
		WithPublishTimeout(time.Second),
		WithRouteTable(RouteTable{
			EventTypeDocumentOCRRequested: {
				Task:       "worker.tasks.process_ocr",
				Queue:      "ocr_queue",
				RoutingKey: "ocr",
			},
		}),
	)

	assert.Equal(t, "custom.tasks", publisher.exchange)
	assert.Equal(t, time.Second, publisher.publishTimeout)
	assert.Len(t, publisher.routes, 1)
	assert.Equal(t, []string{"custom.tasks"}, channel.exchanges)
	assert.Equal(t, []string{"ocr_queue"}, channel.queues)
}
