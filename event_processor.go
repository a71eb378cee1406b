package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veridata/outbox/storage"
)

// EventProcessor drains the outbox. Each pass claims pending events oldest
// first, then failed events whose fixed retry delay has elapsed, and hands
// them to the Publisher one at a time. Publish failures never escape
// per-event handling, so one bad event cannot stall the batch.
type EventProcessor struct {
	store      storage.Store
	publisher  Publisher
	logger     *zap.Logger
	metrics    MetricsCollector
	batchSize  int
	retryDelay time.Duration
	now        func() time.Time
}

// NewEventProcessor creates a processor over the given store and publisher.
func NewEventProcessor(store storage.Store, publisher Publisher, logger *zap.Logger, metrics MetricsCollector, opts ...EventProcessorOption) *EventProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewNopMetricsCollector()
	}
	p := &EventProcessor{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		metrics:    metrics,
		batchSize:  defaultBatchSize,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessEvents runs one pass: the pending bucket, then the retryable
// bucket. Events claimed when the context is cancelled stay in processing
// and are picked up by the stuck sweeper.
func (p *EventProcessor) ProcessEvents(ctx context.Context) error {
	start := time.Now()

	pending, err := p.store.FetchPendingEvents(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending events: %w", err)
	}

	var published, failed, waiting int
	for _, event := range pending {
		if ctx.Err() != nil {
			p.logger.Warn("Pass interrupted", zap.Error(ctx.Err()))
			return ctx.Err()
		}
		if p.processSingleEvent(ctx, event) {
			published++
		} else {
			failed++
		}
	}

	retryable, err := p.store.FetchRetryableEvents(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch retryable events: %w", err)
	}

	for _, event := range retryable {
		if ctx.Err() != nil {
			p.logger.Warn("Pass interrupted", zap.Error(ctx.Err()))
			return ctx.Err()
		}
		if !p.retryDue(event) {
			waiting++
			continue
		}
		if p.processSingleEvent(ctx, event) {
			published++
		} else {
			failed++
		}
	}

	if len(pending)+len(retryable) > 0 {
		p.logger.Info("Outbox pass completed",
			zap.Int("pending", len(pending)),
			zap.Int("retryable", len(retryable)),
			zap.Int("published", published),
			zap.Int("failed", failed),
			zap.Int("waiting", waiting),
		)
		p.metrics.RecordGauge("outbox.batch_size", float64(len(pending)+len(retryable)), nil)
	}
	p.metrics.RecordDuration("outbox.pass_duration", time.Since(start), nil)

	return nil
}

// retryDue reports whether the fixed retry delay has elapsed since the last
// attempt. Events with no recorded attempt are due immediately.
func (p *EventProcessor) retryDue(event storage.EventRecord) bool {
	if event.LastAttemptAt == nil {
		return true
	}
	return p.now().Sub(*event.LastAttemptAt) >= p.retryDelay
}

func (p *EventProcessor) processSingleEvent(ctx context.Context, event storage.EventRecord) bool {
	eventFields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("aggregate_id", event.AggregateID),
		zap.Int("retry_count", event.RetryCount),
	}

	// Claiming is a separate committed write: a crash between here and the
	// resolve below leaves the row in processing for the stuck sweeper
	// instead of letting the next pass re-read it as pending.
	if err := p.store.MarkProcessing(ctx, event.ID); err != nil {
		p.metrics.IncrementCounter("outbox.claim_failed", map[string]string{"event_type": event.EventType})
		p.logger.Error("Failed to claim event", append(eventFields, zap.Error(err))...)
		return false
	}

	if err := p.publisher.Publish(ctx, publishableRecord(event)); err != nil {
		p.metrics.IncrementCounter("outbox.publish_failed", map[string]string{"event_type": event.EventType})
		p.logger.Error("Failed to publish event", append(eventFields, zap.Error(err))...)
		if markErr := p.store.MarkFailed(ctx, event.ID, err.Error(), true); markErr != nil {
			p.logger.Error("Failed to record publish failure", append(eventFields, zap.Error(markErr))...)
		}
		return false
	}

	if err := p.store.MarkCompleted(ctx, event.ID); err != nil {
		// Published but not recorded. The row stays in processing until the
		// stuck sweeper returns it to the retry cycle; delivery is
		// at-least-once and the consumer must tolerate the duplicate.
		p.metrics.IncrementCounter("outbox.mark_completed_failed", map[string]string{"event_type": event.EventType})
		p.logger.Error("Failed to mark event completed", append(eventFields, zap.Error(err))...)
		return false
	}

	p.metrics.IncrementCounter("outbox.publish_success", map[string]string{"event_type": event.EventType})
	p.logger.Info("Event published", eventFields...)
	return true
}

func publishableRecord(event storage.EventRecord) EventRecord {
	return EventRecord{
		ID:            event.ID,
		EventType:     event.EventType,
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		Payload:       event.Payload,
		Headers:       event.Headers,
		Status:        event.Status,
		RetryCount:    event.RetryCount,
		MaxRetries:    event.MaxRetries,
		ErrorMessage:  event.ErrorMessage,
		LastAttemptAt: event.LastAttemptAt,
		ProcessedAt:   event.ProcessedAt,
		CreatedAt:     event.CreatedAt,
	}
}
