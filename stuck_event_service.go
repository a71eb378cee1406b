package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veridata/outbox/storage"
)

// StuckEventSweeper returns rows orphaned in the processing state to the
// retry cycle. A row is only ever stuck when the process died between claim
// and resolve, so the reset does not consume a retry: the suppressed
// increment keeps MarkFailed bookkeeping distinct from a real failed
// attempt. Rows already at the retry cap become terminal failed and are
// excluded by the retryable fetch.
type StuckEventSweeper struct {
	store        storage.Store
	logger       *zap.Logger
	metrics      MetricsCollector
	batchSize    int
	stuckTimeout time.Duration
}

// NewStuckEventSweeper creates a sweeper over the given store.
func NewStuckEventSweeper(store storage.Store, logger *zap.Logger, metrics MetricsCollector, opts ...StuckEventSweeperOption) *StuckEventSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewNopMetricsCollector()
	}
	s := &StuckEventSweeper{
		store:        store,
		logger:       logger,
		metrics:      metrics,
		batchSize:    defaultBatchSize,
		stuckTimeout: defaultStuckTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep is the workFunc for the sweeper worker.
func (s *StuckEventSweeper) Sweep(ctx context.Context) error {
	events, err := s.store.FetchStuckEvents(ctx, s.batchSize, s.stuckTimeout)
	if err != nil {
		return fmt.Errorf("failed to fetch stuck events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}

	if err := s.store.ResetStuckEvents(ctx, ids, "reclaimed from stuck processing state"); err != nil {
		return fmt.Errorf("failed to reset stuck events: %w", err)
	}

	s.logger.Warn("Reclaimed stuck events",
		zap.Int("count", len(events)),
		zap.Duration("stuck_timeout", s.stuckTimeout),
	)
	s.metrics.RecordGauge("outbox.stuck_reclaimed", float64(len(events)), nil)

	return nil
}
