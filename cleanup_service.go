package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veridata/outbox/storage"
)

// CleanupService removes completed events that have aged past the retention
// window. It runs as its own worker and never touches pending, processing,
// or failed rows: terminal failures stay in the table as the audit trail for
// manual follow-up.
type CleanupService struct {
	store     storage.Store
	logger    *zap.Logger
	metrics   MetricsCollector
	retention time.Duration
}

// NewCleanupService creates a cleaner over the given store.
func NewCleanupService(store storage.Store, logger *zap.Logger, metrics MetricsCollector, opts ...CleanupServiceOption) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewNopMetricsCollector()
	}
	s := &CleanupService{
		store:     store,
		logger:    logger,
		metrics:   metrics,
		retention: defaultCompletedRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cleanup is the workFunc for the cleanup worker.
func (s *CleanupService) Cleanup(ctx context.Context) error {
	deleted, err := s.store.DeleteCompletedEvents(ctx, s.retention)
	if err != nil {
		return fmt.Errorf("failed to clean up completed events: %w", err)
	}

	if deleted > 0 {
		s.logger.Info("Cleaned up completed events",
			zap.Int64("count", deleted),
			zap.Duration("retention", s.retention),
		)
		s.metrics.RecordGauge("outbox.cleanup_deleted", float64(deleted), nil)
	}

	return nil
}
