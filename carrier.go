package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/veridata/outbox/storage"
	"github.com/veridata/outbox/storage/sqlstore"
)

// Carrier holds the shared dependencies of the outbox services. It is the
// one place the embedding application configures: there is no process-global
// state, every service gets its configuration through here or through its
// own options.
type Carrier struct {
	db        *sql.DB
	store     storage.Store
	publisher Publisher
	metrics   MetricsCollector
	logger    *zap.Logger
	passLock  PassLock
}

// NewCarrier creates a Carrier with the given options. Unset dependencies
// fall back to the SQL store on db, a nop publisher, and nop metrics.
func NewCarrier(db *sql.DB, opts ...CarrierOption) (*Carrier, error) {
	c := &Carrier{
		db:      db,
		logger:  zap.NewNop(),
		metrics: NewNopMetricsCollector(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		c.store = sqlstore.NewSQLStore(db, c.logger)
	}
	if c.publisher == nil {
		c.publisher = NewNopPublisher()
	}

	return c, nil
}

// Store exposes the configured event store, e.g. for manual requeueing.
func (c *Carrier) Store() storage.Store {
	return c.store
}

// ProcessOutbox runs one processing pass, holding the pass lock when one is
// configured.
func (c *Carrier) ProcessOutbox(ctx context.Context, opts ...EventProcessorOption) error {
	processor := NewEventProcessor(c.store, c.publisher, c.logger, c.metrics, opts...)
	return c.withPassLock(ctx, "outbox:process", processor.ProcessEvents)
}

// RecoverStuckEvents runs one stuck-row sweep.
func (c *Carrier) RecoverStuckEvents(ctx context.Context, opts ...StuckEventSweeperOption) error {
	sweeper := NewStuckEventSweeper(c.store, c.logger, c.metrics, opts...)
	return c.withPassLock(ctx, "outbox:sweep", sweeper.Sweep)
}

// Cleanup runs one retention pass over completed events.
func (c *Carrier) Cleanup(ctx context.Context, opts ...CleanupServiceOption) error {
	cleaner := NewCleanupService(c.store, c.logger, c.metrics, opts...)
	return c.withPassLock(ctx, "outbox:cleanup", cleaner.Cleanup)
}

// withPassLock runs one pass under the configured lock. A pass whose lock is
// held by another instance is skipped, not queued: the next tick will try
// again, and the holder is doing the same work anyway.
func (c *Carrier) withPassLock(ctx context.Context, key string, pass func(context.Context) error) error {
	if c.passLock == nil {
		return pass(ctx)
	}

	release, acquired, err := c.passLock.TryAcquire(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to acquire pass lock %q: %w", key, err)
	}
	if !acquired {
		c.logger.Debug("Pass lock held elsewhere, skipping pass", zap.String("lock", key))
		return nil
	}
	defer release()

	return pass(ctx)
}
