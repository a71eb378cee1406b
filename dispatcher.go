package outbox

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher owns the lifecycle of a set of workers: it starts them in their
// own goroutines and shuts them down together.
type Dispatcher struct {
	logger  *zap.Logger
	workers []Worker

	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopOnce sync.Once
	stopChan chan struct{}
	started  bool
}

// NewDispatcher creates a dispatcher over the given workers.
func NewDispatcher(logger *zap.Logger, workers ...Worker) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger:   logger,
		workers:  workers,
		stopChan: make(chan struct{}),
	}
}

// Start runs all workers and blocks until the context is cancelled or Stop
// is called, then waits for every worker to finish shutting down.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		d.logger.Warn("Dispatcher already started")
		return
	}
	d.started = true
	d.mu.Unlock()

	d.logger.Info("Starting dispatcher", zap.Int("worker_count", len(d.workers)))

	for _, w := range d.workers {
		d.wg.Add(1)
		go func(worker Worker) {
			defer d.wg.Done()
			d.logger.Info("Starting worker", zap.String("worker_name", worker.Name()))
			worker.Start(ctx)
		}(w)
	}

	select {
	case <-ctx.Done():
		d.logger.Info("Context cancelled, stopping dispatcher")
		d.Stop()
	case <-d.stopChan:
	}

	d.wg.Wait()
	d.logger.Info("Dispatcher shutdown complete")

	d.mu.Lock()
	d.started = false
	d.mu.Unlock()
}

// Stop gracefully shuts down all workers. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if !d.started {
			return
		}
		d.logger.Info("Stopping dispatcher")
		close(d.stopChan)

		for _, worker := range d.workers {
			worker.Stop()
		}
	})
}

// IsStarted reports whether the dispatcher is currently running.
func (d *Dispatcher) IsStarted() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.started
}
