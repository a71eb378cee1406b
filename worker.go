package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Worker is a long-lived background task with a graceful stop.
type Worker interface {
	Start(ctx context.Context)
	Stop()
	Name() string
}

// BaseWorker runs a workFunc on a fixed interval. The processing loop, the
// stuck sweeper, and the cleaner are all BaseWorkers at different intervals.
// Work errors are logged, never fatal: the ticker keeps going.
type BaseWorker struct {
	name     string
	interval time.Duration
	logger   *zap.Logger
	workFunc func(ctx context.Context) error

	inFlight sync.WaitGroup
	mu       sync.Mutex
	stopOnce sync.Once
	stopChan chan struct{}
	started  bool
}

// NewBaseWorker creates a ticker-based worker.
func NewBaseWorker(name string, interval time.Duration, logger *zap.Logger, workFunc func(ctx context.Context) error) *BaseWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseWorker{
		name:     name,
		interval: interval,
		logger:   logger,
		workFunc: workFunc,
		stopChan: make(chan struct{}),
	}
}

// Start blocks, running workFunc every interval, until the context is
// cancelled or Stop is called. The first run happens after one interval, not
// immediately.
func (w *BaseWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		w.logger.Warn("Worker already started", zap.String("name", w.name))
		return
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("Worker starting", zap.String("name", w.name), zap.Duration("interval", w.interval))
	defer w.logger.Info("Worker stopped", zap.String("name", w.name))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			// Re-check the stop signal so a Stop racing the tick does not
			// start another pass.
			select {
			case <-w.stopChan:
				return
			default:
			}
			w.runOnce(ctx)
		}
	}
}

func (w *BaseWorker) runOnce(ctx context.Context) {
	w.inFlight.Add(1)
	defer w.inFlight.Done()

	if ctx.Err() != nil {
		return
	}

	if err := w.workFunc(ctx); err != nil {
		w.logger.Error("Worker pass failed", zap.String("name", w.name), zap.Error(err))
	}
}

// Stop signals the worker to exit and waits for any in-flight pass to
// finish. Safe to call more than once.
func (w *BaseWorker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		started := w.started
		w.mu.Unlock()
		if !started {
			return
		}

		close(w.stopChan)
		w.inFlight.Wait()
	})
}

// Name returns the worker's name.
func (w *BaseWorker) Name() string {
	return w.name
}
