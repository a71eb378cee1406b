package outbox

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBaseWorker_RunsOnInterval(t *testing.T) {
	var runs int64
	worker := NewBaseWorker("test-worker", 10*time.Millisecond, zap.NewNop(), func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	})

	done := make(chan struct{})
	go func() {
		worker.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) >= 3
	}, time.Second, 5*time.Millisecond)

	worker.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestBaseWorker_ContextCancelStops(t *testing.T) {
	worker := NewBaseWorker("test-worker", 10*time.Millisecond, zap.NewNop(), func(ctx context.Context) error {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestBaseWorker_WorkErrorDoesNotStopTicker(t *testing.T) {
	var runs int64
	worker := NewBaseWorker("test-worker", 10*time.Millisecond, zap.NewNop(), func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return assert.AnError
	})

	done := make(chan struct{})
	go func() {
		worker.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) >= 2
	}, time.Second, 5*time.Millisecond)

	worker.Stop()
	<-done
}

func TestBaseWorker_StopIsIdempotent(t *testing.T) {
	worker := NewBaseWorker("test-worker", 10*time.Millisecond, zap.NewNop(), func(ctx context.Context) error {
		return nil
	})

	done := make(chan struct{})
	go func() {
		worker.Start(context.Background())
		close(done)
	}()

	// Give the worker a moment to mark itself started.
	time.Sleep(20 * time.Millisecond)

	worker.Stop()
	worker.Stop()
	<-done
}

func TestBaseWorker_StopBeforeStartIsNoOp(t *testing.T) {
	worker := NewBaseWorker("test-worker", time.Hour, zap.NewNop(), func(ctx context.Context) error {
		return nil
	})
	worker.Stop()
}

func TestBaseWorker_StartTwiceReturnsImmediately(t *testing.T) {
	worker := NewBaseWorker("test-worker", 10*time.Millisecond, zap.NewNop(), func(ctx context.Context) error {
		return nil
	})

	done := make(chan struct{})
	go func() {
		worker.Start(context.Background())
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	// Second Start on a running worker must not block.
	finished := make(chan struct{})
	go func() {
		worker.Start(context.Background())
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("second Start blocked")
	}

	worker.Stop()
	<-done
}

func TestBaseWorker_Name(t *testing.T) {
	worker := NewBaseWorker("outbox-processor", time.Second, nil, nil)
	assert.Equal(t, "outbox-processor", worker.Name())
}
