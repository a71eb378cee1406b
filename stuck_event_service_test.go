package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/veridata/outbox/storage"
)

func TestStuckEventSweeper_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("reclaims stuck events", func(t *testing.T) {
		mockStore := new(storage.MockStore)
		sweeper := NewStuckEventSweeper(mockStore, zap.NewNop(), nil,
			WithSweeperBatchSize(50),
			WithSweeperStuckTimeout(5*time.Minute),
		)

		stuck := []storage.EventRecord{
			{ID: "event-1", Status: storage.StatusProcessing},
			{ID: "event-2", Status: storage.StatusProcessing},
		}
		mockStore.On("FetchStuckEvents", ctx, 50, 5*time.Minute).Return(stuck, nil).Once()
		mockStore.On("ResetStuckEvents", ctx, []string{"event-1", "event-2"}, "reclaimed from stuck processing state").
			Return(nil).Once()

		err := sweeper.Sweep(ctx)

		assert.NoError(t, err)
		mockStore.AssertExpectations(t)
	})

	t.Run("no stuck events", func(t *testing.T) {
		mockStore := new(storage.MockStore)
		sweeper := NewStuckEventSweeper(mockStore, zap.NewNop(), nil)

		mockStore.On("FetchStuckEvents", ctx, defaultBatchSize, defaultStuckTimeout).
			Return([]storage.EventRecord{}, nil).Once()

		err := sweeper.Sweep(ctx)

		assert.NoError(t, err)
		mockStore.AssertNotCalled(t, "ResetStuckEvents")
	})

	t.Run("fetch error", func(t *testing.T) {
		mockStore := new(storage.MockStore)
		sweeper := NewStuckEventSweeper(mockStore, zap.NewNop(), nil)

		mockStore.On("FetchStuckEvents", ctx, defaultBatchSize, defaultStuckTimeout).
			Return([]storage.EventRecord(nil), errors.New("db gone")).Once()

		err := sweeper.Sweep(ctx)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to fetch stuck events")
	})

	t.Run("reset error", func(t *testing.T) {
		mockStore := new(storage.MockStore)
		sweeper := NewStuckEventSweeper(mockStore, zap.NewNop(), nil)

		stuck := []storage.EventRecord{{ID: "event-1", Status: storage.StatusProcessing}}
		mockStore.On("FetchStuckEvents", ctx, defaultBatchSize, defaultStuckTimeout).
			Return(stuck, nil).Once()
		mockStore.On("ResetStuckEvents", ctx, []string{"event-1"}, "reclaimed from stuck processing state").
			Return(errors.New("db gone")).Once()

		err := sweeper.Sweep(ctx)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to reset stuck events")
	})
}
