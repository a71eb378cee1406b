package outbox

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	arguments := m.Called(ctx, query, args)
	res, _ := arguments.Get(0).(sql.Result)
	return res, arguments.Error(1)
}

func TestNewOutboxEvent(t *testing.T) {
	t.Run("generates id and defaults", func(t *testing.T) {
		event, err := NewOutboxEvent(
			EventTypeEmailSendRequested,
			"user-1",
			"User",
			EmailSendPayload{ToEmail: "a@b.com", Subject: "S", Body: "B"},
			nil,
		)
		assert.NoError(t, err)
		assert.NotEmpty(t, event.ID)
		assert.Equal(t, 3, event.MaxRetries)
		assert.NotNil(t, event.Headers)
	})

	t.Run("payload type mismatch", func(t *testing.T) {
		_, err := NewOutboxEvent(
			EventTypeEmailSendRequested,
			"doc-1",
			"Document",
			DocumentOCRPayload{DocumentID: "doc-1"},
			nil,
		)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "does not belong to event type")
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := NewOutboxEvent(
			EventTypeDocumentOCRRequested,
			"doc-1",
			"Document",
			DocumentOCRPayload{},
			nil,
		)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "document_id is required")
	})
}

func TestSaveEvent(t *testing.T) {
	ctx := context.Background()

	newEvent := func() Event {
		event, err := NewOutboxEvent(
			EventTypeEmailSendRequested,
			"user-1",
			"User",
			EmailSendPayload{ToEmail: "a@b.com", Subject: "S", Body: "B", EmailType: "email_verification"},
			map[string]string{"source": "test"},
		)
		require.NoError(t, err)
		return event
	}

	t.Run("success", func(t *testing.T) {
		mockExecutor := new(MockDBExecutor)
		mockExecutor.On("ExecContext", ctx, mock.Anything, mock.Anything).Return(nil, nil).Once()

		err := SaveEvent(ctx, mockExecutor, newEvent())

		assert.NoError(t, err)
		mockExecutor.AssertExpectations(t)
	})

	t.Run("validation failed", func(t *testing.T) {
		mockExecutor := new(MockDBExecutor)
		testCases := []struct {
			name    string
			event   Event
			wantErr string
		}{
			{
				"missing aggregate id",
				Event{EventType: EventTypeEmailSendRequested, AggregateType: "User", Payload: EmailSendPayload{ToEmail: "a@b.com", Subject: "S"}},
				"validation failed: aggregate_id is required",
			},
			{
				"missing aggregate type",
				Event{EventType: EventTypeEmailSendRequested, AggregateID: "user-1", Payload: EmailSendPayload{ToEmail: "a@b.com", Subject: "S"}},
				"validation failed: aggregate_type is required",
			},
			{
				"missing payload",
				Event{EventType: EventTypeEmailSendRequested, AggregateID: "user-1", AggregateType: "User"},
				"validation failed: payload is required",
			},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				err := SaveEvent(ctx, mockExecutor, tc.event)
				assert.Error(t, err)
				assert.Equal(t, tc.wantErr, err.Error())
			})
		}
		mockExecutor.AssertNotCalled(t, "ExecContext")
	})

	t.Run("insert returns duplicate error", func(t *testing.T) {
		mockExecutor := new(MockDBExecutor)
		dbErr := &mysql.MySQLError{Number: 1062}
		mockExecutor.On("ExecContext", ctx, mock.Anything, mock.Anything).Return(nil, dbErr).Once()

		err := SaveEvent(ctx, mockExecutor, newEvent())

		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrEventAlreadyExists))
		mockExecutor.AssertExpectations(t)
	})

	t.Run("insert returns generic db error", func(t *testing.T) {
		mockExecutor := new(MockDBExecutor)
		dbErr := errors.New("some db error")
		mockExecutor.On("ExecContext", ctx, mock.Anything, mock.Anything).Return(nil, dbErr).Once()

		err := SaveEvent(ctx, mockExecutor, newEvent())

		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrEventAlreadyExists))
		assert.Contains(t, err.Error(), "failed to save outbox event")
		mockExecutor.AssertExpectations(t)
	})
}

// The event row lives and dies with the caller's transaction: a rollback of
// the business write removes the event with it.
func TestSaveEvent_RollsBackWithBusinessTransaction(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	dbmock.ExpectBegin()
	dbmock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	dbmock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_events")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectRollback()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	_, err = tx.ExecContext(ctx, "INSERT INTO documents (id) VALUES (?)", "doc-1")
	require.NoError(t, err)

	event, err := NewOutboxEvent(
		EventTypeDocumentOCRRequested,
		"doc-1",
		"Document",
		DocumentOCRPayload{DocumentID: "doc-1"},
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, SaveEvent(ctx, tx, event))

	require.NoError(t, tx.Rollback())

	// No commit was ever issued for the outbox insert.
	assert.NoError(t, dbmock.ExpectationsWereMet())
}
