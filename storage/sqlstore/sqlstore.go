package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/veridata/outbox/storage"
)

const tableEvents = "outbox_events"

const eventColumns = `id, event_type, aggregate_id, aggregate_type, payload, headers, status, retry_count, max_retries, error_message, last_attempt_at, processed_at, created_at`

// SQL queries
const (
	createQuery = `
		INSERT INTO %s (id, event_type, aggregate_id, aggregate_type, payload, headers, status, max_retries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	fetchPendingQuery = `
		SELECT %s
		FROM %s
		WHERE status = ?
		ORDER BY created_at, id
		LIMIT ?`

	fetchRetryableQuery = `
		SELECT %s
		FROM %s
		WHERE status = ? AND retry_count < max_retries
		ORDER BY created_at, id
		LIMIT ?`

	fetchStuckQuery = `
		SELECT %s
		FROM %s
		WHERE status = ? AND last_attempt_at < ?
		ORDER BY created_at, id
		LIMIT ?`

	fetchDeadQuery = `
		SELECT %s
		FROM %s
		WHERE status = ? AND retry_count >= max_retries
		ORDER BY created_at, id
		LIMIT ?`

	markProcessingQuery = `UPDATE %s SET status = ?, last_attempt_at = ? WHERE id = ?`

	markCompletedQuery = `UPDATE %s SET status = ?, processed_at = ? WHERE id = ?`

	markFailedQuery = `
		UPDATE %s
		SET status = ?, error_message = ?, last_attempt_at = ?, retry_count = retry_count + ?
		WHERE id = ?`

	resetStuckQuery = `UPDATE %s SET status = ?, error_message = ? WHERE id IN (%s)`

	requeueQuery = `
		UPDATE %s
		SET status = ?, retry_count = 0, error_message = NULL
		WHERE id = ? AND status = ?`

	deleteCompletedQuery = `DELETE FROM %s WHERE status = ? AND processed_at < ?`
)

var (
	// ErrEventAlreadyExists is returned on a duplicate event id.
	ErrEventAlreadyExists = errors.New("event already exists")
	// ErrEventNotRequeueable is returned when RequeueEvent targets a row
	// that is not in the failed state.
	ErrEventNotRequeueable = errors.New("event is not in a requeueable state")
)

// SQLStore implements storage.Store on MySQL.
type SQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLStore(db *sql.DB, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{
		db:     db,
		logger: logger,
	}
}

func (s *SQLStore) CreateEvent(ctx context.Context, tx storage.DBTX, event *storage.EventRecord) error {
	query := fmt.Sprintf(createQuery, tableEvents)
	_, err := tx.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.AggregateID,
		event.AggregateType,
		event.Payload,
		event.Headers,
		storage.StatusPending,
		event.MaxRetries,
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrEventAlreadyExists
		}
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

func (s *SQLStore) FetchPendingEvents(ctx context.Context, limit int) ([]storage.EventRecord, error) {
	query := fmt.Sprintf(fetchPendingQuery, eventColumns, tableEvents)
	rows, err := s.db.QueryContext(ctx, query, storage.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *SQLStore) FetchRetryableEvents(ctx context.Context, limit int) ([]storage.EventRecord, error) {
	query := fmt.Sprintf(fetchRetryableQuery, eventColumns, tableEvents)
	rows, err := s.db.QueryContext(ctx, query, storage.StatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query retryable events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *SQLStore) FetchStuckEvents(ctx context.Context, limit int, olderThan time.Duration) ([]storage.EventRecord, error) {
	stuckTime := time.Now().UTC().Add(-olderThan)
	query := fmt.Sprintf(fetchStuckQuery, eventColumns, tableEvents)
	rows, err := s.db.QueryContext(ctx, query, storage.StatusProcessing, stuckTime, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *SQLStore) FetchDeadEvents(ctx context.Context, limit int) ([]storage.EventRecord, error) {
	query := fmt.Sprintf(fetchDeadQuery, eventColumns, tableEvents)
	rows, err := s.db.QueryContext(ctx, query, storage.StatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *SQLStore) MarkProcessing(ctx context.Context, eventID string) error {
	query := fmt.Sprintf(markProcessingQuery, tableEvents)
	_, err := s.db.ExecContext(ctx, query, storage.StatusProcessing, time.Now().UTC(), eventID)
	return err
}

func (s *SQLStore) MarkCompleted(ctx context.Context, eventID string) error {
	query := fmt.Sprintf(markCompletedQuery, tableEvents)
	_, err := s.db.ExecContext(ctx, query, storage.StatusCompleted, time.Now().UTC(), eventID)
	return err
}

func (s *SQLStore) MarkFailed(ctx context.Context, eventID string, errorMessage string, incrementRetry bool) error {
	increment := 0
	if incrementRetry {
		increment = 1
	}
	query := fmt.Sprintf(markFailedQuery, tableEvents)
	_, err := s.db.ExecContext(ctx, query, storage.StatusFailed, errorMessage, time.Now().UTC(), increment, eventID)
	return err
}

func (s *SQLStore) ResetStuckEvents(ctx context.Context, eventIDs []string, errorMessage string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(eventIDs)-1) + "?"
	query := fmt.Sprintf(resetStuckQuery, tableEvents, placeholders)

	args := make([]interface{}, 0, len(eventIDs)+2)
	args = append(args, storage.StatusFailed, errorMessage)
	for _, id := range eventIDs {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLStore) RequeueEvent(ctx context.Context, eventID string) error {
	query := fmt.Sprintf(requeueQuery, tableEvents)
	res, err := s.db.ExecContext(ctx, query, storage.StatusPending, eventID, storage.StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to requeue event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEventNotRequeueable
	}
	return nil
}

func (s *SQLStore) DeleteCompletedEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	deleteTime := time.Now().UTC().Add(-olderThan)
	query := fmt.Sprintf(deleteCompletedQuery, tableEvents)
	res, err := s.db.ExecContext(ctx, query, storage.StatusCompleted, deleteTime)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) scanEvents(rows *sql.Rows) ([]storage.EventRecord, error) {
	var events []storage.EventRecord
	for rows.Next() {
		var (
			event         storage.EventRecord
			errorMessage  sql.NullString
			lastAttemptAt sql.NullTime
			processedAt   sql.NullTime
		)
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.AggregateID,
			&event.AggregateType,
			&event.Payload,
			&event.Headers,
			&event.Status,
			&event.RetryCount,
			&event.MaxRetries,
			&errorMessage,
			&lastAttemptAt,
			&processedAt,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		event.ErrorMessage = errorMessage.String
		if lastAttemptAt.Valid {
			t := lastAttemptAt.Time
			event.LastAttemptAt = &t
		}
		if processedAt.Valid {
			t := processedAt.Time
			event.ProcessedAt = &t
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading event rows: %w", err)
	}
	return events, nil
}

// EnsureTables creates the outbox table if it does not exist.
func (s *SQLStore) EnsureTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS outbox_events (
			id              CHAR(36)     NOT NULL PRIMARY KEY,
			event_type      VARCHAR(50)  NOT NULL,
			aggregate_id    VARCHAR(36)  NOT NULL,
			aggregate_type  VARCHAR(50)  NOT NULL,
			payload         JSON         NOT NULL,
			headers         JSON         NULL,
			status          VARCHAR(20)  NOT NULL DEFAULT 'pending',
			retry_count     INT          NOT NULL DEFAULT 0,
			max_retries     INT          NOT NULL DEFAULT 3,
			error_message   TEXT         NULL,
			last_attempt_at TIMESTAMP(6) NULL,
			processed_at    TIMESTAMP(6) NULL,
			created_at      TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			updated_at      TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
			INDEX idx_status_created (status, created_at),
			INDEX idx_aggregate (aggregate_type, aggregate_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create outbox_events table: %w", err)
	}
	return nil
}
