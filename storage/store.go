package storage

import (
	"context"
	"database/sql"
	"time"
)

// Event statuses as stored in the database.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Store defines the persistence operations of the outbox subsystem.
// CreateEvent is scoped to the caller's transaction and never commits; all
// other mutations run against the store's own connection and are
// autocommitted single-row state transitions.
type Store interface {
	// CreateEvent inserts a new pending event within the given transaction.
	CreateEvent(ctx context.Context, tx DBTX, event *EventRecord) error
	// FetchPendingEvents returns pending events, oldest first.
	FetchPendingEvents(ctx context.Context, limit int) ([]EventRecord, error)
	// FetchRetryableEvents returns failed events that still have retry
	// budget, oldest first.
	FetchRetryableEvents(ctx context.Context, limit int) ([]EventRecord, error)
	// FetchStuckEvents returns events left in processing longer than
	// olderThan, oldest first.
	FetchStuckEvents(ctx context.Context, limit int, olderThan time.Duration) ([]EventRecord, error)
	// FetchDeadEvents returns failed events whose retries are exhausted.
	// They are excluded from automatic processing and only surface here.
	FetchDeadEvents(ctx context.Context, limit int) ([]EventRecord, error)
	// MarkProcessing claims an event and stamps the attempt time.
	MarkProcessing(ctx context.Context, eventID string) error
	// MarkCompleted finishes an event and stamps the processed time.
	MarkCompleted(ctx context.Context, eventID string) error
	// MarkFailed records a failure. The retry counter is incremented unless
	// incrementRetry is false, which distinguishes a failed publish attempt
	// from bookkeeping such as stuck-row recovery.
	MarkFailed(ctx context.Context, eventID string, errorMessage string, incrementRetry bool) error
	// ResetStuckEvents returns orphaned processing rows to failed without
	// consuming a retry.
	ResetStuckEvents(ctx context.Context, eventIDs []string, errorMessage string) error
	// RequeueEvent is the manual-intervention hook: it resets a failed event
	// to pending with a fresh retry budget.
	RequeueEvent(ctx context.Context, eventID string) error
	// DeleteCompletedEvents removes completed events processed before the
	// retention window. Never called by the processing loop.
	DeleteCompletedEvents(ctx context.Context, olderThan time.Duration) (int64, error)
	// EnsureTables creates the outbox table if it does not exist.
	EnsureTables(ctx context.Context) error
}

// EventRecord is the database representation of an outbox event.
type EventRecord struct {
	ID            string
	EventType     string
	AggregateID   string
	AggregateType string
	Payload       []byte
	Headers       []byte
	Status        string
	RetryCount    int
	MaxRetries    int
	ErrorMessage  string
	LastAttemptAt *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
}
