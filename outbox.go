package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var (
	// ErrEventAlreadyExists is returned when trying to save an event with a
	// duplicate id.
	ErrEventAlreadyExists = errors.New("event already exists")
)

// DBExecutor is the subset of *sql.Tx (or *sql.DB) that SaveEvent needs. The
// caller owns the transaction boundary: the event row commits or rolls back
// together with the business write that produced it.
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// NewOutboxEvent builds and validates a new event to be saved. The id is
// generated here so the caller can correlate logs before the row exists.
func NewOutboxEvent(eventType EventType, aggregateID, aggregateType string, payload Payload, headers map[string]string) (Event, error) {
	if headers == nil {
		headers = make(map[string]string)
	}
	event := Event{
		ID:            uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Payload:       payload,
		Headers:       headers,
		MaxRetries:    defaultMaxRetries,
	}

	if err := validateOutboxEvent(event); err != nil {
		return Event{}, err
	}

	return event, nil
}

// SaveEvent inserts a pending outbox event within the given transaction. It
// never commits; if the caller rolls back, the event does not exist.
func SaveEvent(ctx context.Context, tx DBExecutor, event Event) error {
	if err := validateOutboxEvent(event); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.MaxRetries <= 0 {
		event.MaxRetries = defaultMaxRetries
	}

	// Inject the trace context of the business write into the event headers
	// so the eventual consumer joins the same trace.
	carrier := NewHeaderCarrier(&event)
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var headersJSON []byte
	if len(event.Headers) > 0 {
		headersJSON, err = json.Marshal(event.Headers)
		if err != nil {
			return fmt.Errorf("failed to marshal headers: %w", err)
		}
	}

	query := `
		INSERT INTO outbox_events
		(id, event_type, aggregate_id, aggregate_type, payload, headers, status, max_retries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		event.AggregateID,
		event.AggregateType,
		payloadJSON,
		headersJSON,
		string(EventStatusPending),
		event.MaxRetries,
	)

	if err != nil {
		return fmt.Errorf("failed to save outbox event: %w", convertFromDBError(err))
	}

	return nil
}

// convertFromDBError converts driver errors to package-level errors.
func convertFromDBError(err error) error {
	var mysqlError *mysql.MySQLError
	if errors.As(err, &mysqlError) {
		if mysqlError.Number == 1062 { // Error 1062: Duplicate entry
			return ErrEventAlreadyExists
		}
	}
	return err
}

func validateOutboxEvent(event Event) error {
	if event.AggregateID == "" {
		return fmt.Errorf("aggregate_id is required")
	}
	if event.AggregateType == "" {
		return fmt.Errorf("aggregate_type is required")
	}
	if event.Payload == nil {
		return fmt.Errorf("payload is required")
	}
	if event.Payload.EventType() != event.EventType {
		return fmt.Errorf("payload %T does not belong to event type %q", event.Payload, event.EventType)
	}
	return event.Payload.Validate()
}
