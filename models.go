package outbox

import "time"

// EventStatus is the delivery state of an outbox event. Transitions per
// attempt cycle are pending -> processing -> completed|failed, and
// failed -> processing on retry; no transition skips processing.
type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusProcessing EventStatus = "processing"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusFailed     EventStatus = "failed"
)

// EventType tags an outbox event and determines its route and payload shape.
type EventType string

const (
	EventTypeDocumentOCRRequested        EventType = "document_ocr_requested"
	EventTypeVoiceTranscriptionRequested EventType = "voice_transcription_requested"
	EventTypeEmailSendRequested          EventType = "email_send_requested"

	// Lifecycle notification types. They have no default route; bind one
	// with WithRoute before publishing them.
	EventTypeUserRegistered   EventType = "user_registered"
	EventTypeProjectCreated   EventType = "project_created"
	EventTypeDocumentApproved EventType = "document_approved"
	EventTypeDocumentRejected EventType = "document_rejected"
)

// Event is the user-facing representation of an outbox event before it is
// saved. The payload is typed per event type and validated at creation.
type Event struct {
	ID            string
	EventType     EventType
	AggregateID   string
	AggregateType string
	Payload       Payload
	Headers       map[string]string
	MaxRetries    int
}

// EventRecord is the stored representation of an outbox event as handed to
// the Publisher.
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
