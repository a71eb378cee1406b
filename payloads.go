package outbox

import "fmt"

// Payload is the typed body of an outbox event. Exactly one payload shape
// exists per event type, and it is validated when the event is created, not
// when it is published.
type Payload interface {
	EventType() EventType
	Validate() error
}

// DocumentOCRPayload requests OCR of an uploaded document.
type DocumentOCRPayload struct {
	DocumentID string `json:"document_id"`
}

func (p DocumentOCRPayload) EventType() EventType { return EventTypeDocumentOCRRequested }

func (p DocumentOCRPayload) Validate() error {
	if p.DocumentID == "" {
		return fmt.Errorf("document_id is required")
	}
	return nil
}

// VoiceTranscriptionPayload requests transcription of a voice sample.
type VoiceTranscriptionPayload struct {
	VoiceSampleID string `json:"voice_sample_id"`
}

func (p VoiceTranscriptionPayload) EventType() EventType {
	return EventTypeVoiceTranscriptionRequested
}

func (p VoiceTranscriptionPayload) Validate() error {
	if p.VoiceSampleID == "" {
		return fmt.Errorf("voice_sample_id is required")
	}
	return nil
}

// EmailSendPayload requests an outgoing email. EmailType defaults to
// "general" at publish time when empty.
type EmailSendPayload struct {
	ToEmail   string `json:"to_email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	EmailType string `json:"email_type,omitempty"`
}

func (p EmailSendPayload) EventType() EventType { return EventTypeEmailSendRequested }

func (p EmailSendPayload) Validate() error {
	if p.ToEmail == "" {
		return fmt.Errorf("to_email is required")
	}
	if p.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	return nil
}

// UserRegisteredPayload announces a completed registration.
type UserRegisteredPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (p UserRegisteredPayload) EventType() EventType { return EventTypeUserRegistered }

func (p UserRegisteredPayload) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// ProjectCreatedPayload announces a new collection project.
type ProjectCreatedPayload struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

func (p ProjectCreatedPayload) EventType() EventType { return EventTypeProjectCreated }

func (p ProjectCreatedPayload) Validate() error {
	if p.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	return nil
}

// DocumentApprovedPayload records a review approval.
type DocumentApprovedPayload struct {
	DocumentID string `json:"document_id"`
	ReviewerID string `json:"reviewer_id"`
}

func (p DocumentApprovedPayload) EventType() EventType { return EventTypeDocumentApproved }

func (p DocumentApprovedPayload) Validate() error {
	if p.DocumentID == "" {
		return fmt.Errorf("document_id is required")
	}
	if p.ReviewerID == "" {
		return fmt.Errorf("reviewer_id is required")
	}
	return nil
}

// DocumentRejectedPayload records a review rejection.
type DocumentRejectedPayload struct {
	DocumentID string `json:"document_id"`
	ReviewerID string `json:"reviewer_id"`
	Reason     string `json:"reason,omitempty"`
}

func (p DocumentRejectedPayload) EventType() EventType { return EventTypeDocumentRejected }

func (p DocumentRejectedPayload) Validate() error {
	if p.DocumentID == "" {
		return fmt.Errorf("document_id is required")
	}
	if p.ReviewerID == "" {
		return fmt.Errorf("reviewer_id is required")
	}
	return nil
}
