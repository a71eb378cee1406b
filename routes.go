package outbox

// Route describes how one event type is handed to the task queue: the task
// identifier the worker pool dispatches on, the destination queue, the
// routing key, and how positional and keyword arguments are extracted from
// the payload.
type Route struct {
	Task       string
	Queue      string
	RoutingKey string
	Args       func(aggregateID string, payload map[string]interface{}) []interface{}
	Kwargs     func(payload map[string]interface{}) map[string]interface{}
}

// RouteTable maps event types to their destinations. Keeping the mapping
// data-driven means a new event type never touches the processing loop.
type RouteTable map[EventType]Route

// DefaultRouteTable covers the event types the platform workers consume.
// Lifecycle notification types are deliberately absent; bind them with
// WithRoute when a consumer exists.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		EventTypeDocumentOCRRequested: {
			Task:       "worker.tasks.process_ocr",
			Queue:      "ocr_queue",
			RoutingKey: "ocr",
			Args: func(aggregateID string, _ map[string]interface{}) []interface{} {
				return []interface{}{aggregateID}
			},
		},
		EventTypeVoiceTranscriptionRequested: {
			Task:       "worker.tasks.transcribe_audio",
			Queue:      "transcription_queue",
			RoutingKey: "transcription",
			Args: func(aggregateID string, _ map[string]interface{}) []interface{} {
				return []interface{}{aggregateID}
			},
		},
		EventTypeEmailSendRequested: {
			Task:       "worker.tasks.send_email",
			Queue:      "email_queue",
			RoutingKey: "email",
			Args: func(_ string, payload map[string]interface{}) []interface{} {
				return []interface{}{payload["to_email"], payload["subject"], payload["body"]}
			},
			Kwargs: func(payload map[string]interface{}) map[string]interface{} {
				emailType, ok := payload["email_type"].(string)
				if !ok || emailType == "" {
					emailType = "general"
				}
				return map[string]interface{}{"email_type": emailType}
			},
		},
	}
}
