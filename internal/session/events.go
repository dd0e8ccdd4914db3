package session

import "time"

// EventType names a session notification.
type EventType string

const (
	EventAnalysisCompleted EventType = "analysis_completed"
	EventDocumentAdded     EventType = "document_added"
	EventHeadersResolved   EventType = "headers_resolved"
	EventHeadersFailed     EventType = "headers_failed"
	EventTagsSaved         EventType = "tags_saved"
	EventSessionReset      EventType = "session_reset"
	EventSessionClosed     EventType = "session_closed"
)

// Event is delivered to session subscribers.
type Event struct {
	Type       EventType `json:"type"`
	Session    string    `json:"session"`
	Generation uint64    `json:"generation"`
	Document   string    `json:"documentId,omitempty"`
	Message    string    `json:"message,omitempty"`
	Count      int       `json:"count,omitempty"`
	Time       time.Time `json:"time"`
}
