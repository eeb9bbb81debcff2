package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a host integration event.
type EventType string

const (
	// EventOpenDocument asks the presentation surface to open a document
	// at a given page.
	EventOpenDocument EventType = "document.open"
	// EventListDocuments asks for the documents known to this session.
	EventListDocuments EventType = "document.list"
)

// Event is a one-way notification from the host page side. Unlike relay
// requests, events carry no response; late or unmatched events are
// dropped by their consumers.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	DocumentID  string    `json:"document_id,omitempty"`
	Page        int       `json:"page,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewOpenDocumentEvent builds an open-document event.
func NewOpenDocumentEvent(documentID string, page int, displayName string) *Event {
	return &Event{
		ID:          uuid.New().String(),
		Type:        EventOpenDocument,
		DocumentID:  documentID,
		Page:        page,
		DisplayName: displayName,
		Timestamp:   time.Now().UTC(),
	}
}

// NewListDocumentsEvent builds a list-documents event.
func NewListDocumentsEvent() *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventListDocuments,
		Timestamp: time.Now().UTC(),
	}
}
