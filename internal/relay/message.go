package relay

import (
	"encoding/json"

	"github.com/reviewdeck/docrelay/internal/config"
)

// Kind tags a relay request. The set is closed: every kind has exactly
// one handler and an unknown kind yields a failure response.
type Kind string

const (
	KindGetConfig      Kind = "GetConfig"
	KindSetConfig      Kind = "SetConfig"
	KindTestConnection Kind = "TestConnection"
	KindFetchDocument  Kind = "FetchDocument"
	KindListDocuments  Kind = "ListDocuments"
)

// Request is the typed envelope crossing the relay boundary. Payload is
// decoded per kind by the dispatcher.
type Request struct {
	ID      string          `json:"id,omitempty"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TestConnectionPayload carries the candidate credentials to probe with.
// The values are used for the probe only and are not persisted.
type TestConnectionPayload struct {
	Credential   string `json:"credential"`
	EndpointBase string `json:"endpoint_base"`
}

// FetchDocumentPayload names the document to fetch and the page the
// caller intends to show first.
type FetchDocumentPayload struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page,omitempty"`
}

// DocumentInfo summarizes one open document for ListDocuments responses.
type DocumentInfo struct {
	DocumentID  string `json:"document_id"`
	DisplayName string `json:"display_name"`
	CurrentPage int    `json:"current_page"`
	PageCount   int    `json:"page_count"`
	State       string `json:"state"`
	Active      bool   `json:"active"`
}

// Response is the single reply produced for every request. Exactly one
// of the optional fields is populated, according to the request kind.
type Response struct {
	Success     bool             `json:"success"`
	Error       string           `json:"error,omitempty"`
	Settings    *config.Settings `json:"settings,omitempty"`
	Data        string           `json:"data,omitempty"` // base64 document bytes
	DisplayName string           `json:"display_name,omitempty"`
	Page        int              `json:"page,omitempty"`
	Documents   []DocumentInfo   `json:"documents,omitempty"`
}

// Failure builds a failed response with the given message.
func Failure(message string) Response {
	return Response{Success: false, Error: message}
}
