package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/reviewdeck/docrelay/internal/cache"
	"github.com/reviewdeck/docrelay/internal/config"
	"github.com/reviewdeck/docrelay/pkg/logging"
)

// DocumentGetter resolves a document by identifier (the fetch coordinator).
type DocumentGetter interface {
	GetDocument(ctx context.Context, documentID string) (*cache.DocumentBytes, error)
}

// ConnectivityTester probes the remote API with candidate credentials.
type ConnectivityTester interface {
	TestConnectivity(ctx context.Context, credential, endpointBase string) error
}

// SettingsStore reads and writes the persisted settings record.
type SettingsStore interface {
	Get(ctx context.Context) (*config.Settings, error)
	Set(ctx context.Context, settings config.Settings) error
}

// DocumentLister enumerates the documents a presentation surface holds.
type DocumentLister interface {
	ListDocuments() []DocumentInfo
}

// Dispatcher routes typed requests to their handlers and guarantees
// exactly one response per request: unknown kinds, malformed payloads and
// handler panics all surface as failure responses, never as a dropped or
// duplicated reply.
type Dispatcher struct {
	settings  SettingsStore
	documents DocumentGetter
	tester    ConnectivityTester
	lister    DocumentLister
}

// NewDispatcher wires the dispatcher with its collaborators. lister may
// be nil when no presentation surface is attached; ListDocuments then
// resolves with an empty list.
func NewDispatcher(settings SettingsStore, documents DocumentGetter, tester ConnectivityTester, lister DocumentLister) *Dispatcher {
	return &Dispatcher{
		settings:  settings,
		documents: documents,
		tester:    tester,
		lister:    lister,
	}
}

// Dispatch resolves one request to one response. It never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (resp Response) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	logger := logging.GetRelayLogger(string(req.Kind), req.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Relay handler panicked")
			resp = Failure(fmt.Sprintf("internal error: %v", r))
		}
	}()

	switch req.Kind {
	case KindGetConfig:
		return d.handleGetConfig(ctx)
	case KindSetConfig:
		return d.handleSetConfig(ctx, req.Payload)
	case KindTestConnection:
		return d.handleTestConnection(ctx, req.Payload)
	case KindFetchDocument:
		return d.handleFetchDocument(ctx, req.Payload)
	case KindListDocuments:
		return d.handleListDocuments()
	default:
		logger.Warn().Msg("Unknown request kind")
		return Failure(fmt.Sprintf("unknown request kind: %q", req.Kind))
	}
}

// handleGetConfig always resolves; absent settings read as null.
func (d *Dispatcher) handleGetConfig(ctx context.Context) Response {
	settings, err := d.settings.Get(ctx)
	if err != nil {
		// The store treats faults as "not configured"; mirror that here.
		return Response{Success: true}
	}
	return Response{Success: true, Settings: settings}
}

func (d *Dispatcher) handleSetConfig(ctx context.Context, payload json.RawMessage) Response {
	var settings config.Settings
	if err := json.Unmarshal(payload, &settings); err != nil {
		return Failure(fmt.Sprintf("invalid settings payload: %v", err))
	}
	if err := settings.Validate(); err != nil {
		return Failure(err.Error())
	}
	if err := d.settings.Set(ctx, settings); err != nil {
		return Failure(err.Error())
	}
	return Response{Success: true}
}

func (d *Dispatcher) handleTestConnection(ctx context.Context, payload json.RawMessage) Response {
	var p TestConnectionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Failure(fmt.Sprintf("invalid test payload: %v", err))
	}
	if err := d.tester.TestConnectivity(ctx, p.Credential, p.EndpointBase); err != nil {
		return Failure(err.Error())
	}
	return Response{Success: true}
}

func (d *Dispatcher) handleFetchDocument(ctx context.Context, payload json.RawMessage) Response {
	var p FetchDocumentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Failure(fmt.Sprintf("invalid fetch payload: %v", err))
	}
	if p.DocumentID == "" {
		return Failure("document_id is required")
	}

	doc, err := d.documents.GetDocument(ctx, p.DocumentID)
	if err != nil {
		return Failure(err.Error())
	}

	return Response{
		Success:     true,
		Data:        EncodeBytes(doc.Bytes),
		DisplayName: doc.SuggestedName,
		Page:        p.Page,
	}
}

func (d *Dispatcher) handleListDocuments() Response {
	if d.lister == nil {
		return Response{Success: true, Documents: []DocumentInfo{}}
	}
	return Response{Success: true, Documents: d.lister.ListDocuments()}
}
