package viewer

import (
	"context"
	"fmt"
	"sync"

	"github.com/reviewdeck/docrelay/internal/relay"
	"github.com/reviewdeck/docrelay/pkg/logging"
)

// Manager holds the open documents (tabs) of one presentation surface.
// Exactly one tab is active at a time. All visible state leaves the
// manager as Snapshot copies; decoded handles never escape.
type Manager struct {
	mu      sync.Mutex
	docs    map[string]*OpenDocument
	order   []string // tab order, insertion-first
	active  string
	fetcher DocumentFetcher
	decoder Decoder
}

// NewManager creates an empty tab manager.
func NewManager(fetcher DocumentFetcher, decoder Decoder) *Manager {
	return &Manager{
		docs:    make(map[string]*OpenDocument),
		fetcher: fetcher,
		decoder: decoder,
	}
}

// Open requests a document. An existing tab is reused and made active;
// otherwise a new tab is created, the bytes fetched and decoded, and the
// tab lands in Ready or Failed. If the tab was closed while the fetch
// was in flight the result is discarded rather than resurrecting it.
func (m *Manager) Open(ctx context.Context, documentID string, page int, displayName string) (Snapshot, error) {
	if documentID == "" {
		return Snapshot{}, fmt.Errorf("document id is required")
	}

	m.mu.Lock()
	if doc, ok := m.docs[documentID]; ok {
		m.active = documentID
		if page > 0 && doc.State == StateReady {
			doc.CurrentPage = clampPage(page, doc.PageCount)
		}
		snap := doc.snapshot(true)
		m.mu.Unlock()
		return snap, nil
	}

	doc := &OpenDocument{
		DocumentID:  documentID,
		DisplayName: displayName,
		CurrentPage: 1,
		ZoomScale:   DefaultZoom,
		State:       StateLoading,
		generation:  1,
	}
	if page > 0 {
		doc.CurrentPage = page
	}
	m.docs[documentID] = doc
	m.order = append(m.order, documentID)
	m.active = documentID
	generation := doc.generation
	m.mu.Unlock()

	m.load(ctx, documentID, generation)
	return m.snapshotOf(documentID)
}

// Retry re-enters Loading for a Failed tab and refetches.
func (m *Manager) Retry(ctx context.Context, documentID string) (Snapshot, error) {
	m.mu.Lock()
	doc, ok := m.docs[documentID]
	if !ok {
		m.mu.Unlock()
		return Snapshot{}, fmt.Errorf("no open document %q", documentID)
	}
	if doc.State != StateFailed {
		snap := doc.snapshot(m.active == documentID)
		m.mu.Unlock()
		return snap, nil
	}
	doc.State = StateLoading
	doc.LoadError = ""
	doc.generation++
	generation := doc.generation
	m.mu.Unlock()

	m.load(ctx, documentID, generation)
	return m.snapshotOf(documentID)
}

// load fetches and decodes, then applies the outcome only if the tab
// still exists with the same generation and is still loading.
func (m *Manager) load(ctx context.Context, documentID string, generation uint64) {
	logger := logging.GetLogger("viewer")

	payload, err := m.fetcher.GetDocument(ctx, documentID)

	var decoded DecodedDocument
	if err == nil {
		decoded, err = m.decoder.Decode(payload.Bytes)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[documentID]
	if !ok || doc.generation != generation || doc.State != StateLoading {
		// Tab closed or superseded while the fetch was in flight.
		if decoded != nil {
			decoded.Close()
		}
		logger.Debug().Str("document_id", documentID).Msg("Discarding stale load result")
		return
	}

	if err != nil {
		doc.State = StateFailed
		doc.LoadError = err.Error()
		logger.Warn().Err(err).Str("document_id", documentID).Msg("Document load failed")
		return
	}

	doc.decoded = decoded
	doc.State = StateReady
	doc.PageCount = decoded.PageCount()
	doc.CurrentPage = clampPage(doc.CurrentPage, doc.PageCount)
	if doc.DisplayName == "" {
		doc.DisplayName = payload.SuggestedName
	}
	logger.Info().
		Str("document_id", documentID).
		Int("pages", doc.PageCount).
		Msg("Document ready")
}

// Close removes a tab and releases its decoded resource. Other tabs are
// untouched; if the closed tab was active, the most recently opened
// remaining tab becomes active.
func (m *Manager) Close(documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[documentID]
	if !ok {
		return fmt.Errorf("no open document %q", documentID)
	}

	if doc.decoded != nil {
		doc.decoded.Close()
	}
	doc.generation++ // in-flight loads for this tab become stale
	delete(m.docs, documentID)
	for i, id := range m.order {
		if id == documentID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if m.active == documentID {
		m.active = ""
		if len(m.order) > 0 {
			m.active = m.order[len(m.order)-1]
		}
	}
	return nil
}

// Activate switches the active tab.
func (m *Manager) Activate(documentID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[documentID]
	if !ok {
		return Snapshot{}, fmt.Errorf("no open document %q", documentID)
	}
	m.active = documentID
	return doc.snapshot(true), nil
}

// GoToPage moves to the requested page, clamped to [1, PageCount].
func (m *Manager) GoToPage(documentID string, page int) (Snapshot, error) {
	return m.update(documentID, func(doc *OpenDocument) {
		doc.CurrentPage = clampPage(page, doc.PageCount)
	})
}

// NextPage advances one page, clamped at the last page.
func (m *Manager) NextPage(documentID string) (Snapshot, error) {
	return m.update(documentID, func(doc *OpenDocument) {
		doc.CurrentPage = clampPage(doc.CurrentPage+1, doc.PageCount)
	})
}

// PrevPage goes back one page, clamped at page 1.
func (m *Manager) PrevPage(documentID string) (Snapshot, error) {
	return m.update(documentID, func(doc *OpenDocument) {
		doc.CurrentPage = clampPage(doc.CurrentPage-1, doc.PageCount)
	})
}

// SetZoom sets the zoom scale, clamped to [MinZoom, MaxZoom].
func (m *Manager) SetZoom(documentID string, scale float64) (Snapshot, error) {
	return m.update(documentID, func(doc *OpenDocument) {
		doc.ZoomScale = clampZoom(scale)
	})
}

// ZoomIn increases zoom by one step; a no-op at the maximum.
func (m *Manager) ZoomIn(documentID string) (Snapshot, error) {
	return m.update(documentID, func(doc *OpenDocument) {
		doc.ZoomScale = clampZoom(doc.ZoomScale + ZoomStep)
	})
}

// ZoomOut decreases zoom by one step; a no-op at the minimum.
func (m *Manager) ZoomOut(documentID string) (Snapshot, error) {
	return m.update(documentID, func(doc *OpenDocument) {
		doc.ZoomScale = clampZoom(doc.ZoomScale - ZoomStep)
	})
}

// FitToWidth derives the zoom scale from the container width and the
// current page's native width, clamped like any other zoom change.
func (m *Manager) FitToWidth(documentID string, containerWidth float64) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[documentID]
	if !ok {
		return Snapshot{}, fmt.Errorf("no open document %q", documentID)
	}
	if doc.State != StateReady || doc.decoded == nil {
		return Snapshot{}, fmt.Errorf("document %q is not ready", documentID)
	}
	if containerWidth <= 0 {
		return Snapshot{}, fmt.Errorf("container width must be positive")
	}

	nativeWidth, err := doc.decoded.PageWidth(doc.CurrentPage)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to measure page: %w", err)
	}
	if nativeWidth <= 0 {
		return Snapshot{}, fmt.Errorf("page has no measurable width")
	}

	doc.ZoomScale = clampZoom(containerWidth / nativeWidth)
	return doc.snapshot(m.active == documentID), nil
}

// RenderPage rasterizes the current page of a Ready tab at its zoom
// scale. Rendering is idempotent for a given page and scale.
func (m *Manager) RenderPage(documentID string) ([]byte, error) {
	m.mu.Lock()
	doc, ok := m.docs[documentID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("no open document %q", documentID)
	}
	if doc.State != StateReady || doc.decoded == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("document %q is not ready", documentID)
	}
	decoded := doc.decoded
	page := doc.CurrentPage
	scale := doc.ZoomScale
	m.mu.Unlock()

	return decoded.RenderPage(page, scale)
}

// Get returns a snapshot of one open document.
func (m *Manager) Get(documentID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[documentID]
	if !ok {
		return Snapshot{}, false
	}
	return doc.snapshot(m.active == documentID), true
}

// List returns snapshots of all open documents in tab order.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, 0, len(m.docs))
	for _, id := range m.order {
		if doc, ok := m.docs[id]; ok {
			out = append(out, doc.snapshot(m.active == id))
		}
	}
	return out
}

// ListDocuments adapts List to the relay's document listing contract.
func (m *Manager) ListDocuments() []relay.DocumentInfo {
	snaps := m.List()
	out := make([]relay.DocumentInfo, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, relay.DocumentInfo{
			DocumentID:  s.DocumentID,
			DisplayName: s.DisplayName,
			CurrentPage: s.CurrentPage,
			PageCount:   s.PageCount,
			State:       string(s.State),
			Active:      s.Active,
		})
	}
	return out
}

// ActiveDocument returns the active tab's snapshot, if any.
func (m *Manager) ActiveDocument() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[m.active]
	if !ok {
		return Snapshot{}, false
	}
	return doc.snapshot(true), true
}

func (m *Manager) snapshotOf(documentID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[documentID]
	if !ok {
		return Snapshot{}, fmt.Errorf("no open document %q", documentID)
	}
	return doc.snapshot(m.active == documentID), nil
}

func (m *Manager) update(documentID string, fn func(*OpenDocument)) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[documentID]
	if !ok {
		return Snapshot{}, fmt.Errorf("no open document %q", documentID)
	}
	fn(doc)
	return doc.snapshot(m.active == documentID), nil
}

func clampPage(page, pageCount int) int {
	if page < 1 {
		return 1
	}
	if pageCount > 0 && page > pageCount {
		return pageCount
	}
	return page
}

func clampZoom(scale float64) float64 {
	if scale < MinZoom {
		return MinZoom
	}
	if scale > MaxZoom {
		return MaxZoom
	}
	return scale
}
