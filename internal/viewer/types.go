package viewer

import (
	"context"

	"github.com/reviewdeck/docrelay/internal/cache"
)

// LoadState is the lifecycle state of an open document.
type LoadState string

const (
	StateLoading LoadState = "loading"
	StateReady   LoadState = "ready"
	StateFailed  LoadState = "failed"
)

// Zoom limits and step. Zoom requests outside the range are clamped,
// never rejected.
const (
	MinZoom     = 0.5
	MaxZoom     = 3.0
	ZoomStep    = 0.25
	DefaultZoom = 1.0
)

// DecodedDocument is the seam to the opaque rendering engine: a decoded,
// paginated document that can render a page to a bitmap at a scale.
type DecodedDocument interface {
	PageCount() int
	// PageWidth returns the native width of a page in points.
	PageWidth(page int) (float64, error)
	// RenderPage rasterizes a page at the given scale. Implementations
	// without a raster engine return an error.
	RenderPage(page int, scale float64) ([]byte, error)
	Close()
}

// Decoder turns raw document bytes into a DecodedDocument.
type Decoder interface {
	Decode(data []byte) (DecodedDocument, error)
}

// OpenDocument is the per-tab view state. decoded is owned exclusively
// by the manager and released when the tab closes.
type OpenDocument struct {
	DocumentID  string    `json:"document_id"`
	DisplayName string    `json:"display_name"`
	CurrentPage int       `json:"current_page"`
	PageCount   int       `json:"page_count"`
	ZoomScale   float64   `json:"zoom_scale"`
	State       LoadState `json:"state"`
	LoadError   string    `json:"load_error,omitempty"`

	decoded    DecodedDocument
	generation uint64
}

// Snapshot is a copy of an OpenDocument's visible state, safe to hand
// out of the manager.
type Snapshot struct {
	DocumentID  string    `json:"document_id"`
	DisplayName string    `json:"display_name"`
	CurrentPage int       `json:"current_page"`
	PageCount   int       `json:"page_count"`
	ZoomScale   float64   `json:"zoom_scale"`
	State       LoadState `json:"state"`
	LoadError   string    `json:"load_error,omitempty"`
	Active      bool      `json:"active"`
}

// DocumentFetcher resolves document bytes by identifier. Satisfied by
// the fetch coordinator.
type DocumentFetcher interface {
	GetDocument(ctx context.Context, documentID string) (*cache.DocumentBytes, error)
}

func (d *OpenDocument) snapshot(active bool) Snapshot {
	return Snapshot{
		DocumentID:  d.DocumentID,
		DisplayName: d.DisplayName,
		CurrentPage: d.CurrentPage,
		PageCount:   d.PageCount,
		ZoomScale:   d.ZoomScale,
		State:       d.State,
		LoadError:   d.LoadError,
		Active:      active,
	}
}
