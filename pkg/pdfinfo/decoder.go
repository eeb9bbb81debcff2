package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/reviewdeck/docrelay/internal/viewer"
)

// ErrRasterUnsupported is returned by RenderPage: rasterization belongs
// to an external engine, not this decoder.
var ErrRasterUnsupported = errors.New("page rasterization is not supported by this decoder")

// DecodeError represents a non-retryable document decode failure.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string {
	return e.Message
}

// Decoder decodes PDF bytes into page-level metadata. It implements the
// viewer's Decoder seam for everything except rasterization.
type Decoder struct{}

// NewDecoder creates a PDF decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses the bytes as a PDF and returns a paginated handle.
func (d *Decoder) Decode(data []byte) (viewer.DecodedDocument, error) {
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return nil, &DecodeError{
			Message: fmt.Sprintf("not a valid PDF file - content starts with: %q", string(data[:min(20, len(data))])),
		}
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &DecodeError{Message: fmt.Sprintf("failed to parse PDF: %v", err)}
	}

	return &document{reader: reader}, nil
}

type document struct {
	reader *pdf.Reader
}

func (doc *document) PageCount() int {
	return doc.reader.NumPage()
}

// PageWidth reads the page's MediaBox width in points, following the
// Parent chain when the box is inherited.
func (doc *document) PageWidth(page int) (float64, error) {
	if page < 1 || page > doc.reader.NumPage() {
		return 0, fmt.Errorf("page %d out of range [1, %d]", page, doc.reader.NumPage())
	}

	p := doc.reader.Page(page)
	if p.V.IsNull() {
		return 0, fmt.Errorf("page %d has no content", page)
	}

	v := p.V
	for !v.IsNull() {
		box := v.Key("MediaBox")
		if !box.IsNull() && box.Len() == 4 {
			width := box.Index(2).Float64() - box.Index(0).Float64()
			if width < 0 {
				width = -width
			}
			return width, nil
		}
		v = v.Key("Parent")
	}

	return 0, fmt.Errorf("page %d has no MediaBox", page)
}

func (doc *document) RenderPage(page int, scale float64) ([]byte, error) {
	return nil, ErrRasterUnsupported
}

func (doc *document) Close() {
	// The reader holds no resources beyond the byte slice.
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
