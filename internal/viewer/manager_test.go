package viewer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewdeck/docrelay/internal/cache"
)

type fakeFetcher struct {
	docs  map[string][]byte
	err   error
	calls int
}

func (f *fakeFetcher) GetDocument(ctx context.Context, documentID string) (*cache.DocumentBytes, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("no such document %q", documentID)
	}
	return &cache.DocumentBytes{Bytes: data, SuggestedName: documentID + ".pdf"}, nil
}

type fakeDecoded struct {
	pages  int
	width  float64
	closed bool
}

func (d *fakeDecoded) PageCount() int { return d.pages }

func (d *fakeDecoded) PageWidth(page int) (float64, error) {
	if page < 1 || page > d.pages {
		return 0, fmt.Errorf("page %d out of range", page)
	}
	return d.width, nil
}

func (d *fakeDecoded) RenderPage(page int, scale float64) ([]byte, error) {
	return []byte(fmt.Sprintf("bitmap:%d@%.2f", page, scale)), nil
}

func (d *fakeDecoded) Close() { d.closed = true }

type fakeDecoder struct {
	pages   int
	width   float64
	err     error
	decoded []*fakeDecoded
}

func (f *fakeDecoder) Decode(data []byte) (DecodedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	d := &fakeDecoded{pages: f.pages, width: f.width}
	f.decoded = append(f.decoded, d)
	return d, nil
}

func newTestManager() (*Manager, *fakeFetcher, *fakeDecoder) {
	fetcher := &fakeFetcher{docs: map[string][]byte{
		"abc": []byte("%PDF abc"),
		"def": []byte("%PDF def"),
	}}
	decoder := &fakeDecoder{pages: 5, width: 600}
	return NewManager(fetcher, decoder), fetcher, decoder
}

func TestOpenDocumentBecomesReady(t *testing.T) {
	m, _, _ := newTestManager()

	snap, err := m.Open(context.Background(), "abc", 2, "My Doc")
	require.NoError(t, err)

	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, 5, snap.PageCount)
	assert.Equal(t, 2, snap.CurrentPage)
	assert.Equal(t, "My Doc", snap.DisplayName)
	assert.Equal(t, DefaultZoom, snap.ZoomScale)
	assert.True(t, snap.Active)
}

func TestOpenUsesSuggestedNameWhenBlank(t *testing.T) {
	m, _, _ := newTestManager()

	snap, err := m.Open(context.Background(), "abc", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "abc.pdf", snap.DisplayName)
}

func TestOpenExistingTabReactivates(t *testing.T) {
	m, fetcher, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Open(ctx, "abc", 1, "")
	require.NoError(t, err)
	_, err = m.Open(ctx, "def", 1, "")
	require.NoError(t, err)

	snap, err := m.Open(ctx, "abc", 4, "")
	require.NoError(t, err)
	assert.True(t, snap.Active)
	assert.Equal(t, 4, snap.CurrentPage)
	assert.Equal(t, 2, fetcher.calls, "reopening must not refetch")
}

func TestOpenFailureIsRecoverable(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("Failed to fetch document: 404 - not found")}
	decoder := &fakeDecoder{pages: 5, width: 600}
	m := NewManager(fetcher, decoder)
	ctx := context.Background()

	snap, err := m.Open(ctx, "abc", 1, "")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Contains(t, snap.LoadError, "404 - not found")

	// The remote recovers; an explicit retry re-enters Loading and lands Ready
	fetcher.err = nil
	fetcher.docs = map[string][]byte{"abc": []byte("%PDF abc")}

	snap, err = m.Retry(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, StateReady, snap.State)
	assert.Empty(t, snap.LoadError)
}

func TestRetryOnReadyTabIsNoOp(t *testing.T) {
	m, fetcher, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Open(ctx, "abc", 1, "")
	require.NoError(t, err)

	snap, err := m.Retry(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, 1, fetcher.calls)
}

func TestPageNavigationClamped(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()
	_, err := m.Open(ctx, "abc", 1, "")
	require.NoError(t, err)

	tests := []struct {
		name string
		page int
		want int
	}{
		{name: "zero clamps to first", page: 0, want: 1},
		{name: "negative clamps to first", page: -3, want: 1},
		{name: "in range", page: 3, want: 3},
		{name: "beyond last clamps to last", page: 99, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := m.GoToPage("abc", tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.CurrentPage)
		})
	}
}

func TestNextPrevPageClamped(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()
	_, err := m.Open(ctx, "abc", 5, "")
	require.NoError(t, err)

	snap, err := m.NextPage("abc")
	require.NoError(t, err)
	assert.Equal(t, 5, snap.CurrentPage, "next at the last page stays put")

	_, err = m.GoToPage("abc", 1)
	require.NoError(t, err)
	snap, err = m.PrevPage("abc")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.CurrentPage, "prev at the first page stays put")
}

func TestZoomClamped(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()
	_, err := m.Open(ctx, "abc", 1, "")
	require.NoError(t, err)

	// Repeated zoom-in saturates at the maximum
	var snap Snapshot
	for i := 0; i < 20; i++ {
		snap, err = m.ZoomIn("abc")
		require.NoError(t, err)
	}
	assert.Equal(t, MaxZoom, snap.ZoomScale)

	for i := 0; i < 20; i++ {
		snap, err = m.ZoomOut("abc")
		require.NoError(t, err)
	}
	assert.Equal(t, MinZoom, snap.ZoomScale)

	snap, err = m.SetZoom("abc", 10.0)
	require.NoError(t, err)
	assert.Equal(t, MaxZoom, snap.ZoomScale)

	snap, err = m.SetZoom("abc", 0.01)
	require.NoError(t, err)
	assert.Equal(t, MinZoom, snap.ZoomScale)
}

func TestFitToWidth(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()
	_, err := m.Open(ctx, "abc", 1, "")
	require.NoError(t, err)

	// 900 container / 600 native = 1.5
	snap, err := m.FitToWidth("abc", 900)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, snap.ZoomScale, 1e-9)

	// Very narrow containers clamp at the minimum
	snap, err = m.FitToWidth("abc", 60)
	require.NoError(t, err)
	assert.Equal(t, MinZoom, snap.ZoomScale)

	_, err = m.FitToWidth("abc", 0)
	assert.Error(t, err)
}

func TestCloseReleasesOnlyThatTab(t *testing.T) {
	m, _, decoder := newTestManager()
	ctx := context.Background()

	_, err := m.Open(ctx, "abc", 2, "")
	require.NoError(t, err)
	_, err = m.Open(ctx, "def", 3, "")
	require.NoError(t, err)
	require.Len(t, decoder.decoded, 2)

	require.NoError(t, m.Close("def"))

	assert.True(t, decoder.decoded[1].closed, "closed tab's handle must be released")
	assert.False(t, decoder.decoded[0].closed, "other tab's handle must be untouched")

	snap, ok := m.Get("abc")
	require.True(t, ok)
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, 2, snap.CurrentPage)
	assert.True(t, snap.Active, "remaining tab becomes active")

	_, ok = m.Get("def")
	assert.False(t, ok)
}

func TestCloseUnknownTab(t *testing.T) {
	m, _, _ := newTestManager()
	assert.Error(t, m.Close("ghost"))
}

func TestStaleLoadResultIsDiscarded(t *testing.T) {
	m, _, decoder := newTestManager()
	ctx := context.Background()

	_, err := m.Open(ctx, "abc", 1, "")
	require.NoError(t, err)
	require.NoError(t, m.Close("abc"))

	// A load completing after the tab closed must not resurrect it.
	m.load(ctx, "abc", 1)

	_, ok := m.Get("abc")
	assert.False(t, ok)

	// The decode produced by the stale load is released, not leaked.
	require.Len(t, decoder.decoded, 2)
	assert.True(t, decoder.decoded[1].closed)
}

func TestRenderPageUsesCurrentState(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Open(ctx, "abc", 3, "")
	require.NoError(t, err)
	_, err = m.SetZoom("abc", 1.5)
	require.NoError(t, err)

	bitmap, err := m.RenderPage("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("bitmap:3@1.50"), bitmap)

	// Same page and scale reproduce the same bitmap
	again, err := m.RenderPage("abc")
	require.NoError(t, err)
	assert.Equal(t, bitmap, again)
}

func TestRenderPageNotReady(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("unreachable")}
	m := NewManager(fetcher, &fakeDecoder{pages: 1, width: 600})

	_, err := m.Open(context.Background(), "abc", 1, "")
	require.NoError(t, err)

	_, err = m.RenderPage("abc")
	assert.Error(t, err)
}

func TestListDocuments(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Open(ctx, "abc", 1, "First")
	require.NoError(t, err)
	_, err = m.Open(ctx, "def", 1, "Second")
	require.NoError(t, err)

	infos := m.ListDocuments()
	require.Len(t, infos, 2)
	assert.Equal(t, "abc", infos[0].DocumentID)
	assert.False(t, infos[0].Active)
	assert.Equal(t, "def", infos[1].DocumentID)
	assert.True(t, infos[1].Active)
	assert.Equal(t, "ready", infos[0].State)
}

func TestActivate(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Open(ctx, "abc", 1, "")
	require.NoError(t, err)
	_, err = m.Open(ctx, "def", 1, "")
	require.NoError(t, err)

	snap, err := m.Activate("abc")
	require.NoError(t, err)
	assert.True(t, snap.Active)

	active, ok := m.ActiveDocument()
	require.True(t, ok)
	assert.Equal(t, "abc", active.DocumentID)

	_, err = m.Activate("ghost")
	assert.Error(t, err)
}

func TestDecodeFailureMarksFailed(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string][]byte{"abc": []byte("not a pdf")}}
	decoder := &fakeDecoder{err: errors.New("failed to parse PDF")}
	m := NewManager(fetcher, decoder)

	snap, err := m.Open(context.Background(), "abc", 1, "")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Contains(t, snap.LoadError, "failed to parse PDF")
}
