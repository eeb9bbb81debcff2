package fetcher

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/reviewdeck/docrelay/internal/cache"
	"github.com/reviewdeck/docrelay/internal/config"
	"github.com/reviewdeck/docrelay/pkg/logging"
)

// ErrNotConfigured is returned when no credential is saved or the
// integration is disabled. No network call is made in that state.
var ErrNotConfigured = errors.New("not configured: set an API key and enable the integration")

// SettingsSource supplies the current settings record.
type SettingsSource interface {
	Get(ctx context.Context) (*config.Settings, error)
}

// DocumentSource retrieves document bytes from the remote API.
type DocumentSource interface {
	FetchDocument(ctx context.Context, documentID string, settings config.Settings) (*cache.DocumentBytes, error)
}

// Coordinator resolves "get document by id" through the settings gate,
// the TTL cache, and finally the remote API. Within a TTL window at most
// one network fetch is issued per identifier: cache hits short-circuit,
// and concurrent misses for the same identifier are collapsed into a
// single in-flight request.
type Coordinator struct {
	settings SettingsSource
	cache    *cache.Cache
	remote   DocumentSource
	metrics  *MetricsCollector
	group    singleflight.Group
}

// NewCoordinator wires the coordinator with its collaborators. A nil
// metrics collector is replaced with a fresh one.
func NewCoordinator(settings SettingsSource, documentCache *cache.Cache, remote DocumentSource, metrics *MetricsCollector) *Coordinator {
	if metrics == nil {
		metrics = NewMetricsCollector()
	}
	return &Coordinator{
		settings: settings,
		cache:    documentCache,
		remote:   remote,
		metrics:  metrics,
	}
}

// GetDocument returns the bytes for documentID, from cache when fresh.
// Remote failures are propagated untouched and never cached; retry is the
// caller's decision.
func (c *Coordinator) GetDocument(ctx context.Context, documentID string) (*cache.DocumentBytes, error) {
	logger := logging.GetLogger("fetcher")
	start := time.Now()

	settings, err := c.settings.Get(ctx)
	if err != nil || !settings.Configured() {
		c.metrics.Record(FetchMetric{DocumentID: documentID, Duration: time.Since(start), Error: ErrNotConfigured})
		return nil, ErrNotConfigured
	}

	if doc, ok := c.cache.Get(documentID); ok {
		logger.Debug().Str("document_id", documentID).Msg("Cache hit")
		c.metrics.Record(FetchMetric{DocumentID: documentID, Duration: time.Since(start), CacheHit: true, Success: true})
		return doc, nil
	}

	v, err, _ := c.group.Do(documentID, func() (interface{}, error) {
		doc, err := c.remote.FetchDocument(ctx, documentID, *settings)
		if err != nil {
			return nil, err
		}
		c.cache.Put(documentID, *doc)
		return doc, nil
	})
	if err != nil {
		logger.Warn().Err(err).Str("document_id", documentID).Msg("Document fetch failed")
		c.metrics.Record(FetchMetric{DocumentID: documentID, Duration: time.Since(start), Error: err})
		return nil, err
	}

	c.metrics.Record(FetchMetric{DocumentID: documentID, Duration: time.Since(start), Success: true})
	return v.(*cache.DocumentBytes), nil
}

// Metrics exposes the coordinator's metrics collector.
func (c *Coordinator) Metrics() *MetricsCollector {
	return c.metrics
}
