package fetcher

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FetchMetric records one getDocument resolution.
type FetchMetric struct {
	DocumentID string
	Duration   time.Duration
	CacheHit   bool
	Success    bool
	Error      error
}

// MetricsSummary aggregates fetch metrics for the stats endpoint.
type MetricsSummary struct {
	Requests      int64         `json:"requests"`
	CacheHits     int64         `json:"cache_hits"`
	RemoteFetches int64         `json:"remote_fetches"`
	Failures      int64         `json:"failures"`
	TotalDuration time.Duration `json:"total_duration_ns"`
}

// MetricsCollector accumulates fetch metrics in memory.
type MetricsCollector struct {
	mu      sync.Mutex
	summary MetricsSummary
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// Record adds one metric to the running summary.
func (m *MetricsCollector) Record(metric FetchMetric) {
	m.mu.Lock()
	m.summary.Requests++
	m.summary.TotalDuration += metric.Duration
	if metric.CacheHit {
		m.summary.CacheHits++
	} else if metric.Success {
		m.summary.RemoteFetches++
	}
	if !metric.Success {
		m.summary.Failures++
	}
	m.mu.Unlock()

	logger := log.With().
		Str("document_id", metric.DocumentID).
		Dur("duration", metric.Duration).
		Bool("cache_hit", metric.CacheHit).
		Bool("success", metric.Success).
		Logger()
	if metric.Error != nil {
		logger = logger.With().Err(metric.Error).Logger()
	}
	logger.Debug().Msg("Fetch metric recorded")
}

// Summary returns a copy of the accumulated counters.
func (m *MetricsCollector) Summary() MetricsSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}
