package cache

import (
	"context"
	"sync"
	"time"

	"github.com/reviewdeck/docrelay/pkg/logging"
)

const (
	// DefaultTTL is how long a fetched document may be served from memory.
	DefaultTTL = 5 * time.Minute
	// DefaultSweepInterval is how often expired entries are evicted.
	DefaultSweepInterval = 60 * time.Second
)

// DocumentBytes is the raw payload of a fetched document plus the name
// the remote API suggested for it.
type DocumentBytes struct {
	Bytes         []byte `json:"-"`
	SuggestedName string `json:"suggested_name"`
}

type entry struct {
	doc       DocumentBytes
	fetchedAt time.Time
}

// Stats reports cache occupancy and traffic counters.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Evicted int64 `json:"evicted"`
}

// Cache memoizes document bytes per identifier with a fixed TTL.
// Entries past the TTL are never returned and are removed by a periodic
// sweep so memory does not grow unbounded without read traffic.
// Contents are process-local and lost on restart.
type Cache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	hits    int64
	misses  int64
	evicted int64
}

// New creates a cache with the given TTL. A non-positive TTL falls back
// to DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached bytes for documentID, or miss if the entry is
// absent or older than the TTL.
func (c *Cache) Get(documentID string) (*DocumentBytes, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[documentID]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		c.misses++
		return nil, false
	}

	c.hits++
	doc := e.doc
	return &doc, true
}

// Put stores the bytes for documentID, replacing any prior entry and
// stamping the fetch time.
func (c *Cache) Put(documentID string, doc DocumentBytes) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[documentID] = entry{doc: doc, fetchedAt: c.now()}
}

// Sweep removes every entry whose age meets or exceeds the TTL as of now.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	c.evicted += int64(removed)
	return removed
}

// Start runs the periodic sweep until ctx is cancelled.
func (c *Cache) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	logger := logging.GetLogger("cache")
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if removed := c.Sweep(now); removed > 0 {
					logger.Debug().Int("removed", removed).Msg("Swept expired cache entries")
				}
			case <-ctx.Done():
				logger.Debug().Msg("Cache sweep stopped")
				return
			}
		}
	}()
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetStats returns a snapshot of cache counters.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		Evicted: c.evicted,
	}
}
