// Package cache stores successful scrape results keyed by request
// fingerprint. Entries expire by TTL and the table is LRU-bounded. Only
// successes are stored; failures always re-execute.
package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/types"
)

type entry struct {
	fp       string
	result   types.ScrapeResult
	storedAt time.Time
}

// Cache is a TTL + LRU result cache.
type Cache struct {
	cfg    config.CacheConfig
	logger *slog.Logger
	clock  func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used

	hits   int64
	misses int64
}

// New creates the result cache.
func New(cfg config.CacheConfig, logger *slog.Logger) *Cache {
	return &Cache{
		cfg:     cfg,
		logger:  logger.With("component", "cache"),
		clock:   time.Now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns a copy of the cached result for a fingerprint. The copy is
// marked Cached so callers can tell replay from a fresh fetch.
func (c *Cache) Get(fp string) (*types.ScrapeResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[fp]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if c.clock().Sub(e.storedAt) >= c.cfg.TTL {
		c.order.Remove(el)
		delete(c.entries, fp)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++

	out := e.result
	out.Cached = true
	return &out, true
}

// Put stores a successful result. Failed results are ignored so errors
// are never served from cache.
func (c *Cache) Put(fp string, result *types.ScrapeResult) {
	if result == nil || result.Status != types.StatusSuccess {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[fp]; ok {
		e := el.Value.(*entry)
		e.result = *result
		e.storedAt = c.clock()
		c.order.MoveToFront(el)
		return
	}

	for c.cfg.MaxEntries > 0 && len(c.entries) >= c.cfg.MaxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).fp)
	}

	el := c.order.PushFront(&entry{fp: fp, result: *result, storedAt: c.clock()})
	c.entries[fp] = el
}

// Invalidate drops one fingerprint.
func (c *Cache) Invalidate(fp string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[fp]; ok {
		c.order.Remove(el)
		delete(c.entries, fp)
	}
}

// Stats returns hit/miss counters and the current size.
func (c *Cache) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries)
}
