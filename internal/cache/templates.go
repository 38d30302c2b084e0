package cache

import (
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// MaxTemplateEntries bounds the resized-template cache.
const MaxTemplateEntries = 500

// TemplateKey identifies one pre-scaled template buffer.
type TemplateKey struct {
	TemplateID string
	Width      int
	Height     int
}

// TemplateCache holds templates pre-scaled to the cell dimensions being
// matched against. Eviction is strict insertion-order FIFO, not LRU: reads
// never refresh an entry's position, so the oldest-inserted entry is always
// the one evicted when the bound is hit. Match passes sweep the whole
// catalog per cell size, so recency carries no signal here and FIFO keeps
// eviction deterministic.
type TemplateCache struct {
	mu        sync.Mutex
	max       int
	entries   map[TemplateKey]*image.NRGBA
	order     []TemplateKey // insertion order, oldest first
	evictions uint64
}

// NewTemplateCache creates a template cache holding at most max entries.
// A non-positive max falls back to MaxTemplateEntries.
func NewTemplateCache(max int) *TemplateCache {
	if max <= 0 {
		max = MaxTemplateEntries
	}
	return &TemplateCache{
		max:     max,
		entries: make(map[TemplateKey]*image.NRGBA, max),
	}
}

// Get returns the cached buffer for a key, if present.
func (c *TemplateCache) Get(key TemplateKey) (*image.NRGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.entries[key]
	return img, ok
}

// Put inserts a buffer under the key, evicting the oldest-inserted entry if
// the cache is full. Re-inserting an existing key replaces the buffer
// without changing the key's position in the eviction order.
func (c *TemplateCache) Put(key TemplateKey, img *image.NRGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.entries[key] = img
		return
	}
	if len(c.entries) >= c.max {
		c.evictOldestLocked()
	}
	c.entries[key] = img
	c.order = append(c.order, key)
}

// GetOrResize returns the template scaled to the requested dimensions,
// computing and caching it on miss. Lanczos resampling matches what the
// match passes expect from reference templates.
func (c *TemplateCache) GetOrResize(templateID string, src image.Image, width, height int) *image.NRGBA {
	key := TemplateKey{TemplateID: templateID, Width: width, Height: height}
	if img, ok := c.Get(key); ok {
		return img
	}
	resized := imaging.Resize(src, width, height, imaging.Lanczos)
	c.Put(key, resized)
	return resized
}

// EvictOldest removes the single oldest-inserted entry. No-op when empty.
func (c *TemplateCache) EvictOldest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictOldestLocked()
}

func (c *TemplateCache) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			c.evictions++
			return
		}
	}
}

// Len returns the number of cached buffers.
func (c *TemplateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Evictions returns the cumulative eviction count.
func (c *TemplateCache) Evictions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

// Reset clears all cached buffers.
func (c *TemplateCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[TemplateKey]*image.NRGBA, c.max)
	c.order = nil
	c.mu.Unlock()
}
