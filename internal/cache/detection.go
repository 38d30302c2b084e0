// Package cache implements the two recognition caches: a time-bounded
// detection cache keyed by image fingerprint and a size-bounded cache of
// pre-scaled template buffers. Both exist to bound the cost of the
// expensive recognition pipeline, not to improve accuracy.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lootlens/lootlens/internal/match"
)

// DefaultTTL is how long a cached detection result stays valid.
const DefaultTTL = 15 * time.Minute

// DefaultCleanupInterval is how often the background sweep runs.
const DefaultCleanupInterval = 5 * time.Minute

// detectionEntry pairs cached results with their insertion time.
type detectionEntry struct {
	results []match.Result
	stored  time.Time
}

// DetectionCache stores full detection results per image fingerprint with a
// TTL. Equal fingerprints within the TTL window short-circuit the whole
// pipeline.
type DetectionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]detectionEntry
	now     func() time.Time // overridable for tests

	sweepStop chan struct{}
	sweepDone chan struct{}

	hits   uint64
	misses uint64
}

// NewDetectionCache creates an empty detection cache. A non-positive ttl
// falls back to DefaultTTL.
func NewDetectionCache(ttl time.Duration) *DetectionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DetectionCache{
		ttl:     ttl,
		entries: make(map[string]detectionEntry),
		now:     time.Now,
	}
}

// Get returns the cached results for a fingerprint if present and fresh.
// Stale entries are removed on lookup.
func (c *DetectionCache) Get(fingerprint string) ([]match.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[fingerprint]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(entry.stored) >= c.ttl {
		delete(c.entries, fingerprint)
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.results, true
}

// Put stores detection results for a fingerprint, replacing any prior entry.
func (c *DetectionCache) Put(fingerprint string, results []match.Result) {
	c.mu.Lock()
	c.entries[fingerprint] = detectionEntry{results: results, stored: c.now()}
	c.mu.Unlock()
}

// CleanupStale removes all expired entries and reports how many were purged.
func (c *DetectionCache) CleanupStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	purged := 0
	for fp, entry := range c.entries {
		if now.Sub(entry.stored) >= c.ttl {
			delete(c.entries, fp)
			purged++
		}
	}
	return purged
}

// Len returns the number of cached entries, including any not yet swept.
func (c *DetectionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cumulative hit and miss counts.
func (c *DetectionCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// StartPeriodicCleanup launches a background sweep at the given interval.
// Calling it while a sweep is already running is a no-op. A non-positive
// interval falls back to DefaultCleanupInterval.
func (c *DetectionCache) StartPeriodicCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	c.mu.Lock()
	if c.sweepStop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.sweepStop = stop
	c.sweepDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if purged := c.CleanupStale(); purged > 0 {
					slog.Debug("purged stale detection entries", "count", purged)
				}
			case <-stop:
				return
			}
		}
	}()
}

// StopPeriodicCleanup cancels the background sweep. Safe to call when no
// sweep is running.
func (c *DetectionCache) StopPeriodicCleanup() {
	c.mu.Lock()
	stop, done := c.sweepStop, c.sweepDone
	c.sweepStop, c.sweepDone = nil, nil
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Reset clears all entries and stops any running sweep.
func (c *DetectionCache) Reset() {
	c.StopPeriodicCleanup()
	c.mu.Lock()
	c.entries = make(map[string]detectionEntry)
	c.mu.Unlock()
}
