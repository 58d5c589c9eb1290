// Package cache provides the time-bounded content cache in front of the
// plan store.
//
// A record is valid only while both conditions hold: its age is within
// the TTL, and the file's current modification time equals the one
// observed at load. Either failing forces a re-read. Listings are never
// cached; only single-file content passes through here.
//
// Concurrency: record lookups take a read lock; loads serialize per
// path, so a burst of requests for the same cold file results in one
// disk read and the rest observing the fresh record. Memory is bounded
// by an LRU over record paths; expired records are otherwise replaced
// lazily on next access, no background sweeper runs.
package cache

import (
	"container/list"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/thumbplan/fingerd/internal/logger"
	"github.com/thumbplan/fingerd/pkg/planstore"
)

// Config holds cache tuning knobs.
type Config struct {
	// Enabled turns caching off entirely when false; every request
	// reads from disk.
	Enabled bool `mapstructure:"enabled"`

	// TTL is the maximum age a record may reach before a mandatory
	// re-read, even if the file is unchanged.
	TTL time.Duration `mapstructure:"ttl" validate:"min=0"`

	// MaxEntries bounds the number of records (LRU eviction).
	MaxEntries int `mapstructure:"max_entries" validate:"min=0"`
}

// DefaultConfig returns the production defaults: 5 minute TTL, 1024
// records.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		TTL:        5 * time.Minute,
		MaxEntries: 1024,
	}
}

// record is one cached file body.
type record struct {
	content []byte

	// modified is the file mtime observed at load time; a mismatch on a
	// later stat invalidates the record regardless of age.
	modified time.Time

	// loadedAt is the insertion timestamp for TTL accounting.
	loadedAt time.Time

	lruNode *list.Element
}

// ContentCache caches plan file bodies keyed by absolute path.
type ContentCache struct {
	enabled    bool
	ttl        time.Duration
	maxEntries int

	// now is the clock; replaceable in tests.
	now func() time.Time

	mu      sync.RWMutex
	records map[string]*record
	lru     *list.List

	// loadLocks serializes load-and-insert per path.
	loadLocks sync.Map

	metrics Metrics
}

// New creates a ContentCache. A nil metrics collector selects a no-op.
func New(cfg Config, metrics Metrics) *ContentCache {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if cfg.MaxEntries < 1 {
		cfg.MaxEntries = 1024
	}

	if cfg.Enabled {
		logger.Debug("Content cache enabled: ttl=%v max_entries=%d", cfg.TTL, cfg.MaxEntries)
	} else {
		logger.Debug("Content cache disabled")
	}

	return &ContentCache{
		enabled:    cfg.Enabled,
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
		records:    make(map[string]*record),
		lru:        list.New(),
		metrics:    metrics,
	}
}

// SetClock overrides the cache's clock. Test hook; not for production
// use.
func (c *ContentCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// GetOrLoad returns the content of the file target, from cache when a
// valid record exists, otherwise from disk, together with the
// modification time observed with those bytes. Callers rendering
// metadata alongside the content must use the returned time rather than
// a fresh stat, which could describe a newer version of the file.
//
// A cache hit still performs one stat: the record is only served if the
// file's current modification time matches the recorded one and the
// record is within TTL. Filesystem failures are wrapped as
// planstore.ErrIO (a vanished file included; it existed at resolve
// time, so its disappearance is a serving failure, not a lookup miss).
func (c *ContentCache) GetOrLoad(target planstore.Target) ([]byte, time.Time, error) {
	if !c.enabled {
		return readFile(target)
	}

	info, err := os.Stat(target.Abs)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat %q: %w", target.Rel, planstore.ErrIO)
	}

	if content, modified, ok := c.lookup(target.Abs, info.ModTime()); ok {
		c.metrics.RecordHit()
		return content, modified, nil
	}
	c.metrics.RecordMiss()

	return c.load(target, info.ModTime())
}

// lookup returns a valid record's content and recorded mtime, refreshing
// its LRU position.
func (c *ContentCache) lookup(abs string, currentMtime time.Time) ([]byte, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[abs]
	if !ok {
		return nil, time.Time{}, false
	}
	if c.now().Sub(rec.loadedAt) > c.ttl {
		return nil, time.Time{}, false
	}
	if !rec.modified.Equal(currentMtime) {
		return nil, time.Time{}, false
	}

	c.lru.MoveToFront(rec.lruNode)
	return rec.content, rec.modified, true
}

// load reads the file and inserts a fresh record, serialized per path.
// statMtime is the modification time observed by the caller's stat; it
// is re-checked after acquiring the per-path lock so that concurrent
// callers behind the winner reuse its record instead of re-reading.
func (c *ContentCache) load(target planstore.Target, statMtime time.Time) ([]byte, time.Time, error) {
	value, _ := c.loadLocks.LoadOrStore(target.Abs, &sync.Mutex{})
	pathLock := value.(*sync.Mutex)
	pathLock.Lock()
	defer pathLock.Unlock()

	// Another goroutine may have completed the load while we waited.
	if content, modified, ok := c.lookup(target.Abs, statMtime); ok {
		return content, modified, nil
	}

	start := time.Now()
	content, modified, err := readFile(target)
	c.metrics.RecordLoad(time.Since(start), err)
	if err != nil {
		return nil, time.Time{}, err
	}

	c.insert(target.Abs, content, modified)
	return content, modified, nil
}

// readFile reads the target's bytes and the mtime observed just before
// the read. Taking the stat first means a concurrent writer makes the
// recorded mtime stale rather than ahead of the content, so the next
// request's stat comparison invalidates the record.
func readFile(target planstore.Target) ([]byte, time.Time, error) {
	info, err := os.Stat(target.Abs)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat %q: %w", target.Rel, planstore.ErrIO)
	}

	content, err := os.ReadFile(target.Abs)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read %q: %w", target.Rel, planstore.ErrIO)
	}

	return content, info.ModTime(), nil
}

// insert stores a record, evicting the least recently used one when
// full.
func (c *ContentCache) insert(abs string, content []byte, modified time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.records[abs]; ok {
		existing.content = content
		existing.modified = modified
		existing.loadedAt = c.now()
		c.lru.MoveToFront(existing.lruNode)
		return
	}

	if len(c.records) >= c.maxEntries {
		c.evictOldestLocked()
	}

	rec := &record{
		content:  content,
		modified: modified,
		loadedAt: c.now(),
	}
	rec.lruNode = c.lru.PushFront(abs)
	c.records[abs] = rec

	c.metrics.SetEntries(len(c.records))
}

// evictOldestLocked removes the least recently used record. Caller must
// hold c.mu.
func (c *ContentCache) evictOldestLocked() {
	oldest := c.lru.Back()
	if oldest == nil {
		return
	}
	c.lru.Remove(oldest)

	abs := oldest.Value.(string)
	delete(c.records, abs)
	c.loadLocks.Delete(abs)

	logger.Debug("Evicted cache record: %s", abs)
}

// Invalidate drops the record for a path, if present.
func (c *ContentCache) Invalidate(abs string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[abs]
	if !ok {
		return
	}

	c.lru.Remove(rec.lruNode)
	delete(c.records, abs)
	c.loadLocks.Delete(abs)
	c.metrics.SetEntries(len(c.records))
}

// Len returns the current record count.
func (c *ContentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Clear drops every record. Useful in tests and for operator-forced
// refreshes.
func (c *ContentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make(map[string]*record)
	c.lru = list.New()
	c.loadLocks.Range(func(key, _ any) bool {
		c.loadLocks.Delete(key)
		return true
	})
	c.metrics.SetEntries(0)
}
