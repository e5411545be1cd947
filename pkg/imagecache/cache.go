// Package imagecache is a byte-bounded image store with least recently
// accessed eviction and an age based retention sweep.
//
// A Cache owns a mutex scoped to its index. The mutex is never held across
// backend I/O, so a slow disk cannot stall readers of the index, and it is
// never held by callers computing layout or talking to the network.
package imagecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/btree"
)

const (
	// DefaultDiskCeiling is the persisted tier budget.
	DefaultDiskCeiling int64 = 500 << 20
	// DefaultMemoryCeiling is the in-memory tier budget.
	DefaultMemoryCeiling int64 = 300 << 20
	// DefaultRetention is how long an entry may live before a sweep drops it.
	DefaultRetention = 90 * 24 * time.Hour
)

// Options configures a Cache.
type Options struct {
	// Name labels the tier in logs and stats ("memory", "disk").
	Name string
	// CeilingBytes bounds the summed payload size.
	CeilingBytes int64
	// Retention is the age limit applied by Sweep. Zero disables sweeps.
	Retention time.Duration
	// OnError receives persistence failures. They never propagate to
	// TryGet callers.
	OnError func(error)
	Logger  *slog.Logger
	Now     func() time.Time
}

// Stats is a point-in-time view of a Cache.
type Stats struct {
	Name         string `json:"name"`
	Count        int    `json:"count"`
	TotalBytes   int64  `json:"total_bytes"`
	CeilingBytes int64  `json:"ceiling_bytes"`
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Evictions    uint64 `json:"evictions"`
	Expired      uint64 `json:"expired"`
	Corrupt      uint64 `json:"corrupt"`
}

type entry struct {
	key        Key
	name       string
	size       int64
	createdAt  time.Time
	lastAccess time.Time
	// seq breaks ties between equal access times so btree items are unique.
	seq uint64
}

func lessAccess(a, b *entry) bool {
	if !a.lastAccess.Equal(b.lastAccess) {
		return a.lastAccess.Before(b.lastAccess)
	}
	return a.seq < b.seq
}

// Cache is the Bounded Image Cache.
type Cache struct {
	backend Backend
	opts    Options
	log     *slog.Logger

	// putMu serializes inserts, sweeps and clears so evictions and the
	// following write happen as one step. Readers never take it.
	putMu sync.Mutex

	mu    sync.Mutex
	index map[Key]*entry
	lru   *btree.BTreeG[*entry]
	total int64
	seq   uint64

	hits, misses, evictions, expired, corrupt atomic.Uint64
}

// New returns an empty cache over backend. Use Open to adopt blobs already
// present in a persistent backend.
func New(backend Backend, opts Options) *Cache {
	if opts.CeilingBytes <= 0 {
		opts.CeilingBytes = DefaultMemoryCeiling
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = "cache"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		backend: backend,
		opts:    opts,
		log:     logger.With("tier", opts.Name),
		index:   make(map[Key]*entry),
		lru:     btree.NewG[*entry](32, lessAccess),
	}
}

// Open scans backend, rebuilds the index from the stored frames, purges
// corrupt blobs, then applies the ceiling and the retention policy.
func Open(ctx context.Context, backend Backend, opts Options) (*Cache, error) {
	c := New(backend, opts)

	var scanned []*entry
	for name := range backend.Keys(ctx.Done()) {
		key, err := parseStorageKey(name)
		if err != nil {
			c.report(err)
			continue
		}
		raw, err := backend.Read(name)
		if err != nil {
			c.report(fmt.Errorf("imagecache: scan read %s: %w", name, err))
			continue
		}
		payload, created, err := decodeFrame(raw)
		if err != nil {
			c.corrupt.Add(1)
			c.log.Warn("purging corrupt entry", "key", name, "error", err)
			c.erase(name)
			continue
		}
		scanned = append(scanned, &entry{
			key:        key,
			name:       name,
			size:       int64(len(payload)),
			createdAt:  created,
			lastAccess: created,
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("imagecache: open: %w", err)
	}

	var victims []*entry
	c.mu.Lock()
	for _, e := range scanned {
		c.insertLocked(e)
	}
	victims = c.evictLocked(0)
	c.mu.Unlock()
	for _, v := range victims {
		c.erase(v.name)
	}

	if n := c.Sweep(c.opts.Now()); n > 0 {
		c.log.Info("expired entries at open", "count", n)
	}
	c.log.Debug("cache opened", "entries", len(scanned))
	return c, nil
}

// TryGet returns the payload for key and refreshes its access time. The
// returned slice must be treated as read-only.
func (c *Cache) TryGet(key Key) ([]byte, bool) {
	key = key.Normalize()

	c.mu.Lock()
	e, ok := c.index[key]
	if ok {
		c.touchLocked(e)
	}
	c.mu.Unlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	raw, err := c.backend.Read(e.name)
	if err != nil {
		c.misses.Add(1)
		c.forget(e)
		if !isMissing(err) {
			c.report(fmt.Errorf("imagecache: read %s: %w", key, err))
		}
		return nil, false
	}
	payload, _, err := decodeFrame(raw)
	if err == nil && int64(len(payload)) != e.size {
		err = fmt.Errorf("%w: indexed %d bytes, found %d", ErrCorrupt, e.size, len(payload))
	}
	if err != nil {
		c.misses.Add(1)
		if !c.forget(e) {
			// Replaced while we read; the blob belongs to the new entry.
			return nil, false
		}
		c.corrupt.Add(1)
		c.log.Warn("purging corrupt entry", "key", key.String(), "error", err)
		c.erase(e.name)
		return nil, false
	}
	c.hits.Add(1)
	return payload, true
}

// Contains reports whether key is indexed without touching it.
func (c *Cache) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[key.Normalize()]
	return ok
}

// Put stores data under key, evicting least recently accessed entries until
// it fits. The ceiling holds once Put returns.
func (c *Cache) Put(key Key, data []byte) error {
	key = key.Normalize()
	size := int64(len(data))
	if size > c.opts.CeilingBytes {
		return fmt.Errorf("%w: %s is %d bytes, ceiling %d", ErrTooLarge, key, size, c.opts.CeilingBytes)
	}

	c.putMu.Lock()
	defer c.putMu.Unlock()

	name := key.storageKey()
	c.mu.Lock()
	if old, ok := c.index[key]; ok {
		// The write below replaces the blob in place.
		c.removeLocked(old)
	}
	victims := c.evictLocked(size)
	c.mu.Unlock()

	for _, v := range victims {
		c.erase(v.name)
	}

	now := c.opts.Now()
	if err := c.backend.Write(name, encodeFrame(data, now)); err != nil {
		err = fmt.Errorf("imagecache: write %s: %w", key, err)
		c.report(err)
		// The old blob is no longer indexed; do not leave it behind.
		c.erase(name)
		return err
	}

	c.mu.Lock()
	c.insertLocked(&entry{key: key, name: name, size: size, createdAt: now, lastAccess: now})
	c.mu.Unlock()
	return nil
}

// Sweep drops entries created before now minus the retention window,
// regardless of how full the cache is. It returns the number removed.
func (c *Cache) Sweep(now time.Time) int {
	if c.opts.Retention <= 0 {
		return 0
	}
	cutoff := now.Add(-c.opts.Retention)

	c.putMu.Lock()
	defer c.putMu.Unlock()

	var expired []*entry
	c.mu.Lock()
	for _, e := range c.index {
		if e.createdAt.Before(cutoff) {
			expired = append(expired, e)
		}
	}
	for _, e := range expired {
		c.removeLocked(e)
	}
	c.mu.Unlock()

	for _, e := range expired {
		c.erase(e.name)
	}
	c.expired.Add(uint64(len(expired)))
	return len(expired)
}

// Clear drops every entry.
func (c *Cache) Clear() error {
	c.putMu.Lock()
	defer c.putMu.Unlock()

	c.mu.Lock()
	c.index = make(map[Key]*entry)
	c.lru.Clear(false)
	c.total = 0
	c.mu.Unlock()

	if err := c.backend.EraseAll(); err != nil {
		err = fmt.Errorf("imagecache: clear: %w", err)
		c.report(err)
		return err
	}
	return nil
}

// Stats returns counters and occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	count, total := len(c.index), c.total
	c.mu.Unlock()
	return Stats{
		Name:         c.opts.Name,
		Count:        count,
		TotalBytes:   total,
		CeilingBytes: c.opts.CeilingBytes,
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Evictions:    c.evictions.Load(),
		Expired:      c.expired.Load(),
		Corrupt:      c.corrupt.Load(),
	}
}

// RunMaintenance sweeps on every tick until ctx is done.
func (c *Cache) RunMaintenance(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := c.Sweep(c.opts.Now()); n > 0 {
				c.log.Info("retention sweep", "expired", n)
			}
		}
	}
}

// evictLocked removes least recently accessed entries until incoming more
// bytes fit under the ceiling and returns them for erasure.
func (c *Cache) evictLocked(incoming int64) []*entry {
	var victims []*entry
	for c.total+incoming > c.opts.CeilingBytes {
		v, ok := c.lru.Min()
		if !ok {
			break
		}
		c.removeLocked(v)
		victims = append(victims, v)
	}
	c.evictions.Add(uint64(len(victims)))
	return victims
}

func (c *Cache) insertLocked(e *entry) {
	if old, ok := c.index[e.key]; ok {
		c.removeLocked(old)
	}
	c.seq++
	e.seq = c.seq
	c.index[e.key] = e
	c.lru.ReplaceOrInsert(e)
	c.total += e.size
}

func (c *Cache) removeLocked(e *entry) {
	c.lru.Delete(e)
	delete(c.index, e.key)
	c.total -= e.size
}

func (c *Cache) touchLocked(e *entry) {
	c.lru.Delete(e)
	c.seq++
	e.seq = c.seq
	if now := c.opts.Now(); now.After(e.lastAccess) {
		e.lastAccess = now
	}
	c.lru.ReplaceOrInsert(e)
}

// forget drops e from the index if it is still the current entry for its
// key. It reports whether anything was removed.
func (c *Cache) forget(e *entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.index[e.key]; ok && cur == e {
		c.removeLocked(e)
		return true
	}
	return false
}

func (c *Cache) erase(name string) {
	if err := c.backend.Erase(name); err != nil && !isMissing(err) {
		c.report(fmt.Errorf("imagecache: erase %s: %w", name, err))
	}
}

func (c *Cache) report(err error) {
	if c.opts.OnError != nil {
		c.opts.OnError(err)
		return
	}
	c.log.Warn("cache storage failure", "error", err)
}
