// Package storage provides the page-level storage components for pagedb.
package storage

import (
	"sync"
	"sync/atomic"
)

// CachedPager wraps another Pager with a write-through LRU page cache.
// Reads hit the cache first; writes go to the underlying pager and, only
// when that succeeds, to the cache. Callers always receive copies.
type CachedPager struct {
	mu    sync.Mutex
	inner Pager
	lru   *LRUCache

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ Pager = (*CachedPager)(nil)

// NewCachedPager wraps inner with a cache of at most capacity pages.
// A capacity of zero or less disables caching.
func NewCachedPager(inner Pager, capacity int) *CachedPager {
	return &CachedPager{
		inner: inner,
		lru:   NewLRUCache(capacity),
	}
}

// ReadPage returns a copy of the page at off.
func (c *CachedPager) ReadPage(off Offset) (*Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if page, ok := c.lru.Get(off); ok {
		c.hits.Add(1)
		return page.Clone(), nil
	}
	c.misses.Add(1)

	page, err := c.inner.ReadPage(off)
	if err != nil {
		return nil, err
	}
	// Truncated pages are never cached so they keep failing the same way.
	if !page.IsTruncated() {
		c.lru.Put(off, page.Clone())
	}
	return page, nil
}

// WritePage writes through to the underlying pager.
func (c *CachedPager) WritePage(off Offset, page *Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.inner.WritePage(off, page); err != nil {
		c.lru.Remove(off)
		return err
	}
	c.lru.Put(off, page.Clone())
	return nil
}

// AllocatePage allocates from the underlying pager.
func (c *CachedPager) AllocatePage() (Offset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	off, err := c.inner.AllocatePage()
	if err != nil {
		return NilOffset, err
	}
	c.lru.Remove(off)
	return off, nil
}

// ReleasePage evicts off and releases it in the underlying pager.
func (c *CachedPager) ReleasePage(off Offset) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(off)
	return c.inner.ReleasePage(off)
}

// Inner returns the wrapped pager.
func (c *CachedPager) Inner() Pager {
	return c.inner
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits     uint64
	Misses   uint64
	Resident int
}

// Stats returns hit/miss counters and the number of cached pages.
func (c *CachedPager) Stats() CacheStats {
	c.mu.Lock()
	resident := c.lru.Len()
	c.mu.Unlock()

	return CacheStats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Resident: resident,
	}
}
