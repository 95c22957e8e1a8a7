// Package storage provides the page-level storage components for pagedb.
package storage

import "container/list"

// LRUCache holds page copies keyed by Offset and evicts the least recently
// used entry once it is full. It is not safe for concurrent use.
type LRUCache struct {
	capacity int
	list     *list.List               // front is most recently used
	entries  map[Offset]*list.Element // Map for O(1) lookup
}

// lruEntry represents an entry in the LRU cache.
type lruEntry struct {
	off  Offset
	page *Page
}

// NewLRUCache creates an LRU cache holding at most capacity pages.
func NewLRUCache(capacity int) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		list:     list.New(),
		entries:  make(map[Offset]*list.Element),
	}
}

// Get returns the cached page for off and marks it recently used.
func (c *LRUCache) Get(off Offset) (*Page, bool) {
	elem, ok := c.entries[off]
	if !ok {
		return nil, false
	}
	c.list.MoveToFront(elem)
	return elem.Value.(*lruEntry).page, true
}

// Put stores page under off, evicting the least recently used entry if the
// cache is full. It returns the evicted Offset, if any.
func (c *LRUCache) Put(off Offset, page *Page) (Offset, bool) {
	if c.capacity <= 0 {
		return NilOffset, false
	}

	if elem, ok := c.entries[off]; ok {
		elem.Value.(*lruEntry).page = page
		c.list.MoveToFront(elem)
		return NilOffset, false
	}

	c.entries[off] = c.list.PushFront(&lruEntry{off: off, page: page})
	if c.list.Len() <= c.capacity {
		return NilOffset, false
	}

	// Back of the list is the least recently used
	victim := c.list.Back()
	entry := victim.Value.(*lruEntry)
	c.list.Remove(victim)
	delete(c.entries, entry.off)
	return entry.off, true
}

// Remove removes a page from the LRU cache.
func (c *LRUCache) Remove(off Offset) {
	if elem, exists := c.entries[off]; exists {
		c.list.Remove(elem)
		delete(c.entries, off)
	}
}

// Contains checks if a page is in the LRU cache.
func (c *LRUCache) Contains(off Offset) bool {
	_, exists := c.entries[off]
	return exists
}

// Len returns the number of entries in the LRU cache.
func (c *LRUCache) Len() int {
	return c.list.Len()
}

// Clear removes all entries from the LRU cache.
func (c *LRUCache) Clear() {
	c.list.Init()
	c.entries = make(map[Offset]*list.Element)
}

// Keys returns all cached Offsets, ordered from most to least recently used.
func (c *LRUCache) Keys() []Offset {
	result := make([]Offset, 0, c.list.Len())
	for elem := c.list.Front(); elem != nil; elem = elem.Next() {
		result = append(result, elem.Value.(*lruEntry).off)
	}
	return result
}
