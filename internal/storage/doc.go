// Package storage provides the page-level storage components for pagedb,
// a small embedded key-value store built on a paged B+Tree.
//
// # Pages
//
// A Page is a fixed PageSize buffer with big-endian integer and
// fixed-width field accessors. It has no knowledge of what it stores.
//
// # Pagers
//
// The Pager interface maps an Offset (page number × PageSize) to a page:
//
//	type Pager interface {
//	    ReadPage(off Offset) (*Page, error)
//	    WritePage(off Offset, page *Page) error
//	    AllocatePage() (Offset, error)
//	    ReleasePage(off Offset) error
//	}
//
// Three implementations are provided:
//
//   - PageManager: file-backed, with a header page and a persisted free list
//   - MemoryPager: map-backed, with fault injection for tests
//   - CachedPager: a write-through LRU cache in front of another Pager
//
// Every Pager failure wraps ErrIO.
//
// # File Layout
//
// Page 0 holds the FileHeader (magic, version, page size, page count,
// free list head and the tree root). Free pages are kept in memory and
// written to a chain of free list pages on Close.
package storage
