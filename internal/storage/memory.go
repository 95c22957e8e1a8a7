// Package storage provides the page-level storage components for pagedb.
package storage

import (
	"fmt"
	"sync"
)

// MemoryPager is a map-backed Pager. Pages are copied on read and write to
// behave like a disk: mutating a returned page never changes the store.
type MemoryPager struct {
	mu       sync.Mutex
	pages    map[Offset][]byte
	next     uint64 // next page number to hand out; page 0 is reserved
	freeList *FreeList

	// FailOn, when set, is consulted before every operation and its error
	// is returned wrapped in ErrIO. Used to simulate device failures.
	FailOn func(op string, off Offset) error
}

// NewMemoryPager creates an empty in-memory pager.
func NewMemoryPager() *MemoryPager {
	return &MemoryPager{
		pages:    make(map[Offset][]byte),
		next:     1,
		freeList: NewFreeList(),
	}
}

func (m *MemoryPager) fail(op string, off Offset) error {
	if m.FailOn == nil {
		return nil
	}
	if err := m.FailOn(op, off); err != nil {
		return fmt.Errorf("%w: %s at offset %d: %w", ErrIO, op, off, err)
	}
	return nil
}

func (m *MemoryPager) checkAllocated(off Offset) error {
	if !off.IsAligned() {
		return fmt.Errorf("%w: %w: %d", ErrIO, ErrMisalignedOffset, off)
	}
	if _, ok := m.pages[off]; !ok {
		return fmt.Errorf("%w: %w: offset %d", ErrIO, ErrPageNotAllocated, off)
	}
	return nil
}

// ReadPage returns a copy of the page stored at off.
func (m *MemoryPager) ReadPage(off Offset) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("read", off); err != nil {
		return nil, err
	}
	if err := m.checkAllocated(off); err != nil {
		return nil, err
	}
	return PageFromBytes(m.pages[off])
}

// WritePage stores a copy of page at off.
func (m *MemoryPager) WritePage(off Offset, page *Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("write", off); err != nil {
		return err
	}
	if err := m.checkAllocated(off); err != nil {
		return err
	}
	buf := make([]byte, PageSize)
	copy(buf, page.Bytes())
	m.pages[off] = buf
	return nil
}

// AllocatePage hands out a released Offset if one exists, otherwise a new one.
func (m *MemoryPager) AllocatePage() (Offset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("allocate", NilOffset); err != nil {
		return NilOffset, err
	}

	var off Offset
	if pageNum, ok := m.freeList.Pop(); ok {
		off = OffsetForPage(pageNum)
	} else {
		off = OffsetForPage(m.next)
		m.next++
	}
	m.pages[off] = make([]byte, PageSize)
	return off, nil
}

// ReleasePage drops the page at off and queues the Offset for reuse.
func (m *MemoryPager) ReleasePage(off Offset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("release", off); err != nil {
		return err
	}
	if off == NilOffset {
		return fmt.Errorf("%w: %w", ErrIO, ErrCannotFreeHeader)
	}
	if err := m.checkAllocated(off); err != nil {
		return err
	}
	delete(m.pages, off)
	m.freeList.Push(off.PageNumber())
	return nil
}

// AllocatedPages returns the number of live pages.
func (m *MemoryPager) AllocatedPages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

// Corrupt overwrites the raw bytes of an allocated page. Test helper for
// simulating on-disk damage; buf may be shorter than PageSize to simulate
// truncation.
func (m *MemoryPager) Corrupt(off Offset, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkAllocated(off); err != nil {
		return err
	}
	data := make([]byte, len(buf))
	copy(data, buf)
	m.pages[off] = data
	return nil
}
