// Package storage provides the page-level storage components for pagedb.
package storage

import (
	"sync"

	"github.com/cznic/sortutil"
)

// Free list page layout (big-endian):
//   - Bytes 0-7:   next free list page number (0 if none)
//   - Bytes 8-15:  number of entries on this page
//   - Bytes 16-..: free page numbers, 8 bytes each
const (
	freeListNextOffset  = 0
	freeListCountOffset = 8
	freeListHeaderSize  = 16

	// FreeListEntrySize is the size of each entry in the free list.
	FreeListEntrySize = 8

	// MaxFreeListEntriesPerPage is the number of free page numbers one page holds.
	MaxFreeListEntriesPerPage = (PageSize - freeListHeaderSize) / FreeListEntrySize
)

// FreeList tracks released page numbers in memory. It is persisted to a
// chain of free list pages when the owning PageManager closes.
type FreeList struct {
	head      uint64   // first page of the on-disk chain
	freePages []uint64 // LIFO stack of free page numbers
	mu        sync.RWMutex
}

// NewFreeList creates a new empty FreeList.
func NewFreeList() *FreeList {
	return &FreeList{
		freePages: make([]uint64, 0),
	}
}

// Head returns the first page number of the persisted chain.
func (fl *FreeList) Head() uint64 {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return fl.head
}

// SetHead sets the first page number of the persisted chain.
func (fl *FreeList) SetHead(head uint64) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.head = head
}

// Count returns the number of free pages.
func (fl *FreeList) Count() uint64 {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return uint64(len(fl.freePages))
}

// IsEmpty returns true if there are no free pages.
func (fl *FreeList) IsEmpty() bool {
	return fl.Count() == 0
}

// Push adds a page number to the free list.
func (fl *FreeList) Push(pageNum uint64) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.freePages = append(fl.freePages, pageNum)
}

// Pop removes and returns the most recently freed page number.
// Returns 0 and false if the free list is empty.
func (fl *FreeList) Pop() (uint64, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if len(fl.freePages) == 0 {
		return 0, false
	}

	// LIFO for better locality
	idx := len(fl.freePages) - 1
	pageNum := fl.freePages[idx]
	fl.freePages = fl.freePages[:idx]
	return pageNum, true
}

// Contains checks if a page number is in the free list.
func (fl *FreeList) Contains(pageNum uint64) bool {
	fl.mu.RLock()
	defer fl.mu.RUnlock()

	for _, n := range fl.freePages {
		if n == pageNum {
			return true
		}
	}
	return false
}

// Sorted returns a sorted copy of all free page numbers.
func (fl *FreeList) Sorted() []uint64 {
	fl.mu.RLock()
	defer fl.mu.RUnlock()

	result := make(sortutil.Uint64Slice, len(fl.freePages))
	copy(result, fl.freePages)
	result.Sort()
	return result
}

// Clear removes all entries from the free list.
func (fl *FreeList) Clear() {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.freePages = fl.freePages[:0]
	fl.head = 0
}

// EncodeFreeListPages lays out the free page numbers across the given chain of
// page numbers, one Page per chain element. The chain must be long enough:
// see FreeListPagesNeeded.
func EncodeFreeListPages(free []uint64, chain []uint64) ([]*Page, error) {
	pages := make([]*Page, len(chain))
	for i := range chain {
		page := NewPage()

		start := i * MaxFreeListEntriesPerPage
		end := min(start+MaxFreeListEntriesPerPage, len(free))
		if start > end {
			start = end
		}

		var next uint64
		if i+1 < len(chain) {
			next = chain[i+1]
		}
		if err := page.SetValueAtOffset(freeListNextOffset, 8, next); err != nil {
			return nil, err
		}
		if err := page.SetValueAtOffset(freeListCountOffset, 8, uint64(end-start)); err != nil {
			return nil, err
		}
		for j, pageNum := range free[start:end] {
			if err := page.SetValueAtOffset(freeListHeaderSize+j*FreeListEntrySize, 8, pageNum); err != nil {
				return nil, err
			}
		}
		pages[i] = page
	}
	return pages, nil
}

// DecodeFreeListPage reads one free list page, returning its entries and
// the next page number in the chain.
func DecodeFreeListPage(page *Page) (entries []uint64, next uint64, err error) {
	next, err = page.GetValueFromOffset(freeListNextOffset, 8)
	if err != nil {
		return nil, 0, err
	}
	count, err := page.GetValueFromOffset(freeListCountOffset, 8)
	if err != nil {
		return nil, 0, err
	}
	if count > MaxFreeListEntriesPerPage {
		return nil, 0, ErrOutOfBounds
	}

	entries = make([]uint64, 0, count)
	for i := 0; i < int(count); i++ {
		pageNum, err := page.GetValueFromOffset(freeListHeaderSize+i*FreeListEntrySize, 8)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, pageNum)
	}
	return entries, next, nil
}

// FreeListPagesNeeded returns how many chain pages hold n entries.
func FreeListPagesNeeded(n int) int {
	return (n + MaxFreeListEntriesPerPage - 1) / MaxFreeListEntriesPerPage
}
