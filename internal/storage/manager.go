// Package storage provides the page-level storage components for pagedb.
package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cznic/fileutil"
)

// Default options for PageManager.
const (
	DefaultInitialPages = 16
	MinGrowthPages      = 8
)

// Options configures the PageManager.
type Options struct {
	InitialPages int  // Initial number of pages to allocate
	CreateIfNew  bool // Create file if it doesn't exist
	ReadOnly     bool // Open in read-only mode
	SyncOnWrite  bool // Sync to disk after each write
}

// DefaultOptions returns the default PageManager options.
func DefaultOptions() Options {
	return Options{
		InitialPages: DefaultInitialPages,
		CreateIfNew:  true,
		ReadOnly:     false,
		SyncOnWrite:  false,
	}
}

// PageManager is a file-backed Pager. Page 0 holds the FileHeader; every
// other page is either allocated to a caller or on the free list.
type PageManager struct {
	file        *os.File
	header      *FileHeader
	totalPages  uint64
	freeList    *FreeList
	mu          sync.RWMutex
	path        string
	readOnly    bool
	syncOnWrite bool
	closed      bool
}

var _ Pager = (*PageManager)(nil)

// OpenPageManager opens or creates a store file at path.
func OpenPageManager(path string, opts Options) (*PageManager, error) {
	if opts.InitialPages == 0 {
		opts.InitialPages = DefaultInitialPages
	}

	pm := &PageManager{
		freeList:    NewFreeList(),
		path:        path,
		readOnly:    opts.ReadOnly,
		syncOnWrite: opts.SyncOnWrite,
	}

	info, err := os.Stat(path)
	fileExists := err == nil && info.Size() > 0

	if !fileExists && (!opts.CreateIfNew || opts.ReadOnly) {
		return nil, os.ErrNotExist
	}

	flags := os.O_RDWR | os.O_CREATE
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}

	pm.file, err = os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	if fileExists {
		if err := pm.loadExisting(); err != nil {
			pm.file.Close()
			return nil, err
		}
	} else {
		if err := pm.initializeNew(opts.InitialPages); err != nil {
			pm.file.Close()
			os.Remove(path)
			return nil, err
		}
	}

	return pm, nil
}

// loadExisting loads the header and the persisted free list.
func (pm *PageManager) loadExisting() error {
	page, err := pm.readRaw(0)
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	pm.header, err = DecodeFileHeader(page)
	if err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}
	pm.totalPages = pm.header.TotalPages

	if err := pm.loadFreeList(); err != nil {
		return fmt.Errorf("failed to load free list: %w", err)
	}
	if pm.readOnly || pm.header.FreeListHead == 0 {
		return nil
	}

	// Chain pages are reused from here on, so the header stops pointing at
	// them until Close writes a new chain. A crash leaks the free pages.
	pm.header.FreeListHead = 0
	if err := pm.saveHeaderLocked(); err != nil {
		return fmt.Errorf("failed to clear free list head: %w", err)
	}
	if err := pm.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

// loadFreeList walks the free list chain. The chain pages themselves are
// free once loaded.
func (pm *PageManager) loadFreeList() error {
	pm.freeList = NewFreeList()

	seen := make(map[uint64]bool)
	for pageNum := pm.header.FreeListHead; pageNum != 0; {
		if pageNum >= pm.totalPages || seen[pageNum] {
			return ErrOutOfBounds
		}
		seen[pageNum] = true

		page, err := pm.readRaw(pageNum)
		if err != nil {
			return err
		}
		entries, next, err := DecodeFreeListPage(page)
		if err != nil {
			return err
		}
		for _, n := range entries {
			pm.freeList.Push(n)
		}
		pm.freeList.Push(pageNum)
		pageNum = next
	}
	return nil
}

// initializeNew writes a fresh header and sizes the file.
func (pm *PageManager) initializeNew(initialPages int) error {
	if initialPages < 1 {
		initialPages = 1
	}

	pm.header = NewFileHeader()
	pm.header.TotalPages = uint64(initialPages)
	pm.totalPages = uint64(initialPages)

	if err := pm.file.Truncate(int64(initialPages) * PageSize); err != nil {
		return fmt.Errorf("failed to extend file: %w", err)
	}

	for i := initialPages - 1; i >= 1; i-- {
		pm.freeList.Push(uint64(i))
	}

	if err := pm.saveHeaderLocked(); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := pm.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

// Close persists the free list and header, then closes the file.
func (pm *PageManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return ErrClosed
	}
	pm.closed = true

	if !pm.readOnly {
		if err := pm.saveFreeListLocked(); err != nil {
			pm.file.Close()
			return fmt.Errorf("failed to save free list: %w", err)
		}
		if err := pm.saveHeaderLocked(); err != nil {
			pm.file.Close()
			return fmt.Errorf("failed to save header: %w", err)
		}
		if err := pm.file.Sync(); err != nil {
			pm.file.Close()
			return fmt.Errorf("failed to sync file: %w", err)
		}
	}

	return pm.file.Close()
}

// saveFreeListLocked stores the free list in a chain built from the lowest
// free pages themselves, so closing never grows the file.
func (pm *PageManager) saveFreeListLocked() error {
	free := pm.freeList.Sorted()
	if len(free) == 0 {
		pm.header.FreeListHead = 0
		return nil
	}

	numChain := FreeListPagesNeeded(len(free))
	chain, entries := free[:numChain], free[numChain:]

	pages, err := EncodeFreeListPages(entries, chain)
	if err != nil {
		return err
	}
	for i, page := range pages {
		if err := pm.writeRaw(chain[i], page); err != nil {
			return err
		}
	}

	pm.header.FreeListHead = chain[0]
	pm.freeList.SetHead(chain[0])
	return nil
}

// saveHeaderLocked writes the header page. Must be called with lock held.
func (pm *PageManager) saveHeaderLocked() error {
	pm.header.TotalPages = pm.totalPages
	return pm.writeRaw(0, pm.header.Encode())
}

// checkOffsetLocked verifies off names an allocated page.
func (pm *PageManager) checkOffsetLocked(off Offset) error {
	if !off.IsAligned() {
		return fmt.Errorf("%w: %w: %d", ErrIO, ErrMisalignedOffset, off)
	}
	pageNum := off.PageNumber()
	if pageNum == 0 || pageNum >= pm.totalPages || pm.freeList.Contains(pageNum) {
		return fmt.Errorf("%w: %w: offset %d", ErrIO, ErrPageNotAllocated, off)
	}
	return nil
}

// ReadPage reads the page at off. A short read yields a truncated page.
func (pm *PageManager) ReadPage(off Offset) (*Page, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.closed {
		return nil, fmt.Errorf("%w: %w", ErrIO, ErrClosed)
	}
	if err := pm.checkOffsetLocked(off); err != nil {
		return nil, err
	}
	return pm.readRaw(off.PageNumber())
}

// readRaw reads a page by number without locking or allocation checks.
func (pm *PageManager) readRaw(pageNum uint64) (*Page, error) {
	buf := make([]byte, PageSize)
	n, err := pm.file.ReadAt(buf, int64(pageNum)*PageSize)
	if err != nil && !fileutil.IsEOF(err) {
		return nil, fmt.Errorf("%w: read page %d: %w", ErrIO, pageNum, err)
	}
	return PageFromBytes(buf[:n])
}

// WritePage writes page at off.
func (pm *PageManager) WritePage(off Offset, page *Page) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.writableLocked(); err != nil {
		return err
	}
	if err := pm.checkOffsetLocked(off); err != nil {
		return err
	}
	return pm.writeRaw(off.PageNumber(), page)
}

func (pm *PageManager) writableLocked() error {
	if pm.closed {
		return fmt.Errorf("%w: %w", ErrIO, ErrClosed)
	}
	if pm.readOnly {
		return fmt.Errorf("%w: %w", ErrIO, ErrReadOnly)
	}
	return nil
}

// writeRaw writes a full page by number without locking.
func (pm *PageManager) writeRaw(pageNum uint64, page *Page) error {
	buf := page.Bytes()
	if len(buf) != PageSize {
		full := make([]byte, PageSize)
		copy(full, buf)
		buf = full
	}

	if _, err := pm.file.WriteAt(buf, int64(pageNum)*PageSize); err != nil {
		return fmt.Errorf("%w: write page %d: %w", ErrIO, pageNum, err)
	}

	if pm.syncOnWrite {
		if err := pm.file.Sync(); err != nil {
			return fmt.Errorf("%w: sync after write: %w", ErrIO, err)
		}
	}
	return nil
}

// AllocatePage returns a zeroed page, reusing a free one when possible.
func (pm *PageManager) AllocatePage() (Offset, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.writableLocked(); err != nil {
		return NilOffset, err
	}

	pageNum, ok := pm.freeList.Pop()
	if !ok {
		pageNum = pm.totalPages
		if err := pm.growFileLocked(MinGrowthPages); err != nil {
			return NilOffset, err
		}
	}

	if err := pm.writeRaw(pageNum, NewPage()); err != nil {
		pm.freeList.Push(pageNum)
		return NilOffset, err
	}
	return OffsetForPage(pageNum), nil
}

// growFileLocked grows the file by numPages. The first new page is left
// for the caller; the rest go on the free list.
func (pm *PageManager) growFileLocked(numPages int) error {
	newTotalPages := pm.totalPages + uint64(numPages)
	if err := pm.file.Truncate(int64(newTotalPages) * PageSize); err != nil {
		return fmt.Errorf("%w: grow file: %w", ErrIO, err)
	}

	oldTotal := pm.totalPages
	pm.totalPages = newTotalPages
	pm.header.TotalPages = newTotalPages

	for i := newTotalPages - 1; i > oldTotal; i-- {
		pm.freeList.Push(i)
	}
	return nil
}

// ReleasePage zeroes the page at off and puts it on the free list.
func (pm *PageManager) ReleasePage(off Offset) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.writableLocked(); err != nil {
		return err
	}
	if off == NilOffset {
		return fmt.Errorf("%w: %w", ErrIO, ErrCannotFreeHeader)
	}
	if pm.freeList.Contains(off.PageNumber()) {
		return fmt.Errorf("%w: %w: offset %d", ErrIO, ErrPageAlreadyFree, off)
	}
	if err := pm.checkOffsetLocked(off); err != nil {
		return err
	}

	if err := pm.writeRaw(off.PageNumber(), NewPage()); err != nil {
		return err
	}
	pm.freeList.Push(off.PageNumber())
	return nil
}

// Root returns the tree root recorded in the header.
func (pm *PageManager) Root() Offset {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.header.Root
}

// SetRoot records a new tree root in the header and writes it out.
func (pm *PageManager) SetRoot(root Offset) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.writableLocked(); err != nil {
		return err
	}
	pm.header.Root = root
	return pm.saveHeaderLocked()
}

// TreeCapacities returns the node capacities recorded in the header, or
// zeros when no tree has recorded them yet.
func (pm *PageManager) TreeCapacities() (maxLeafPairs, maxChildren int) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return int(pm.header.MaxLeafPairs), int(pm.header.MaxChildren)
}

// SetTreeCapacities records the node capacities of the tree in the header.
func (pm *PageManager) SetTreeCapacities(maxLeafPairs, maxChildren int) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.writableLocked(); err != nil {
		return err
	}
	pm.header.MaxLeafPairs = uint32(maxLeafPairs)
	pm.header.MaxChildren = uint32(maxChildren)
	return pm.saveHeaderLocked()
}

// Sync writes the header and flushes the file to disk.
func (pm *PageManager) Sync() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return ErrClosed
	}
	if !pm.readOnly {
		if err := pm.saveHeaderLocked(); err != nil {
			return err
		}
	}
	if err := pm.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", ErrIO, err)
	}
	return nil
}

// TotalPages returns the total number of pages in the file.
func (pm *PageManager) TotalPages() uint64 {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.totalPages
}

// FreePageCount returns the number of free pages.
func (pm *PageManager) FreePageCount() uint64 {
	return pm.freeList.Count()
}

// Path returns the file path.
func (pm *PageManager) Path() string {
	return pm.path
}

// IsReadOnly returns true if the page manager is in read-only mode.
func (pm *PageManager) IsReadOnly() bool {
	return pm.readOnly
}

// Stats describes page usage in a store file.
type Stats struct {
	TotalPages    uint64
	FreePages     uint64
	UsedPages     uint64
	PageSize      int
	FileSizeBytes int64
}

// Stats returns current statistics.
func (pm *PageManager) Stats() Stats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	freeCount := pm.freeList.Count()
	return Stats{
		TotalPages:    pm.totalPages,
		FreePages:     freeCount,
		UsedPages:     pm.totalPages - freeCount - 1, // -1 for header
		PageSize:      PageSize,
		FileSizeBytes: int64(pm.totalPages) * PageSize,
	}
}

// IsIOError reports whether err came from a Pager.
func IsIOError(err error) bool {
	return errors.Is(err, ErrIO)
}
