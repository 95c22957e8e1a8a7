// Package storage provides the page-level storage components for pagedb.
package storage

import "errors"

// Pager errors.
var (
	// ErrIO wraps every failure surfaced by a Pager. Callers treat it as
	// fatal for the operation in progress.
	ErrIO = errors.New("pager I/O error")

	ErrPageNotAllocated = errors.New("page is not allocated")
	ErrMisalignedOffset = errors.New("offset is not page aligned")
	ErrPageAlreadyFree  = errors.New("page is already free")
	ErrCannotFreeHeader = errors.New("cannot free header page")
	ErrReadOnly         = errors.New("pager is read-only")
	ErrClosed           = errors.New("pager is closed")
)

// Pager maps Offsets to pages in a backing store.
//
// AllocatePage returns a fresh Offset that is not referenced anywhere.
// ReleasePage makes an Offset eligible for reuse; it must only be called
// once the page is no longer referenced by any parent.
type Pager interface {
	ReadPage(off Offset) (*Page, error)
	WritePage(off Offset, page *Page) error
	AllocatePage() (Offset, error)
	ReleasePage(off Offset) error
}
