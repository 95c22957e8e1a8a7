// Package storage provides the page-level storage components for pagedb.
package storage

import (
	"errors"
	"fmt"
)

// PageSize is the size of every page in bytes.
// It is fixed at build time and must match between writer and reader.
const PageSize = 4096

// Offset identifies a page by its byte position in the backing store
// (page number × PageSize). Offset 0 is the store header page and is never
// handed out by a Pager, so it doubles as the nil Offset.
type Offset uint64

// NilOffset is the absent/invalid page reference.
const NilOffset Offset = 0

// OffsetForPage converts a page number to its Offset.
func OffsetForPage(pageNum uint64) Offset {
	return Offset(pageNum * PageSize)
}

// PageNumber returns the page number the Offset points at.
func (o Offset) PageNumber() uint64 {
	return uint64(o) / PageSize
}

// IsAligned reports whether the Offset falls on a page boundary.
func (o Offset) IsAligned() bool {
	return uint64(o)%PageSize == 0
}

// Errors for page accessors.
var (
	ErrOutOfBounds     = errors.New("access beyond page bounds")
	ErrValueTooLarge   = errors.New("value does not fit in field")
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrInvalidWidth    = errors.New("integer width must be between 1 and 8 bytes")
)

// Page is a fixed-size raw byte buffer, the sole unit of I/O.
// It knows nothing about the structure stored inside it.
//
// A page decoded from a short read keeps its short length so that
// accessors report ErrOutOfBounds instead of reading zeroes.
type Page struct {
	data []byte
}

// NewPage returns a zero-initialized page.
func NewPage() *Page {
	return &Page{data: make([]byte, PageSize)}
}

// PageFromBytes wraps a copy of buf as a page. A buffer shorter than
// PageSize is accepted and treated as a truncated page.
func PageFromBytes(buf []byte) (*Page, error) {
	if len(buf) > PageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPageSize, len(buf))
	}
	data := make([]byte, len(buf))
	copy(data, buf)
	return &Page{data: data}, nil
}

// Len returns the number of addressable bytes in the page.
func (p *Page) Len() int {
	return len(p.data)
}

// Bytes returns the underlying buffer.
func (p *Page) Bytes() []byte {
	return p.data
}

// Clone returns a deep copy of the page.
func (p *Page) Clone() *Page {
	data := make([]byte, len(p.data))
	copy(data, p.data)
	return &Page{data: data}
}

// IsTruncated reports whether the page holds fewer than PageSize bytes.
func (p *Page) IsTruncated() bool {
	return len(p.data) < PageSize
}

func (p *Page) checkRange(offset, length int) error {
	if offset < 0 || length < 0 || offset+length > len(p.data) {
		return fmt.Errorf("%w: offset %d length %d page %d", ErrOutOfBounds, offset, length, len(p.data))
	}
	return nil
}

// GetValueFromOffset reads a big-endian unsigned integer of width bytes
// starting at offset.
func (p *Page) GetValueFromOffset(offset, width int) (uint64, error) {
	if width < 1 || width > 8 {
		return 0, ErrInvalidWidth
	}
	if err := p.checkRange(offset, width); err != nil {
		return 0, err
	}

	var v uint64
	for _, b := range p.data[offset : offset+width] {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// GetPtrFromOffset returns a bounded view of length bytes at offset.
// The view aliases the page buffer.
func (p *Page) GetPtrFromOffset(offset, length int) ([]byte, error) {
	if err := p.checkRange(offset, length); err != nil {
		return nil, err
	}
	return p.data[offset : offset+length : offset+length], nil
}

// GetByte reads a single byte at offset.
func (p *Page) GetByte(offset int) (byte, error) {
	if err := p.checkRange(offset, 1); err != nil {
		return 0, err
	}
	return p.data[offset], nil
}

// SetRange copies b into the page at offset.
func (p *Page) SetRange(offset int, b []byte) error {
	if err := p.checkRange(offset, len(b)); err != nil {
		return err
	}
	copy(p.data[offset:], b)
	return nil
}

// SetField writes b into a fixed-width field of width bytes at offset,
// zero-padding the remainder. It never truncates.
func (p *Page) SetField(offset, width int, b []byte) error {
	if len(b) > width {
		return fmt.Errorf("%w: %d bytes into %d-byte field", ErrValueTooLarge, len(b), width)
	}
	if err := p.checkRange(offset, width); err != nil {
		return err
	}
	n := copy(p.data[offset:offset+width], b)
	clear(p.data[offset+n : offset+width])
	return nil
}

// SetValueAtOffset writes v as a big-endian integer of width bytes.
func (p *Page) SetValueAtOffset(offset, width int, v uint64) error {
	if width < 1 || width > 8 {
		return ErrInvalidWidth
	}
	if width < 8 && v>>(8*uint(width)) != 0 {
		return fmt.Errorf("%w: %d into %d bytes", ErrValueTooLarge, v, width)
	}
	if err := p.checkRange(offset, width); err != nil {
		return err
	}
	for i := width - 1; i >= 0; i-- {
		p.data[offset+i] = byte(v)
		v >>= 8
	}
	return nil
}

// SetByte writes a single byte at offset.
func (p *Page) SetByte(offset int, b byte) error {
	if err := p.checkRange(offset, 1); err != nil {
		return err
	}
	p.data[offset] = b
	return nil
}

// Reset zeroes the whole page.
func (p *Page) Reset() {
	clear(p.data)
}
