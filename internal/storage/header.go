// Package storage provides the page-level storage components for pagedb.
package storage

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// File header constants.
const (
	// CurrentVersion is the current file format version.
	CurrentVersion uint32 = 1

	// headerChecksumOffset is where the CRC32 of bytes [0, 44) is stored.
	headerChecksumOffset = 44
)

// Magic identifies a pagedb store file.
var Magic = [4]byte{'P', 'G', 'D', 'B'}

// FileHeader is stored in page 0 of every store file.
// Layout (big-endian):
//   - Bytes 0-3:   Magic ("PGDB")
//   - Bytes 4-7:   Version (uint32)
//   - Bytes 8-11:  PageSize (uint32)
//   - Bytes 12-19: TotalPages (uint64)
//   - Bytes 20-27: FreeListHead (page number, 0 if none)
//   - Bytes 28-35: Root (Offset of the tree root, 0 if none)
//   - Bytes 36-39: MaxLeafPairs (tree leaf capacity, 0 until a tree exists)
//   - Bytes 40-43: MaxChildren (tree internal capacity, 0 until a tree exists)
//   - Bytes 44-47: Checksum (CRC32 of bytes 0-43)
//   - Bytes 48-..: Reserved, zero
type FileHeader struct {
	Magic        [4]byte
	Version      uint32
	PageSize     uint32
	TotalPages   uint64
	FreeListHead uint64
	Root         Offset
	MaxLeafPairs uint32
	MaxChildren  uint32
	Checksum     uint32
}

// Errors for file header operations.
var (
	ErrInvalidMagic       = errors.New("invalid magic number: not a pagedb file")
	ErrUnsupportedVersion = errors.New("unsupported file format version")
	ErrHeaderChecksum     = errors.New("file header checksum mismatch")
	ErrPageSizeMismatch   = errors.New("store page size does not match build")
)

// NewFileHeader creates a FileHeader for an empty store.
func NewFileHeader() *FileHeader {
	return &FileHeader{
		Magic:      Magic,
		Version:    CurrentVersion,
		PageSize:   PageSize,
		TotalPages: 1, // the header page itself
	}
}

// Encode writes the header into a fresh page, computing the checksum.
func (h *FileHeader) Encode() *Page {
	page := NewPage()
	buf := page.Bytes()

	copy(buf[0:4], h.Magic[:])
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.PageSize)
	binary.BigEndian.PutUint64(buf[12:20], h.TotalPages)
	binary.BigEndian.PutUint64(buf[20:28], h.FreeListHead)
	binary.BigEndian.PutUint64(buf[28:36], uint64(h.Root))
	binary.BigEndian.PutUint32(buf[36:40], h.MaxLeafPairs)
	binary.BigEndian.PutUint32(buf[40:44], h.MaxChildren)

	h.Checksum = crc32.ChecksumIEEE(buf[:headerChecksumOffset])
	binary.BigEndian.PutUint32(buf[44:48], h.Checksum)

	return page
}

// DecodeFileHeader reads and validates a header page.
func DecodeFileHeader(page *Page) (*FileHeader, error) {
	raw, err := page.GetPtrFromOffset(0, headerChecksumOffset+4)
	if err != nil {
		return nil, err
	}

	h := &FileHeader{}
	copy(h.Magic[:], raw[0:4])
	h.Version = binary.BigEndian.Uint32(raw[4:8])
	h.PageSize = binary.BigEndian.Uint32(raw[8:12])
	h.TotalPages = binary.BigEndian.Uint64(raw[12:20])
	h.FreeListHead = binary.BigEndian.Uint64(raw[20:28])
	h.Root = Offset(binary.BigEndian.Uint64(raw[28:36]))
	h.MaxLeafPairs = binary.BigEndian.Uint32(raw[36:40])
	h.MaxChildren = binary.BigEndian.Uint32(raw[40:44])
	h.Checksum = binary.BigEndian.Uint32(raw[44:48])

	if err := h.validate(raw); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *FileHeader) validate(raw []byte) error {
	if h.Magic != Magic {
		return ErrInvalidMagic
	}
	if h.Version == 0 || h.Version > CurrentVersion {
		return ErrUnsupportedVersion
	}
	if crc32.ChecksumIEEE(raw[:headerChecksumOffset]) != h.Checksum {
		return ErrHeaderChecksum
	}
	if h.PageSize != PageSize {
		return ErrPageSizeMismatch
	}
	return nil
}

// IsStoreFile reports whether buf starts with the pagedb magic number.
func IsStoreFile(buf []byte) bool {
	return len(buf) >= 4 && [4]byte(buf[0:4]) == Magic
}
