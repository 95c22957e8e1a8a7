// Package btree provides the paged B+Tree used by pagedb.
package btree

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/KilimcininKorOglu/pagedb/internal/storage"
)

// Codec errors.
var (
	ErrInvalidNodeType = errors.New("invalid node type tag")
	ErrEncoding        = errors.New("invalid field encoding")
	ErrKeyTooLong      = errors.New("key exceeds key slot size")
	ErrValueTooLong    = errors.New("value exceeds value slot size")
	ErrMissingParent   = errors.New("non-root node has no parent")
)

// Encode writes n into a fresh zeroed page.
func Encode(n *Node) (*storage.Page, error) {
	if !n.IsRoot && n.Parent == storage.NilOffset {
		return nil, fmt.Errorf("%w: node at offset %d", ErrMissingParent, n.Offset)
	}

	page := storage.NewPage()
	if err := page.SetByte(NodeTypeOffset, byte(n.Type)); err != nil {
		return nil, err
	}

	var isRoot byte
	var parent storage.Offset
	if n.IsRoot {
		isRoot = 1
	} else {
		parent = n.Parent
	}
	if err := page.SetByte(IsRootOffset, isRoot); err != nil {
		return nil, err
	}
	if err := page.SetValueAtOffset(ParentPointerOffset, ParentPointerSize, uint64(parent)); err != nil {
		return nil, err
	}

	var err error
	switch n.Type {
	case NodeTypeInternal:
		err = encodeInternal(page, n)
	case NodeTypeLeaf:
		err = encodeLeaf(page, n)
	default:
		err = fmt.Errorf("%w: %d", ErrInvalidNodeType, n.Type)
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

func encodeInternal(page *storage.Page, n *Node) error {
	if !n.hasValidShape() {
		return fmt.Errorf("%w: %d children with %d keys", ErrCorruptTree, len(n.Children), len(n.Keys))
	}
	if len(n.Children) > MaxInternalChildren {
		return fmt.Errorf("%w: %d children exceed page capacity", ErrCorruptTree, len(n.Children))
	}

	if err := page.SetValueAtOffset(NumEntriesOffset, NumEntriesSize, uint64(len(n.Children))); err != nil {
		return err
	}

	pos := InternalNodeHeaderSize
	for _, child := range n.Children {
		if err := page.SetValueAtOffset(pos, PtrSize, uint64(child)); err != nil {
			return err
		}
		pos += PtrSize
	}
	for _, key := range n.Keys {
		if err := setSlot(page, pos, KeySize, key, ErrKeyTooLong); err != nil {
			return err
		}
		pos += KeySize
	}
	return nil
}

func encodeLeaf(page *storage.Page, n *Node) error {
	if len(n.Pairs) > MaxLeafPairs {
		return fmt.Errorf("%w: %d pairs exceed page capacity", ErrCorruptTree, len(n.Pairs))
	}

	if err := page.SetValueAtOffset(NumEntriesOffset, NumEntriesSize, uint64(len(n.Pairs))); err != nil {
		return err
	}

	pos := LeafNodeHeaderSize
	for _, kv := range n.Pairs {
		if err := setSlot(page, pos, KeySize, kv.Key, ErrKeyTooLong); err != nil {
			return err
		}
		if err := setSlot(page, pos+KeySize, ValueSize, kv.Value, ErrValueTooLong); err != nil {
			return err
		}
		pos += LeafPairSize
	}
	return nil
}

// setSlot writes a zero-padded field, reporting an oversized field as tooLong.
func setSlot(page *storage.Page, pos, width int, b []byte, tooLong error) error {
	if len(b) > width {
		return fmt.Errorf("%w: %d bytes, slot is %d", tooLong, len(b), width)
	}
	return page.SetField(pos, width, b)
}

// Decode reads a node from page. Reads past the end of a truncated page
// surface as storage.ErrOutOfBounds.
func Decode(page *storage.Page) (*Node, error) {
	tag, err := page.GetByte(NodeTypeOffset)
	if err != nil {
		return nil, err
	}

	n := &Node{Type: NodeType(tag)}
	if n.Type != NodeTypeInternal && n.Type != NodeTypeLeaf {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidNodeType, tag)
	}

	isRoot, err := page.GetByte(IsRootOffset)
	if err != nil {
		return nil, err
	}
	switch isRoot {
	case 0:
		parent, err := page.GetValueFromOffset(ParentPointerOffset, ParentPointerSize)
		if err != nil {
			return nil, err
		}
		n.Parent = storage.Offset(parent)
	case 1:
		n.IsRoot = true
	default:
		return nil, fmt.Errorf("%w: root flag %#x", ErrEncoding, isRoot)
	}

	count, err := page.GetValueFromOffset(NumEntriesOffset, NumEntriesSize)
	if err != nil {
		return nil, err
	}

	if n.IsLeaf() {
		return n, decodeLeaf(page, n, count)
	}
	return n, decodeInternal(page, n, count)
}

func decodeInternal(page *storage.Page, n *Node, count uint64) error {
	if count > MaxInternalChildren {
		return fmt.Errorf("%w: %d children", storage.ErrOutOfBounds, count)
	}
	if count == 0 {
		return fmt.Errorf("%w: internal node with no children", ErrCorruptTree)
	}

	numChildren := int(count)
	n.Children = make([]storage.Offset, numChildren)
	pos := InternalNodeHeaderSize
	for i := range n.Children {
		child, err := page.GetValueFromOffset(pos, PtrSize)
		if err != nil {
			return err
		}
		n.Children[i] = storage.Offset(child)
		pos += PtrSize
	}

	n.Keys = make([][]byte, numChildren-1)
	for i := range n.Keys {
		key, err := getSlot(page, pos, KeySize)
		if err != nil {
			return err
		}
		n.Keys[i] = key
		pos += KeySize
	}
	return nil
}

func decodeLeaf(page *storage.Page, n *Node, count uint64) error {
	if count > MaxLeafPairs {
		return fmt.Errorf("%w: %d pairs", storage.ErrOutOfBounds, count)
	}

	n.Pairs = make([]KeyValuePair, int(count))
	pos := LeafNodeHeaderSize
	for i := range n.Pairs {
		key, err := getSlot(page, pos, KeySize)
		if err != nil {
			return err
		}
		value, err := getSlot(page, pos+KeySize, ValueSize)
		if err != nil {
			return err
		}
		n.Pairs[i] = KeyValuePair{Key: key, Value: value}
		pos += LeafPairSize
	}
	return nil
}

// getSlot reads a fixed-width field, strips its zero padding and checks
// that the remainder is UTF-8.
func getSlot(page *storage.Page, pos, width int) ([]byte, error) {
	raw, err := page.GetPtrFromOffset(pos, width)
	if err != nil {
		return nil, err
	}
	field := bytes.Trim(raw, "\x00")
	if !utf8.Valid(field) {
		return nil, fmt.Errorf("%w: slot at byte %d is not UTF-8", ErrEncoding, pos)
	}
	return bytes.Clone(field), nil
}
