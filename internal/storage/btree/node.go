// Package btree provides the paged B+Tree used by pagedb.
package btree

import (
	"bytes"
	"sort"

	"github.com/KilimcininKorOglu/pagedb/internal/storage"
)

// NodeType tags the two node variants. It is the first byte of every node page.
type NodeType uint8

const (
	NodeTypeInternal NodeType = 0
	NodeTypeLeaf     NodeType = 1
)

// String returns the name of the node type.
func (t NodeType) String() string {
	switch t {
	case NodeTypeInternal:
		return "internal"
	case NodeTypeLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Node page layout. All integers are big-endian.
const (
	KeySize           = 64
	ValueSize         = 256
	PtrSize           = 8
	ParentPointerSize = 8

	NodeTypeOffset      = 0
	IsRootOffset        = 1
	ParentPointerOffset = 2
	CommonHeaderSize    = 1 + 1 + ParentPointerSize

	NumEntriesOffset       = CommonHeaderSize
	NumEntriesSize         = 8
	InternalNodeHeaderSize = CommonHeaderSize + NumEntriesSize
	LeafNodeHeaderSize     = CommonHeaderSize + NumEntriesSize

	LeafPairSize = KeySize + ValueSize

	// MaxLeafPairs is the number of key/value slots that fit in a leaf page.
	MaxLeafPairs = (storage.PageSize - LeafNodeHeaderSize) / LeafPairSize

	// MaxInternalChildren is the number of children that fit in an internal
	// page together with their len-1 separator keys.
	MaxInternalChildren = (storage.PageSize - InternalNodeHeaderSize + KeySize) / (PtrSize + KeySize)
)

// KeyValuePair is the leaf payload unit.
type KeyValuePair struct {
	Key   []byte
	Value []byte
}

// Node is the decoded form of one tree page.
//
// Internal nodes use Children and Keys, with len(Children) == len(Keys)+1
// and Keys[i] separating Children[i] from Children[i+1]. Leaf nodes use
// Pairs, sorted strictly ascending by key.
//
// Parent is a back-reference used for bookkeeping only; it is NilOffset
// exactly when IsRoot is set.
type Node struct {
	Type     NodeType
	IsRoot   bool
	Parent   storage.Offset
	Children []storage.Offset
	Keys     [][]byte
	Pairs    []KeyValuePair

	// Offset is where the node was read from or will be written to.
	// It is not part of the encoded page.
	Offset storage.Offset
}

// NewLeafNode creates an empty leaf node stored at off.
func NewLeafNode(off storage.Offset) *Node {
	return &Node{
		Type:   NodeTypeLeaf,
		Offset: off,
	}
}

// NewInternalNode creates an empty internal node stored at off.
func NewInternalNode(off storage.Offset) *Node {
	return &Node{
		Type:   NodeTypeInternal,
		Offset: off,
	}
}

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool {
	return n.Type == NodeTypeLeaf
}

// NumEntries returns the number of pairs for a leaf or children for an
// internal node.
func (n *Node) NumEntries() int {
	if n.IsLeaf() {
		return len(n.Pairs)
	}
	return len(n.Children)
}

// FindPairIndex returns the index of key in a leaf, or the index where it
// would be inserted.
func (n *Node) FindPairIndex(key []byte) (int, bool) {
	idx := sort.Search(len(n.Pairs), func(i int) bool {
		return bytes.Compare(n.Pairs[i].Key, key) >= 0
	})
	return idx, idx < len(n.Pairs) && bytes.Equal(n.Pairs[idx].Key, key)
}

// ChildIndexFor returns the index of the child whose subtree may hold key:
// the number of separator keys less than or equal to key.
func (n *Node) ChildIndexFor(key []byte) int {
	return sort.Search(len(n.Keys), func(i int) bool {
		return bytes.Compare(n.Keys[i], key) > 0
	})
}

// ChildPosition returns the index of off in Children, or -1.
func (n *Node) ChildPosition(off storage.Offset) int {
	for i, c := range n.Children {
		if c == off {
			return i
		}
	}
	return -1
}

// InsertPairAt inserts a pair at index i of a leaf.
func (n *Node) InsertPairAt(i int, kv KeyValuePair) {
	n.Pairs = append(n.Pairs, KeyValuePair{})
	copy(n.Pairs[i+1:], n.Pairs[i:])
	n.Pairs[i] = kv
}

// RemovePairAt removes and returns the pair at index i of a leaf.
func (n *Node) RemovePairAt(i int) KeyValuePair {
	kv := n.Pairs[i]
	n.Pairs = append(n.Pairs[:i], n.Pairs[i+1:]...)
	return kv
}

// InsertChildAt inserts key at Keys[i] and child to its right at Children[i+1].
func (n *Node) InsertChildAt(i int, key []byte, child storage.Offset) {
	n.Keys = append(n.Keys, nil)
	copy(n.Keys[i+1:], n.Keys[i:])
	n.Keys[i] = key

	n.Children = append(n.Children, storage.NilOffset)
	copy(n.Children[i+2:], n.Children[i+1:])
	n.Children[i+1] = child
}

// RemoveChildAt removes Keys[i] and the child to its right, Children[i+1].
func (n *Node) RemoveChildAt(i int) {
	n.Keys = append(n.Keys[:i], n.Keys[i+1:]...)
	n.Children = append(n.Children[:i+1], n.Children[i+2:]...)
}

// FirstKey returns the smallest key held directly by the node, or nil.
func (n *Node) FirstKey() []byte {
	if n.IsLeaf() {
		if len(n.Pairs) == 0 {
			return nil
		}
		return n.Pairs[0].Key
	}
	if len(n.Keys) == 0 {
		return nil
	}
	return n.Keys[0]
}

// hasValidShape reports whether an internal node satisfies
// len(Children) == len(Keys)+1.
func (n *Node) hasValidShape() bool {
	return n.IsLeaf() || (len(n.Children) > 0 && len(n.Children) == len(n.Keys)+1)
}
