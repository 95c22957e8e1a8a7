// Package btree provides the paged B+Tree used by pagedb.
package btree

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/KilimcininKorOglu/pagedb/internal/logging"
	"github.com/KilimcininKorOglu/pagedb/internal/storage"
)

// Tree errors.
var (
	ErrNotFound       = errors.New("key not found")
	ErrCorruptTree    = errors.New("corrupt tree")
	ErrEmptyKey       = errors.New("key cannot be empty")
	ErrInvalidOptions = errors.New("invalid tree options")
	ErrInvalidPager   = errors.New("invalid pager")
)

// maxTreeDepth bounds every descent so that a child pointer cycle in a
// corrupt store is reported instead of looping forever.
const maxTreeDepth = 64

// Options configures node capacities. Zero values select the page-fit
// maximum; smaller capacities are allowed so that small trees split.
type Options struct {
	MaxLeafPairs int
	MaxChildren  int
	Logger       logging.Logger
}

// DefaultOptions returns page-fit capacities and a no-op logger.
func DefaultOptions() Options {
	return Options{
		MaxLeafPairs: MaxLeafPairs,
		MaxChildren:  MaxInternalChildren,
		Logger:       logging.NewNop(),
	}
}

func (o *Options) normalize() error {
	if o.MaxLeafPairs == 0 {
		o.MaxLeafPairs = MaxLeafPairs
	}
	if o.MaxChildren == 0 {
		o.MaxChildren = MaxInternalChildren
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.MaxLeafPairs < 2 || o.MaxLeafPairs > MaxLeafPairs {
		return fmt.Errorf("%w: leaf capacity %d not in [2, %d]", ErrInvalidOptions, o.MaxLeafPairs, MaxLeafPairs)
	}
	if o.MaxChildren < 3 || o.MaxChildren > MaxInternalChildren {
		return fmt.Errorf("%w: internal capacity %d not in [3, %d]", ErrInvalidOptions, o.MaxChildren, MaxInternalChildren)
	}
	return nil
}

// BTree is a B+Tree whose nodes live in pages of a storage.Pager.
// No node is kept in memory between operations.
type BTree struct {
	pager        storage.Pager
	root         storage.Offset
	maxLeafPairs int
	maxChildren  int
	minLeafPairs int
	minChildren  int
	logger       logging.Logger
	mu           sync.RWMutex
}

func newTree(pager storage.Pager, opts Options) (*BTree, error) {
	if pager == nil {
		return nil, ErrInvalidPager
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	return &BTree{
		pager:        pager,
		maxLeafPairs: opts.MaxLeafPairs,
		maxChildren:  opts.MaxChildren,
		minLeafPairs: (opts.MaxLeafPairs + 1) / 2,
		minChildren:  (opts.MaxChildren + 1) / 2,
		logger:       opts.Logger,
	}, nil
}

// New creates an empty tree: a single root leaf on a freshly allocated page.
func New(pager storage.Pager, opts Options) (*BTree, error) {
	t, err := newTree(pager, opts)
	if err != nil {
		return nil, err
	}

	off, err := pager.AllocatePage()
	if err != nil {
		return nil, err
	}
	root := NewLeafNode(off)
	root.IsRoot = true
	if err := t.writeNode(root); err != nil {
		return nil, err
	}

	t.root = off
	t.logger.Debug("tree created", "root", off)
	return t, nil
}

// Open loads a tree whose root node is stored at root.
func Open(pager storage.Pager, root storage.Offset, opts Options) (*BTree, error) {
	t, err := newTree(pager, opts)
	if err != nil {
		return nil, err
	}
	if root == storage.NilOffset {
		return nil, fmt.Errorf("%w: no root offset", ErrCorruptTree)
	}

	node, err := t.readNode(root)
	if err != nil {
		return nil, err
	}
	if !node.IsRoot {
		return nil, fmt.Errorf("%w: node at offset %d is not flagged as root", ErrCorruptTree, root)
	}

	t.root = root
	return t, nil
}

// Root returns the offset of the root node. It changes when the root
// splits or collapses.
func (t *BTree) Root() storage.Offset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Capacities returns the configured leaf and internal node capacities.
func (t *BTree) Capacities() (maxLeafPairs, maxChildren int) {
	return t.maxLeafPairs, t.maxChildren
}

// readNode reads and decodes the node at off. Decode failures are
// reported as ErrCorruptTree; pager errors pass through unchanged.
func (t *BTree) readNode(off storage.Offset) (*Node, error) {
	page, err := t.pager.ReadPage(off)
	if err != nil {
		return nil, err
	}

	node, err := Decode(page)
	if err != nil {
		return nil, fmt.Errorf("%w: node at offset %d: %w", ErrCorruptTree, off, err)
	}
	node.Offset = off
	return node, nil
}

// writeNode encodes node and writes it back to its offset.
func (t *BTree) writeNode(node *Node) error {
	page, err := Encode(node)
	if err != nil {
		return err
	}
	return t.pager.WritePage(node.Offset, page)
}

// allocateNode allocates a page for a new node of the given type.
func (t *BTree) allocateNode(typ NodeType) (*Node, error) {
	off, err := t.pager.AllocatePage()
	if err != nil {
		return nil, err
	}
	if typ == NodeTypeLeaf {
		return NewLeafNode(off), nil
	}
	return NewInternalNode(off), nil
}

// releaseNode returns a page that is no longer referenced to the pager.
func (t *BTree) releaseNode(off storage.Offset) error {
	return t.pager.ReleasePage(off)
}

// reparent rewrites the parent back-reference of each child.
func (t *BTree) reparent(children []storage.Offset, parent storage.Offset) error {
	for _, off := range children {
		child, err := t.readNode(off)
		if err != nil {
			return err
		}
		if child.Parent == parent && !child.IsRoot {
			continue
		}
		child.IsRoot = false
		child.Parent = parent
		if err := t.writeNode(child); err != nil {
			return err
		}
	}
	return nil
}

// findLeafWithPath descends from the root to the leaf that may hold key
// and returns every node on the way, root first.
func (t *BTree) findLeafWithPath(key []byte) ([]*Node, error) {
	node, err := t.readNode(t.root)
	if err != nil {
		return nil, err
	}
	path := []*Node{node}

	for !node.IsLeaf() {
		if len(path) >= maxTreeDepth {
			return nil, fmt.Errorf("%w: deeper than %d levels at offset %d", ErrCorruptTree, maxTreeDepth, node.Offset)
		}
		if !node.hasValidShape() {
			return nil, fmt.Errorf("%w: node at offset %d has %d children and %d keys",
				ErrCorruptTree, node.Offset, len(node.Children), len(node.Keys))
		}

		node, err = t.readNode(node.Children[node.ChildIndexFor(key)])
		if err != nil {
			return nil, err
		}
		path = append(path, node)
	}

	return path, nil
}

// validateKey rejects keys that cannot be stored in a key slot.
func validateKey(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > KeySize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrKeyTooLong, len(key), KeySize)
	}
	return validateText(key)
}

// validateValue rejects values that cannot be stored in a value slot.
func validateValue(value []byte) error {
	if len(value) > ValueSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrValueTooLong, len(value), ValueSize)
	}
	return validateText(value)
}

// validateText requires UTF-8 without NUL bytes, since NUL is slot padding.
func validateText(b []byte) error {
	if !utf8.Valid(b) {
		return fmt.Errorf("%w: not valid UTF-8", ErrEncoding)
	}
	for _, c := range b {
		if c == 0 {
			return fmt.Errorf("%w: contains NUL byte", ErrEncoding)
		}
	}
	return nil
}
