// Package btree provides the paged B+Tree used by pagedb.
package btree

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/KilimcininKorOglu/pagedb/internal/storage"
)

// Insert stores value under key, replacing any existing value.
//
// Algorithm:
// 1. Find the leaf node for the key
// 2. Replace the value in place, or insert the pair in sorted order
// 3. If the leaf overflows, split it into two leaves
// 4. Propagate the split up to the parent
// 5. If the root splits, create a new root
//
// Key and value are validated before any page is touched.
func (t *BTree) Insert(key, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	path, err := t.findLeafWithPath(key)
	if err != nil {
		return err
	}

	leaf := path[len(path)-1]
	idx, found := leaf.FindPairIndex(key)
	if found {
		leaf.Pairs[idx].Value = bytes.Clone(value)
		return t.writeNode(leaf)
	}

	leaf.InsertPairAt(idx, KeyValuePair{Key: bytes.Clone(key), Value: bytes.Clone(value)})

	if len(leaf.Pairs) > t.maxLeafPairs {
		return t.splitLeafAndPropagate(path)
	}
	return t.writeNode(leaf)
}

// splitLeafAndPropagate splits an overfull leaf. The lower half stays at
// the leaf's offset, the upper half moves to a new page, and the first key
// of the upper half becomes the separator.
func (t *BTree) splitLeafAndPropagate(path []*Node) error {
	leaf := path[len(path)-1]

	newLeaf, err := t.allocateNode(NodeTypeLeaf)
	if err != nil {
		return err
	}

	splitPoint := (len(leaf.Pairs) + 1) / 2
	newLeaf.Pairs = slices.Clone(leaf.Pairs[splitPoint:])
	leaf.Pairs = slices.Clone(leaf.Pairs[:splitPoint])
	newLeaf.Parent = leaf.Parent

	separator := bytes.Clone(newLeaf.Pairs[0].Key)

	t.logger.Debug("leaf split",
		"offset", leaf.Offset,
		"new_offset", newLeaf.Offset,
		"left_pairs", len(leaf.Pairs),
		"right_pairs", len(newLeaf.Pairs))

	return t.insertIntoParent(path[:len(path)-1], leaf, separator, newLeaf)
}

// insertIntoParent writes the two halves of a split and links right into
// the parent after left. If the parent overflows it splits in turn.
func (t *BTree) insertIntoParent(path []*Node, left *Node, key []byte, right *Node) error {
	if len(path) == 0 {
		return t.createNewRoot(left, key, right)
	}

	parent := path[len(path)-1]
	right.IsRoot = false
	right.Parent = parent.Offset

	if err := t.writeNode(left); err != nil {
		return err
	}
	if err := t.writeNode(right); err != nil {
		return err
	}

	idx := parent.ChildPosition(left.Offset)
	if idx < 0 {
		return fmt.Errorf("%w: node at offset %d missing from parent %d", ErrCorruptTree, left.Offset, parent.Offset)
	}
	parent.InsertChildAt(idx, key, right.Offset)

	if len(parent.Children) > t.maxChildren {
		return t.splitInternalAndPropagate(path)
	}
	return t.writeNode(parent)
}

// createNewRoot allocates a root holding exactly left, key and right.
func (t *BTree) createNewRoot(left *Node, key []byte, right *Node) error {
	root, err := t.allocateNode(NodeTypeInternal)
	if err != nil {
		return err
	}
	root.IsRoot = true
	root.Keys = [][]byte{key}
	root.Children = []storage.Offset{left.Offset, right.Offset}

	for _, child := range []*Node{left, right} {
		child.IsRoot = false
		child.Parent = root.Offset
		if err := t.writeNode(child); err != nil {
			return err
		}
	}
	if err := t.writeNode(root); err != nil {
		return err
	}

	t.logger.Debug("root split", "old_root", left.Offset, "new_root", root.Offset)
	t.root = root.Offset
	return nil
}

// splitInternalAndPropagate splits an overfull internal node around its
// middle key, which moves up to the parent. Children moved to the new
// node get their parent back-reference rewritten.
func (t *BTree) splitInternalAndPropagate(path []*Node) error {
	internal := path[len(path)-1]

	newInternal, err := t.allocateNode(NodeTypeInternal)
	if err != nil {
		return err
	}

	splitPoint := len(internal.Keys) / 2
	promoted := internal.Keys[splitPoint]

	newInternal.Keys = slices.Clone(internal.Keys[splitPoint+1:])
	newInternal.Children = slices.Clone(internal.Children[splitPoint+1:])
	internal.Keys = slices.Clone(internal.Keys[:splitPoint])
	internal.Children = slices.Clone(internal.Children[:splitPoint+1])
	newInternal.Parent = internal.Parent

	if err := t.reparent(newInternal.Children, newInternal.Offset); err != nil {
		return err
	}

	t.logger.Debug("internal split",
		"offset", internal.Offset,
		"new_offset", newInternal.Offset,
		"left_children", len(internal.Children),
		"right_children", len(newInternal.Children))

	return t.insertIntoParent(path[:len(path)-1], internal, promoted, newInternal)
}
