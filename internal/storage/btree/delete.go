// Package btree provides the paged B+Tree used by pagedb.
package btree

import (
	"fmt"

	"github.com/KilimcininKorOglu/pagedb/internal/storage"
)

// Delete removes key from the tree, or returns ErrNotFound.
//
// Algorithm:
// 1. Find the leaf node containing the key
// 2. Remove the pair
// 3. If the leaf underflows:
//    a. Try to borrow from a sibling
//    b. If borrowing fails, merge with a sibling
// 4. Propagate underflow up the ancestors
// 5. If the root is left with a single child, that child becomes the root
func (t *BTree) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > KeySize {
		return ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	path, err := t.findLeafWithPath(key)
	if err != nil {
		return err
	}

	leaf := path[len(path)-1]
	idx, found := leaf.FindPairIndex(key)
	if !found {
		return ErrNotFound
	}
	leaf.RemovePairAt(idx)

	// The root leaf may hold any number of pairs
	if len(path) == 1 {
		return t.writeNode(leaf)
	}

	if len(leaf.Pairs) < t.minLeafPairs {
		return t.handleLeafUnderflow(path)
	}
	return t.writeNode(leaf)
}

// siblings returns the position of node in parent and its immediate
// siblings, nil where absent.
func (t *BTree) siblings(parent, node *Node) (int, *Node, *Node, error) {
	idx := parent.ChildPosition(node.Offset)
	if idx < 0 {
		return -1, nil, nil, fmt.Errorf("%w: node at offset %d missing from parent %d", ErrCorruptTree, node.Offset, parent.Offset)
	}

	var left, right *Node
	var err error
	if idx > 0 {
		if left, err = t.readNode(parent.Children[idx-1]); err != nil {
			return -1, nil, nil, err
		}
	}
	if idx < len(parent.Children)-1 {
		if right, err = t.readNode(parent.Children[idx+1]); err != nil {
			return -1, nil, nil, err
		}
	}
	if (left != nil && left.Type != node.Type) || (right != nil && right.Type != node.Type) {
		return -1, nil, nil, fmt.Errorf("%w: siblings of offset %d differ in type", ErrCorruptTree, node.Offset)
	}
	return idx, left, right, nil
}

// handleLeafUnderflow rebalances an underfull non-root leaf.
func (t *BTree) handleLeafUnderflow(path []*Node) error {
	leaf := path[len(path)-1]
	parent := path[len(path)-2]

	leafIdx, left, right, err := t.siblings(parent, leaf)
	if err != nil {
		return err
	}

	if left != nil && len(left.Pairs) > t.minLeafPairs {
		return t.borrowFromLeftLeaf(parent, left, leaf, leafIdx)
	}
	if right != nil && len(right.Pairs) > t.minLeafPairs {
		return t.borrowFromRightLeaf(parent, leaf, right, leafIdx)
	}

	if left != nil {
		return t.mergeLeaves(path, left, leaf, leafIdx-1)
	}
	if right != nil {
		return t.mergeLeaves(path, leaf, right, leafIdx)
	}
	return fmt.Errorf("%w: leaf at offset %d has no siblings", ErrCorruptTree, leaf.Offset)
}

// borrowFromLeftLeaf moves the last pair of left to the front of leaf.
func (t *BTree) borrowFromLeftLeaf(parent, left, leaf *Node, leafIdx int) error {
	kv := left.RemovePairAt(len(left.Pairs) - 1)
	leaf.InsertPairAt(0, kv)
	parent.Keys[leafIdx-1] = leaf.Pairs[0].Key

	t.logger.Debug("leaf borrow", "offset", leaf.Offset, "from", left.Offset)
	return t.writeNodes(left, leaf, parent)
}

// borrowFromRightLeaf moves the first pair of right to the end of leaf.
func (t *BTree) borrowFromRightLeaf(parent, leaf, right *Node, leafIdx int) error {
	kv := right.RemovePairAt(0)
	leaf.Pairs = append(leaf.Pairs, kv)
	parent.Keys[leafIdx] = right.Pairs[0].Key

	t.logger.Debug("leaf borrow", "offset", leaf.Offset, "from", right.Offset)
	return t.writeNodes(right, leaf, parent)
}

// mergeLeaves moves every pair of right into left, unlinks right from the
// parent and then releases its page.
func (t *BTree) mergeLeaves(path []*Node, left, right *Node, keyIdx int) error {
	left.Pairs = append(left.Pairs, right.Pairs...)
	if err := t.writeNode(left); err != nil {
		return err
	}

	t.logger.Debug("leaf merge", "offset", left.Offset, "released", right.Offset, "pairs", len(left.Pairs))

	if err := t.deleteFromParent(path[:len(path)-1], keyIdx); err != nil {
		return err
	}
	return t.releaseNode(right.Offset)
}

// deleteFromParent removes Keys[keyIdx] and Children[keyIdx+1] from the
// last node of path and rebalances it if needed.
func (t *BTree) deleteFromParent(path []*Node, keyIdx int) error {
	parent := path[len(path)-1]
	parent.RemoveChildAt(keyIdx)

	if len(path) == 1 {
		if len(parent.Children) == 1 {
			return t.collapseRoot(parent)
		}
		return t.writeNode(parent)
	}

	if len(parent.Children) < t.minChildren {
		return t.handleInternalUnderflow(path)
	}
	return t.writeNode(parent)
}

// collapseRoot promotes the only child of root and releases the old root.
func (t *BTree) collapseRoot(root *Node) error {
	child, err := t.readNode(root.Children[0])
	if err != nil {
		return err
	}
	child.IsRoot = true
	child.Parent = storage.NilOffset
	if err := t.writeNode(child); err != nil {
		return err
	}

	t.logger.Debug("root collapse", "old_root", root.Offset, "new_root", child.Offset)
	t.root = child.Offset
	return t.releaseNode(root.Offset)
}

// handleInternalUnderflow rebalances an underfull non-root internal node.
func (t *BTree) handleInternalUnderflow(path []*Node) error {
	internal := path[len(path)-1]
	parent := path[len(path)-2]

	idx, left, right, err := t.siblings(parent, internal)
	if err != nil {
		return err
	}

	if left != nil && len(left.Children) > t.minChildren {
		return t.borrowFromLeftInternal(parent, left, internal, idx)
	}
	if right != nil && len(right.Children) > t.minChildren {
		return t.borrowFromRightInternal(parent, internal, right, idx)
	}

	if left != nil {
		return t.mergeInternals(path, left, internal, idx-1)
	}
	if right != nil {
		return t.mergeInternals(path, internal, right, idx)
	}
	return fmt.Errorf("%w: internal node at offset %d has no siblings", ErrCorruptTree, internal.Offset)
}

// borrowFromLeftInternal rotates the last child of left through the parent.
func (t *BTree) borrowFromLeftInternal(parent, left, internal *Node, idx int) error {
	lastKey := len(left.Keys) - 1
	lastChild := left.Children[len(left.Children)-1]

	internal.Keys = append([][]byte{parent.Keys[idx-1]}, internal.Keys...)
	internal.Children = append([]storage.Offset{lastChild}, internal.Children...)
	parent.Keys[idx-1] = left.Keys[lastKey]

	left.Keys = left.Keys[:lastKey]
	left.Children = left.Children[:len(left.Children)-1]

	if err := t.reparent([]storage.Offset{lastChild}, internal.Offset); err != nil {
		return err
	}

	t.logger.Debug("internal borrow", "offset", internal.Offset, "from", left.Offset)
	return t.writeNodes(left, internal, parent)
}

// borrowFromRightInternal rotates the first child of right through the parent.
func (t *BTree) borrowFromRightInternal(parent, internal, right *Node, idx int) error {
	firstChild := right.Children[0]

	internal.Keys = append(internal.Keys, parent.Keys[idx])
	internal.Children = append(internal.Children, firstChild)
	parent.Keys[idx] = right.Keys[0]

	right.Keys = right.Keys[1:]
	right.Children = right.Children[1:]

	if err := t.reparent([]storage.Offset{firstChild}, internal.Offset); err != nil {
		return err
	}

	t.logger.Debug("internal borrow", "offset", internal.Offset, "from", right.Offset)
	return t.writeNodes(right, internal, parent)
}

// mergeInternals pulls the separator down from the parent and appends all
// of right to left, then unlinks and releases right.
func (t *BTree) mergeInternals(path []*Node, left, right *Node, keyIdx int) error {
	parent := path[len(path)-2]

	left.Keys = append(left.Keys, parent.Keys[keyIdx])
	left.Keys = append(left.Keys, right.Keys...)
	left.Children = append(left.Children, right.Children...)

	if err := t.reparent(right.Children, left.Offset); err != nil {
		return err
	}
	if err := t.writeNode(left); err != nil {
		return err
	}

	t.logger.Debug("internal merge", "offset", left.Offset, "released", right.Offset, "children", len(left.Children))

	if err := t.deleteFromParent(path[:len(path)-1], keyIdx); err != nil {
		return err
	}
	return t.releaseNode(right.Offset)
}

// writeNodes writes each node in order, stopping at the first error.
func (t *BTree) writeNodes(nodes ...*Node) error {
	for _, n := range nodes {
		if err := t.writeNode(n); err != nil {
			return err
		}
	}
	return nil
}
