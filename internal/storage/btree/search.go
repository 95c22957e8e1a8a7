// Package btree provides the paged B+Tree used by pagedb.
package btree

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/KilimcininKorOglu/pagedb/internal/storage"
)

// Search returns the value stored under key, or ErrNotFound.
func (t *BTree) Search(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	// Such a key can never have been inserted.
	if len(key) > KeySize {
		return nil, ErrNotFound
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	path, err := t.findLeafWithPath(key)
	if err != nil {
		return nil, err
	}

	leaf := path[len(path)-1]
	idx, found := leaf.FindPairIndex(key)
	if !found {
		return nil, ErrNotFound
	}
	return leaf.Pairs[idx].Value, nil
}

// Contains reports whether key is present.
func (t *BTree) Contains(key []byte) (bool, error) {
	_, err := t.Search(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Scan calls fn for each pair with start <= key < end, in ascending key
// order, until fn returns false. A nil start or end leaves that side
// unbounded. Nodes have no sibling links, so the walk descends from the
// root and skips subtrees outside the range.
func (t *BTree) Scan(start, end []byte, fn func(key, value []byte) bool) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, err := t.scanNode(t.root, 1, start, end, fn)
	return err
}

func (t *BTree) scanNode(off storage.Offset, depth int, start, end []byte, fn func(key, value []byte) bool) (bool, error) {
	if depth > maxTreeDepth {
		return false, fmt.Errorf("%w: deeper than %d levels at offset %d", ErrCorruptTree, maxTreeDepth, off)
	}
	node, err := t.readNode(off)
	if err != nil {
		return false, err
	}

	if node.IsLeaf() {
		for _, kv := range node.Pairs {
			if start != nil && bytes.Compare(kv.Key, start) < 0 {
				continue
			}
			if end != nil && bytes.Compare(kv.Key, end) >= 0 {
				return false, nil
			}
			if !fn(kv.Key, kv.Value) {
				return false, nil
			}
		}
		return true, nil
	}

	if !node.hasValidShape() {
		return false, fmt.Errorf("%w: node at offset %d has %d children and %d keys",
			ErrCorruptTree, off, len(node.Children), len(node.Keys))
	}

	first, last := 0, len(node.Children)-1
	if start != nil {
		first = node.ChildIndexFor(start)
	}
	if end != nil {
		last = node.ChildIndexFor(end)
	}

	for i := first; i <= last; i++ {
		cont, err := t.scanNode(node.Children[i], depth+1, start, end, fn)
		if err != nil || !cont {
			return false, err
		}
	}
	return true, nil
}

// Len returns the number of pairs in the tree.
func (t *BTree) Len() (int, error) {
	stats, err := t.Stats()
	if err != nil {
		return 0, err
	}
	return stats.Pairs, nil
}

// Height returns the number of levels, 1 for a lone root leaf.
func (t *BTree) Height() (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	height := 1
	node, err := t.readNode(t.root)
	if err != nil {
		return 0, err
	}
	for !node.IsLeaf() {
		if height >= maxTreeDepth {
			return 0, fmt.Errorf("%w: deeper than %d levels at offset %d", ErrCorruptTree, maxTreeDepth, node.Offset)
		}
		if len(node.Children) == 0 {
			return 0, fmt.Errorf("%w: internal node at offset %d has no children", ErrCorruptTree, node.Offset)
		}
		node, err = t.readNode(node.Children[0])
		if err != nil {
			return 0, err
		}
		height++
	}
	return height, nil
}

// TreeStats holds statistics about the tree.
type TreeStats struct {
	Height        int
	InternalNodes int
	LeafNodes     int
	Pairs         int
}

// Stats walks the whole tree and counts nodes and pairs.
func (t *BTree) Stats() (TreeStats, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var stats TreeStats
	err := t.walk(t.root, 1, func(node *Node, depth int) error {
		if depth > stats.Height {
			stats.Height = depth
		}
		if node.IsLeaf() {
			stats.LeafNodes++
			stats.Pairs += len(node.Pairs)
		} else {
			stats.InternalNodes++
		}
		return nil
	})
	return stats, err
}

// walk visits every node of the subtree at off in depth-first order.
func (t *BTree) walk(off storage.Offset, depth int, visit func(node *Node, depth int) error) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("%w: deeper than %d levels at offset %d", ErrCorruptTree, maxTreeDepth, off)
	}
	node, err := t.readNode(off)
	if err != nil {
		return err
	}
	if err := visit(node, depth); err != nil {
		return err
	}
	for _, child := range node.Children {
		if err := t.walk(child, depth+1, visit); err != nil {
			return err
		}
	}
	return nil
}
