// Package btree provides the paged B+Tree used by pagedb.
package btree

import (
	"bytes"
	"fmt"

	"github.com/KilimcininKorOglu/pagedb/internal/storage"
)

// Verify checks every structural invariant of the tree:
//   - exactly one node, the root, carries the root flag
//   - every other node points back at the parent that references it
//   - internal nodes have len(Children) == len(Keys)+1, and a root
//     internal node has at least two children
//   - keys in a node are strictly ascending and inside the range the
//     ancestors' separators allow
//   - non-root nodes meet the minimum occupancy
//   - all leaves are at the same depth
//
// Violations are reported as ErrCorruptTree.
func (t *BTree) Verify() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v := &verifier{tree: t, leafDepth: -1, seen: make(map[storage.Offset]bool)}
	return v.check(t.root, storage.NilOffset, nil, nil, 0)
}

type verifier struct {
	tree      *BTree
	leafDepth int
	seen      map[storage.Offset]bool
}

func (v *verifier) fail(off storage.Offset, format string, args ...interface{}) error {
	return fmt.Errorf("%w: node at offset %d: %s", ErrCorruptTree, off, fmt.Sprintf(format, args...))
}

// check verifies the subtree at off, whose keys must lie in [lo, hi).
func (v *verifier) check(off, parent storage.Offset, lo, hi []byte, depth int) error {
	if v.seen[off] {
		return v.fail(off, "referenced more than once")
	}
	v.seen[off] = true

	if depth > maxTreeDepth {
		return v.fail(off, "deeper than %d levels", maxTreeDepth)
	}

	node, err := v.tree.readNode(off)
	if err != nil {
		return err
	}

	isRoot := parent == storage.NilOffset
	if node.IsRoot != isRoot {
		return v.fail(off, "root flag is %t", node.IsRoot)
	}
	if !isRoot && node.Parent != parent {
		return v.fail(off, "parent is %d, referenced from %d", node.Parent, parent)
	}

	if node.IsLeaf() {
		return v.checkLeaf(node, isRoot, lo, hi, depth)
	}
	return v.checkInternal(node, isRoot, lo, hi, depth)
}

func (v *verifier) checkLeaf(node *Node, isRoot bool, lo, hi []byte, depth int) error {
	if v.leafDepth == -1 {
		v.leafDepth = depth
	} else if v.leafDepth != depth {
		return v.fail(node.Offset, "leaf at depth %d, expected %d", depth, v.leafDepth)
	}

	if !isRoot && len(node.Pairs) < v.tree.minLeafPairs {
		return v.fail(node.Offset, "%d pairs, minimum %d", len(node.Pairs), v.tree.minLeafPairs)
	}
	if len(node.Pairs) > v.tree.maxLeafPairs {
		return v.fail(node.Offset, "%d pairs, maximum %d", len(node.Pairs), v.tree.maxLeafPairs)
	}

	for i, kv := range node.Pairs {
		if i > 0 && bytes.Compare(node.Pairs[i-1].Key, kv.Key) >= 0 {
			return v.fail(node.Offset, "pair %d key %q not above %q", i, kv.Key, node.Pairs[i-1].Key)
		}
		if err := v.inRange(node.Offset, kv.Key, lo, hi); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) checkInternal(node *Node, isRoot bool, lo, hi []byte, depth int) error {
	if !node.hasValidShape() {
		return v.fail(node.Offset, "%d children with %d keys", len(node.Children), len(node.Keys))
	}

	minChildren := v.tree.minChildren
	if isRoot {
		minChildren = 2
	}
	if len(node.Children) < minChildren {
		return v.fail(node.Offset, "%d children, minimum %d", len(node.Children), minChildren)
	}
	if len(node.Children) > v.tree.maxChildren {
		return v.fail(node.Offset, "%d children, maximum %d", len(node.Children), v.tree.maxChildren)
	}

	for i, key := range node.Keys {
		if i > 0 && bytes.Compare(node.Keys[i-1], key) >= 0 {
			return v.fail(node.Offset, "key %d %q not above %q", i, key, node.Keys[i-1])
		}
		if err := v.inRange(node.Offset, key, lo, hi); err != nil {
			return err
		}
	}

	for i, child := range node.Children {
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = node.Keys[i-1]
		}
		if i < len(node.Keys) {
			childHi = node.Keys[i]
		}
		if err := v.check(child, node.Offset, childLo, childHi, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) inRange(off storage.Offset, key, lo, hi []byte) error {
	if lo != nil && bytes.Compare(key, lo) < 0 {
		return v.fail(off, "key %q below separator %q", key, lo)
	}
	if hi != nil && bytes.Compare(key, hi) >= 0 {
		return v.fail(off, "key %q not below separator %q", key, hi)
	}
	return nil
}
