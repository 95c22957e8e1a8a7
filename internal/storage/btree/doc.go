// Package btree implements the paged B+Tree at the core of pagedb.
//
// # Overview
//
// Every node occupies exactly one storage.Page and is re-read from the
// pager on every operation:
//
//   - O(log n) lookup, insertion, and deletion
//   - Median splits on overflow, borrow-or-merge on underflow
//   - In-order range scans by descent (nodes carry no sibling links)
//
// # Node Layout
//
// All integers are big-endian:
//
//	byte 0        node type (0 = internal, 1 = leaf)
//	byte 1        root flag (0/1)
//	bytes 2..10   parent offset, meaningful only when not root
//	bytes 10..18  num_children (internal) or num_pairs (leaf)
//	internal:     num_children × 8-byte child offsets, then
//	              (num_children-1) × KeySize separator keys
//	leaf:         num_pairs × (KeySize + ValueSize) key/value slots
//
// Key and value slots are zero-padded UTF-8, so keys and values may not
// contain NUL bytes.
//
// # Usage
//
//	tree, err := btree.New(pager, btree.DefaultOptions())
//
//	err = tree.Insert([]byte("apple"), []byte("1"))
//	value, err := tree.Search([]byte("apple"))
//	err = tree.Delete([]byte("apple"))
//
//	err = tree.Scan([]byte("a"), []byte("b"), func(k, v []byte) bool {
//	    return true
//	})
//
// Operations are serialized by a lock inside the tree. Splits and merges
// write several pages and are not atomic if the process dies midway.
package btree
