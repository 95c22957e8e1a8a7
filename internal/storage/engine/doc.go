// Package engine implements the pagedb embedded key-value store on top of
// a file-backed B+Tree.
//
// # Overview
//
// A DB owns one store file inside its directory:
//
//   - storage.PageManager for pages, the free list and the root offset
//   - storage.CachedPager as an optional LRU page cache
//   - btree.BTree for the keys and values
//
// Every call takes one exclusive lock and is logged with its own
// operation ID.
//
// # Usage
//
//	db, err := engine.Open("/var/lib/pagedb", engine.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = db.Put([]byte("apple"), []byte("1"))
//	value, err := db.Get([]byte("apple"))
//	err = db.Delete([]byte("apple"))
package engine
