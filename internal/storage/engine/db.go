// Package engine provides the pagedb embedded key-value store.
package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/KilimcininKorOglu/pagedb/internal/logging"
	"github.com/KilimcininKorOglu/pagedb/internal/storage"
	"github.com/KilimcininKorOglu/pagedb/internal/storage/btree"
)

// DataFileName is the store file inside the database directory.
const DataFileName = "data.pgdb"

// DB errors.
var (
	ErrDatabaseClosed   = errors.New("database is closed")
	ErrDatabaseReadOnly = errors.New("database is read-only")

	// ErrNotFound is returned by Get and Delete for absent keys.
	ErrNotFound = btree.ErrNotFound

	// ErrInvalidOptions is returned by Open for capacities that do not
	// match the store.
	ErrInvalidOptions = btree.ErrInvalidOptions
)

// Options configures a DB.
type Options struct {
	InitialPages      int  // Initial number of pages in a new store
	CreateIfNotExists bool // Create the directory and store if missing
	ReadOnly          bool // Reject mutations
	SyncOnWrite       bool // fsync after every page write
	CacheSize         int  // Pages held by the LRU cache, 0 disables it

	MaxLeafPairs int // Leaf capacity, 0 for the page-fit maximum
	MaxChildren  int // Internal node capacity, 0 for the page-fit maximum

	Logger logging.Logger
}

// DefaultOptions returns the default DB options.
func DefaultOptions() Options {
	return Options{
		InitialPages:      storage.DefaultInitialPages,
		CreateIfNotExists: true,
		CacheSize:         256,
		Logger:            logging.NewNop(),
	}
}

// DB is a single-process key-value store backed by one B+Tree file.
// All operations are serialized by one exclusive lock.
type DB struct {
	pageManager *storage.PageManager
	cache       *storage.CachedPager
	tree        *btree.BTree
	logger      logging.Logger

	path     string
	readOnly bool
	closed   bool
	mu       sync.Mutex
}

// Open opens or creates a database in the directory at path.
func Open(path string, opts Options) (*DB, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	if opts.CreateIfNotExists && !opts.ReadOnly {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, err
		}
	}

	db := &DB{
		path:     path,
		readOnly: opts.ReadOnly,
		logger:   opts.Logger,
	}

	pmOpts := storage.Options{
		InitialPages: opts.InitialPages,
		CreateIfNew:  opts.CreateIfNotExists,
		ReadOnly:     opts.ReadOnly,
		SyncOnWrite:  opts.SyncOnWrite,
	}

	var err error
	db.pageManager, err = storage.OpenPageManager(filepath.Join(path, DataFileName), pmOpts)
	if err != nil {
		return nil, err
	}

	var pager storage.Pager = db.pageManager
	if opts.CacheSize > 0 {
		db.cache = storage.NewCachedPager(db.pageManager, opts.CacheSize)
		pager = db.cache
	}

	treeOpts := btree.Options{
		MaxLeafPairs: opts.MaxLeafPairs,
		MaxChildren:  opts.MaxChildren,
		Logger:       opts.Logger,
	}

	if err := db.openTree(pager, treeOpts); err != nil {
		db.pageManager.Close()
		return nil, err
	}

	db.logger.Info("database opened",
		"path", path,
		"root", db.tree.Root(),
		"read_only", opts.ReadOnly,
		"cache_pages", opts.CacheSize)

	return db, nil
}

// openTree loads the tree recorded in the store header, creating an empty
// one in a new store.
func (db *DB) openTree(pager storage.Pager, opts btree.Options) error {
	root := db.pageManager.Root()
	if root != storage.NilOffset {
		if err := db.adoptCapacities(&opts); err != nil {
			return err
		}
		tree, err := btree.Open(pager, root, opts)
		if err != nil {
			return err
		}
		db.tree = tree
		return nil
	}

	if db.readOnly {
		return fmt.Errorf("%w: store has no tree", btree.ErrCorruptTree)
	}

	tree, err := btree.New(pager, opts)
	if err != nil {
		return err
	}
	db.tree = tree
	if err := db.pageManager.SetTreeCapacities(tree.Capacities()); err != nil {
		return err
	}
	return db.pageManager.SetRoot(tree.Root())
}

// adoptCapacities fills unset capacities from the store header and rejects
// explicit ones that differ from what the store was built with.
func (db *DB) adoptCapacities(opts *btree.Options) error {
	storedLeaf, storedChildren := db.pageManager.TreeCapacities()
	if err := adoptCapacity("leaf", &opts.MaxLeafPairs, storedLeaf); err != nil {
		return err
	}
	return adoptCapacity("internal", &opts.MaxChildren, storedChildren)
}

func adoptCapacity(kind string, want *int, stored int) error {
	switch {
	case stored == 0:
		return nil
	case *want == 0:
		*want = stored
		return nil
	case *want != stored:
		return fmt.Errorf("%w: store uses %s capacity %d, options ask for %d",
			btree.ErrInvalidOptions, kind, stored, *want)
	}
	return nil
}

// begin checks the DB state and returns a logger tagged with a fresh
// operation ID. Must be called with db.mu held.
func (db *DB) begin(write bool) (logging.Logger, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if write && db.readOnly {
		return nil, ErrDatabaseReadOnly
	}
	return db.logger.WithRequestID(logging.GenerateRequestID()), nil
}

// persistRoot records a root that moved during a split or collapse.
func (db *DB) persistRoot(log logging.Logger) error {
	root := db.tree.Root()
	if root == db.pageManager.Root() {
		return nil
	}
	if err := db.pageManager.SetRoot(root); err != nil {
		return err
	}
	log.Debug("root moved", "root", root)
	return nil
}

// report logs failures that are not a normal outcome.
func report(log logging.Logger, op string, err error) error {
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Error(op+" failed", "error", err)
	}
	return err
}

// Get returns the value stored under key.
func (db *DB) Get(key []byte) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	log, err := db.begin(false)
	if err != nil {
		return nil, err
	}

	value, err := db.tree.Search(key)
	log.Debug("get", "key", string(key), "found", err == nil)
	return value, report(log, "get", err)
}

// Put stores value under key, replacing any previous value.
func (db *DB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	log, err := db.begin(true)
	if err != nil {
		return err
	}

	if err := db.tree.Insert(key, value); err != nil {
		return report(log, "put", err)
	}
	log.Debug("put", "key", string(key), "value_len", len(value))
	return report(log, "put", db.persistRoot(log))
}

// Delete removes key.
func (db *DB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	log, err := db.begin(true)
	if err != nil {
		return err
	}

	if err := db.tree.Delete(key); err != nil {
		return report(log, "delete", err)
	}
	log.Debug("delete", "key", string(key))
	return report(log, "delete", db.persistRoot(log))
}

// Scan calls fn for each pair with start <= key < end in ascending order
// until fn returns false. Nil bounds are open. fn must not call back into
// the DB.
func (db *DB) Scan(start, end []byte, fn func(key, value []byte) bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	log, err := db.begin(false)
	if err != nil {
		return err
	}

	count := 0
	err = db.tree.Scan(start, end, func(key, value []byte) bool {
		count++
		return fn(key, value)
	})
	log.Debug("scan", "start", string(start), "end", string(end), "visited", count)
	return report(log, "scan", err)
}

// Stats describes the tree, the store file and the page cache.
type Stats struct {
	Tree  btree.TreeStats
	Pages storage.Stats
	Cache storage.CacheStats
}

// Stats returns current statistics.
func (db *DB) Stats() (Stats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.begin(false); err != nil {
		return Stats{}, err
	}

	treeStats, err := db.tree.Stats()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Tree:  treeStats,
		Pages: db.pageManager.Stats(),
	}
	if db.cache != nil {
		stats.Cache = db.cache.Stats()
	}
	return stats, nil
}

// Verify checks the structural invariants of the whole tree.
func (db *DB) Verify() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	log, err := db.begin(false)
	if err != nil {
		return err
	}
	return report(log, "verify", db.tree.Verify())
}

// Sync flushes the store file to disk.
func (db *DB) Sync() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}
	return db.pageManager.Sync()
}

// Path returns the database directory.
func (db *DB) Path() string {
	return db.path
}

// Close records the root and closes the store file.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}
	db.closed = true

	if !db.readOnly {
		if err := db.persistRoot(db.logger); err != nil {
			db.pageManager.Close()
			return err
		}
	}

	if err := db.pageManager.Close(); err != nil {
		return err
	}
	db.logger.Info("database closed", "path", db.path)
	return nil
}
