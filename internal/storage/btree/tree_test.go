package btree

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/pagedb/internal/storage"
)

var errDisk = errors.New("disk on fire")

// createTestTree creates a tree over a fresh MemoryPager.
func createTestTree(t *testing.T, maxLeafPairs, maxChildren int) (*BTree, *storage.MemoryPager) {
	t.Helper()

	pager := storage.NewMemoryPager()
	tree, err := New(pager, Options{MaxLeafPairs: maxLeafPairs, MaxChildren: maxChildren})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	return tree, pager
}

func mustInsert(t *testing.T, tree *BTree, key, value string) {
	t.Helper()
	if err := tree.Insert([]byte(key), []byte(value)); err != nil {
		t.Fatalf("Insert(%q) failed: %v", key, err)
	}
}

func mustVerify(t *testing.T, tree *BTree) {
	t.Helper()
	if err := tree.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func mustStats(t *testing.T, tree *BTree) TreeStats {
	t.Helper()
	stats, err := tree.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	return stats
}

func expectValue(t *testing.T, tree *BTree, key, want string) {
	t.Helper()
	got, err := tree.Search([]byte(key))
	if err != nil {
		t.Fatalf("Search(%q) failed: %v", key, err)
	}
	if string(got) != want {
		t.Errorf("Search(%q) = %q, want %q", key, got, want)
	}
}

// =============================================================================
// Creation Tests
// =============================================================================

func TestNewTree(t *testing.T) {
	tree, pager := createTestTree(t, 0, 0)

	if tree.Root() == storage.NilOffset {
		t.Error("root should not be the nil offset")
	}
	if pager.AllocatedPages() != 1 {
		t.Errorf("AllocatedPages() = %d, want 1", pager.AllocatedPages())
	}
	if leaf, children := tree.Capacities(); leaf != MaxLeafPairs || children != MaxInternalChildren {
		t.Errorf("Capacities() = %d, %d, want page-fit maximums", leaf, children)
	}

	n, err := tree.Len()
	if err != nil || n != 0 {
		t.Errorf("Len() = %d, %v, want 0", n, err)
	}
	mustVerify(t, tree)
}

func TestNewTreeInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"leaf too small", Options{MaxLeafPairs: 1}},
		{"leaf too large", Options{MaxLeafPairs: MaxLeafPairs + 1}},
		{"internal too small", Options{MaxChildren: 2}},
		{"internal too large", Options{MaxChildren: MaxInternalChildren + 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(storage.NewMemoryPager(), tt.opts); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("New error = %v, want ErrInvalidOptions", err)
			}
		})
	}

	if _, err := New(nil, Options{}); !errors.Is(err, ErrInvalidPager) {
		t.Errorf("New(nil) error = %v, want ErrInvalidPager", err)
	}
}

// =============================================================================
// Basic Operation Tests
// =============================================================================

func TestInsertSearchDelete(t *testing.T) {
	tree, _ := createTestTree(t, 0, 0)

	mustInsert(t, tree, "apple", "1")
	mustInsert(t, tree, "banana", "2")
	mustInsert(t, tree, "cherry", "3")

	expectValue(t, tree, "banana", "2")

	if err := tree.Delete([]byte("banana")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := tree.Search([]byte("banana")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Search after delete: got %v, want ErrNotFound", err)
	}

	expectValue(t, tree, "apple", "1")
	expectValue(t, tree, "cherry", "3")
	mustVerify(t, tree)
}

func TestInsertReplacesValue(t *testing.T) {
	tree, _ := createTestTree(t, 0, 0)

	mustInsert(t, tree, "key", "old")
	mustInsert(t, tree, "key", "new")

	expectValue(t, tree, "key", "new")
	if n, _ := tree.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestSearchMissing(t *testing.T) {
	tree, _ := createTestTree(t, 0, 0)
	mustInsert(t, tree, "present", "x")

	tests := []struct {
		name    string
		key     []byte
		wantErr error
	}{
		{"absent", []byte("absent"), ErrNotFound},
		{"empty", nil, ErrEmptyKey},
		{"longer than any slot", bytes.Repeat([]byte("k"), KeySize+1), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tree.Search(tt.key); !errors.Is(err, tt.wantErr) {
				t.Errorf("Search error = %v, want %v", err, tt.wantErr)
			}
			if err := tree.Delete(tt.key); !errors.Is(err, tt.wantErr) {
				t.Errorf("Delete error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	ok, err := tree.Contains([]byte("present"))
	if err != nil || !ok {
		t.Errorf("Contains(present) = %v, %v, want true", ok, err)
	}
	ok, err = tree.Contains([]byte("absent"))
	if err != nil || ok {
		t.Errorf("Contains(absent) = %v, %v, want false", ok, err)
	}
}

func TestInsertRejectsInvalidInput(t *testing.T) {
	tree, pager := createTestTree(t, 2, 3)
	for i := 0; i < 5; i++ {
		mustInsert(t, tree, fmt.Sprintf("k%d", i), "v")
	}
	pagesBefore := pager.AllocatedPages()

	tests := []struct {
		name    string
		key     []byte
		value   []byte
		wantErr error
	}{
		{"empty key", nil, []byte("v"), ErrEmptyKey},
		{"key too long", bytes.Repeat([]byte("k"), KeySize+1), []byte("v"), ErrKeyTooLong},
		{"value too long", []byte("k9"), bytes.Repeat([]byte("v"), ValueSize+1), ErrValueTooLong},
		{"invalid UTF-8 key", []byte{0xff, 0xfe}, []byte("v"), ErrEncoding},
		{"NUL in key", []byte("a\x00b"), []byte("v"), ErrEncoding},
		{"NUL in value", []byte("k9"), []byte("v\x00"), ErrEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tree.Insert(tt.key, tt.value); !errors.Is(err, tt.wantErr) {
				t.Errorf("Insert error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if n, _ := tree.Len(); n != 5 {
		t.Errorf("Len() = %d, want 5 after rejected inserts", n)
	}
	if pager.AllocatedPages() != pagesBefore {
		t.Errorf("AllocatedPages() = %d, want %d", pager.AllocatedPages(), pagesBefore)
	}
	mustVerify(t, tree)
}

func TestMaxSizedKeyAndValue(t *testing.T) {
	tree, _ := createTestTree(t, 0, 0)

	key := strings.Repeat("k", KeySize)
	value := strings.Repeat("v", ValueSize)
	mustInsert(t, tree, key, value)
	expectValue(t, tree, key, value)
}

// =============================================================================
// Split and Merge Tests
// =============================================================================

func TestLeafSplitPreservesCount(t *testing.T) {
	tree, pager := createTestTree(t, 4, 4)

	for _, k := range []string{"a", "b", "c", "d"} {
		mustInsert(t, tree, k, "v"+k)
	}
	before := mustStats(t, tree)
	if before.LeafNodes != 1 || before.Pairs != 4 {
		t.Fatalf("before split: %+v", before)
	}
	oldRoot := tree.Root()

	mustInsert(t, tree, "e", "ve")

	after := mustStats(t, tree)
	if after.Pairs != before.Pairs+1 {
		t.Errorf("Pairs = %d, want %d", after.Pairs, before.Pairs+1)
	}
	if after.LeafNodes != 2 || after.InternalNodes != 1 || after.Height != 2 {
		t.Errorf("after split: %+v, want 2 leaves under 1 root", after)
	}
	if tree.Root() == oldRoot {
		t.Error("root split should allocate a new root")
	}
	if pager.AllocatedPages() != 3 {
		t.Errorf("AllocatedPages() = %d, want 3", pager.AllocatedPages())
	}

	root, err := tree.readNode(tree.Root())
	if err != nil {
		t.Fatalf("readNode failed: %v", err)
	}
	if len(root.Keys) != 1 || string(root.Keys[0]) != "d" {
		t.Errorf("root keys = %q, want [d]", root.Keys)
	}
	if root.Children[0] != oldRoot {
		t.Error("lower half should keep the original leaf offset")
	}

	left, _ := tree.readNode(root.Children[0])
	right, _ := tree.readNode(root.Children[1])
	if left.Parent != tree.Root() || right.Parent != tree.Root() || left.IsRoot || right.IsRoot {
		t.Error("split leaves should point at the new root")
	}

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		expectValue(t, tree, k, "v"+k)
	}
	mustVerify(t, tree)
}

func TestBorrowAndMerge(t *testing.T) {
	tree, pager := createTestTree(t, 4, 4)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		mustInsert(t, tree, k, "v"+k)
	}
	// leaves: [a b c] [d e]

	// right leaf underflows and borrows "c" from the left
	if err := tree.Delete([]byte("e")); err != nil {
		t.Fatalf("Delete(e) failed: %v", err)
	}
	root, _ := tree.readNode(tree.Root())
	if string(root.Keys[0]) != "c" {
		t.Errorf("separator after borrow = %q, want c", root.Keys[0])
	}
	stats := mustStats(t, tree)
	if stats.LeafNodes != 2 || stats.Pairs != 4 {
		t.Errorf("after borrow: %+v", stats)
	}
	mustVerify(t, tree)

	// neither sibling can lend: merge, then the root collapses
	before := mustStats(t, tree)
	if err := tree.Delete([]byte("d")); err != nil {
		t.Fatalf("Delete(d) failed: %v", err)
	}
	after := mustStats(t, tree)
	if after.Pairs != before.Pairs-1 {
		t.Errorf("Pairs = %d, want %d", after.Pairs, before.Pairs-1)
	}
	if after.Height != 1 || after.LeafNodes != 1 || after.InternalNodes != 0 {
		t.Errorf("after merge: %+v, want a single root leaf", after)
	}
	if pager.AllocatedPages() != 1 {
		t.Errorf("AllocatedPages() = %d, want 1 after collapse", pager.AllocatedPages())
	}

	rootLeaf, _ := tree.readNode(tree.Root())
	if !rootLeaf.IsRoot || rootLeaf.Parent != storage.NilOffset {
		t.Error("collapsed child should become the root")
	}
	for _, k := range []string{"a", "b", "c"} {
		expectValue(t, tree, k, "v"+k)
	}
	mustVerify(t, tree)
}

func TestDeepTreeInternalSplitsAndMerges(t *testing.T) {
	tree, pager := createTestTree(t, 2, 3)

	const n = 200
	for i := 0; i < n; i++ {
		mustInsert(t, tree, fmt.Sprintf("key-%04d", i), fmt.Sprintf("value-%d", i))
	}
	mustVerify(t, tree)

	stats := mustStats(t, tree)
	if stats.Pairs != n {
		t.Errorf("Pairs = %d, want %d", stats.Pairs, n)
	}
	if stats.Height < 4 {
		t.Errorf("Height = %d, want at least 4 with tiny nodes", stats.Height)
	}
	if h, _ := tree.Height(); h != stats.Height {
		t.Errorf("Height() = %d, Stats().Height = %d", h, stats.Height)
	}

	for i := 0; i < n; i++ {
		if err := tree.Delete([]byte(fmt.Sprintf("key-%04d", i))); err != nil {
			t.Fatalf("Delete(%d) failed: %v", i, err)
		}
		if i%25 == 0 {
			mustVerify(t, tree)
		}
	}

	stats = mustStats(t, tree)
	if stats.Pairs != 0 || stats.Height != 1 {
		t.Errorf("after deleting everything: %+v", stats)
	}
	if pager.AllocatedPages() != 1 {
		t.Errorf("AllocatedPages() = %d, want 1", pager.AllocatedPages())
	}
	mustVerify(t, tree)
}

func TestRandomOperationsMatchMap(t *testing.T) {
	capacities := []struct{ leaf, children int }{
		{2, 3},
		{3, 4},
		{5, 5},
		{MaxLeafPairs, MaxInternalChildren},
	}

	for _, c := range capacities {
		t.Run(fmt.Sprintf("leaf%d_children%d", c.leaf, c.children), func(t *testing.T) {
			tree, _ := createTestTree(t, c.leaf, c.children)
			rng := rand.New(rand.NewSource(42))
			want := make(map[string]string)

			for op := 0; op < 2000; op++ {
				key := fmt.Sprintf("k%03d", rng.Intn(300))
				if rng.Intn(3) == 0 {
					err := tree.Delete([]byte(key))
					if _, ok := want[key]; ok {
						if err != nil {
							t.Fatalf("op %d: Delete(%q) failed: %v", op, key, err)
						}
						delete(want, key)
					} else if !errors.Is(err, ErrNotFound) {
						t.Fatalf("op %d: Delete(%q) = %v, want ErrNotFound", op, key, err)
					}
				} else {
					value := fmt.Sprintf("v%d", op)
					mustInsert(t, tree, key, value)
					want[key] = value
				}
			}
			mustVerify(t, tree)

			for key, value := range want {
				expectValue(t, tree, key, value)
			}
			if n, _ := tree.Len(); n != len(want) {
				t.Errorf("Len() = %d, want %d", n, len(want))
			}
		})
	}
}

// =============================================================================
// Scan Tests
// =============================================================================

func TestScan(t *testing.T) {
	tree, _ := createTestTree(t, 2, 3)

	var keys []string
	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("%02d", (i*7)%50)
		keys = append(keys, k)
		mustInsert(t, tree, k, "v"+k)
	}
	sort.Strings(keys)

	collect := func(start, end []byte, limit int) []string {
		var got []string
		err := tree.Scan(start, end, func(key, value []byte) bool {
			if string(value) != "v"+string(key) {
				t.Errorf("value for %q = %q", key, value)
			}
			got = append(got, string(key))
			return limit == 0 || len(got) < limit
		})
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		return got
	}

	tests := []struct {
		name       string
		start, end []byte
		limit      int
		want       []string
	}{
		{"everything", nil, nil, 0, keys},
		{"bounded", []byte("10"), []byte("15"), 0, []string{"10", "11", "12", "13", "14"}},
		{"open end", []byte("47"), nil, 0, []string{"47", "48", "49"}},
		{"open start", nil, []byte("03"), 0, []string{"00", "01", "02"}},
		{"start between keys", []byte("095"), []byte("11"), 0, []string{"10"}},
		{"empty range", []byte("30"), []byte("30"), 0, nil},
		{"stopped early", []byte("20"), nil, 3, []string{"20", "21", "22"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(tt.start, tt.end, tt.limit)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Scan = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Failure Tests
// =============================================================================

func TestPagerErrorsPropagate(t *testing.T) {
	tree, pager := createTestTree(t, 2, 3)
	for i := 0; i < 10; i++ {
		mustInsert(t, tree, fmt.Sprintf("k%d", i), "v")
	}

	pager.FailOn = func(op string, _ storage.Offset) error {
		if op == "read" {
			return errDisk
		}
		return nil
	}
	if _, err := tree.Search([]byte("k1")); !errors.Is(err, storage.ErrIO) || !errors.Is(err, errDisk) {
		t.Errorf("Search error = %v, want ErrIO", err)
	}

	pager.FailOn = func(op string, _ storage.Offset) error {
		if op == "write" {
			return errDisk
		}
		return nil
	}
	if err := tree.Insert([]byte("k5"), []byte("x")); !errors.Is(err, storage.ErrIO) {
		t.Errorf("Insert error = %v, want ErrIO", err)
	}

	pager.FailOn = func(op string, _ storage.Offset) error {
		if op == "allocate" {
			return errDisk
		}
		return nil
	}
	// k9 sits in a full leaf, so this insert must split
	if err := tree.Insert([]byte("k99"), []byte("x")); !errors.Is(err, storage.ErrIO) {
		t.Errorf("Insert needing a split error = %v, want ErrIO", err)
	}
}

func TestCorruptNodeMidDescent(t *testing.T) {
	tree, pager := createTestTree(t, 2, 3)
	for i := 0; i < 10; i++ {
		mustInsert(t, tree, fmt.Sprintf("k%d", i), "v")
	}

	root, err := tree.readNode(tree.Root())
	if err != nil {
		t.Fatalf("readNode failed: %v", err)
	}
	victim := root.Children[len(root.Children)-1]

	page, _ := pager.ReadPage(victim)
	raw := page.Bytes()
	raw[NodeTypeOffset] = 0xFF
	if err := pager.Corrupt(victim, raw); err != nil {
		t.Fatalf("Corrupt failed: %v", err)
	}

	_, err = tree.Search([]byte("k9"))
	if !errors.Is(err, ErrCorruptTree) || !errors.Is(err, ErrInvalidNodeType) {
		t.Errorf("Search error = %v, want ErrCorruptTree wrapping ErrInvalidNodeType", err)
	}
	if err := tree.Verify(); !errors.Is(err, ErrCorruptTree) {
		t.Errorf("Verify error = %v, want ErrCorruptTree", err)
	}

	// keys in the untouched subtree are still reachable
	expectValue(t, tree, "k0", "v")

	if err := pager.Corrupt(victim, raw[:12]); err != nil {
		t.Fatalf("Corrupt failed: %v", err)
	}
	_, err = tree.Search([]byte("k9"))
	if !errors.Is(err, ErrCorruptTree) || !errors.Is(err, storage.ErrOutOfBounds) {
		t.Errorf("Search on truncated page error = %v, want ErrCorruptTree wrapping ErrOutOfBounds", err)
	}
}

func TestChildPointerCycle(t *testing.T) {
	tree, _ := createTestTree(t, 2, 3)

	root := NewInternalNode(tree.Root())
	root.IsRoot = true
	root.Keys = [][]byte{[]byte("m")}
	root.Children = []storage.Offset{tree.Root(), tree.Root()}
	if err := tree.writeNode(root); err != nil {
		t.Fatalf("writeNode failed: %v", err)
	}

	ops := []struct {
		name string
		run  func() error
	}{
		{"Search", func() error { _, err := tree.Search([]byte("a")); return err }},
		{"Insert", func() error { return tree.Insert([]byte("a"), []byte("v")) }},
		{"Delete", func() error { return tree.Delete([]byte("z")) }},
		{"Scan", func() error { return tree.Scan(nil, nil, func(k, v []byte) bool { return true }) }},
		{"Height", func() error { _, err := tree.Height(); return err }},
		{"Stats", func() error { _, err := tree.Stats(); return err }},
		{"Verify", tree.Verify},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			done := make(chan error, 1)
			go func() { done <- op.run() }()

			select {
			case err := <-done:
				if !errors.Is(err, ErrCorruptTree) {
					t.Errorf("%s error = %v, want ErrCorruptTree", op.name, err)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("%s did not return on a self-referencing root", op.name)
			}
		})
	}
}

func TestVerifyDetectsBadParentPointer(t *testing.T) {
	tree, _ := createTestTree(t, 2, 3)
	for i := 0; i < 6; i++ {
		mustInsert(t, tree, fmt.Sprintf("k%d", i), "v")
	}

	root, _ := tree.readNode(tree.Root())
	child, _ := tree.readNode(root.Children[0])
	child.Parent = root.Children[1]
	if err := tree.writeNode(child); err != nil {
		t.Fatalf("writeNode failed: %v", err)
	}

	if err := tree.Verify(); !errors.Is(err, ErrCorruptTree) {
		t.Errorf("Verify error = %v, want ErrCorruptTree", err)
	}
	// descent ignores parent pointers
	expectValue(t, tree, "k0", "v")
}

// =============================================================================
// Persistence Tests
// =============================================================================

func TestOpenExistingTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")
	opts := Options{MaxLeafPairs: 3, MaxChildren: 4}

	pm, err := storage.OpenPageManager(path, storage.DefaultOptions())
	if err != nil {
		t.Fatalf("OpenPageManager failed: %v", err)
	}
	tree, err := New(pm, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for i := 0; i < 100; i++ {
		mustInsert(t, tree, fmt.Sprintf("key-%03d", i), fmt.Sprintf("value-%03d", i))
	}
	for i := 0; i < 100; i += 3 {
		if err := tree.Delete([]byte(fmt.Sprintf("key-%03d", i))); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	}
	if err := pm.SetRoot(tree.Root()); err != nil {
		t.Fatalf("SetRoot failed: %v", err)
	}
	if err := pm.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	pm, err = storage.OpenPageManager(path, storage.DefaultOptions())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer pm.Close()

	tree, err = Open(pm, pm.Root(), opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	mustVerify(t, tree)

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%03d", i)
		_, err := tree.Search([]byte(key))
		if i%3 == 0 {
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Search(%q) = %v, want ErrNotFound", key, err)
			}
			continue
		}
		expectValue(t, tree, key, fmt.Sprintf("value-%03d", i))
	}
}

func TestOpenRejectsNonRoot(t *testing.T) {
	tree, pager := createTestTree(t, 2, 3)
	for i := 0; i < 5; i++ {
		mustInsert(t, tree, fmt.Sprintf("k%d", i), "v")
	}
	root, _ := tree.readNode(tree.Root())

	if _, err := Open(pager, root.Children[0], Options{MaxLeafPairs: 2, MaxChildren: 3}); !errors.Is(err, ErrCorruptTree) {
		t.Errorf("Open(child) error = %v, want ErrCorruptTree", err)
	}
	if _, err := Open(pager, storage.NilOffset, Options{}); !errors.Is(err, ErrCorruptTree) {
		t.Errorf("Open(nil) error = %v, want ErrCorruptTree", err)
	}
}
