package core

import (
	"path/filepath"
	"testing"
)

// smallKeyDesc uses a tiny page size so a handful of inserts forces splits,
// keeping these tests fast without needing thousands of rows.
func smallKeyDesc(t *testing.T) *TupleDesc {
	t.Helper()
	d, err := NewTupleDesc(
		FieldDesc{Name: "k", Type: IntType},
		FieldDesc{Name: "v", Type: IntType},
	)
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return d
}

func newTestBTreeEnv(t *testing.T, pageSize int) (*BTreeFile, *TupleDesc, *BufferPool) {
	t.Helper()
	desc := smallKeyDesc(t)
	path := filepath.Join(t.TempDir(), "index.btree")
	bf, err := OpenBTreeFile(path, desc, 0, pageSize)
	if err != nil {
		t.Fatalf("OpenBTreeFile: %v", err)
	}
	cat := NewTableCatalog()
	cat.RegisterTable("idx", bf, desc)
	cfg := DefaultConfig()
	cfg.PageSize = pageSize
	pool := NewBufferPool(cfg, cat, NewLockManager(cfg))
	return bf, desc, pool
}

func TestBTreeFile_InsertAndFindLeaf(t *testing.T) {
	bf, desc, pool := newTestBTreeEnv(t, 128)
	tid := NewTxID()

	tup, _ := NewTuple(desc, IntField{Value: 1}, IntField{Value: 100})
	if err := bf.InsertTuple(tid, pool, tup); err != nil {
		t.Fatalf("insert: %v", err)
	}

	leaf, err := bf.FindLeaf(tid, pool, IntField{Value: 1}, Shared)
	if err != nil {
		t.Fatalf("FindLeaf: %v", err)
	}
	if leaf.NumTuples() != 1 {
		t.Fatalf("leaf has %d tuples, want 1", leaf.NumTuples())
	}
}

func TestBTreeFile_InsertManyForcesSplitsAndStaysSorted(t *testing.T) {
	bf, desc, pool := newTestBTreeEnv(t, 128)
	tid := NewTxID()

	const n = 200
	for i := n - 1; i >= 0; i-- {
		tup, _ := NewTuple(desc, IntField{Value: int32(i)}, IntField{Value: int32(i * 10)})
		if err := bf.InsertTuple(tid, pool, tup); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	it := bf.Iterator(tid, pool)
	prev := int32(-1)
	count := 0
	for {
		tup, err := it.Next()
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		if tup == nil {
			break
		}
		k := tup.Fields[0].(IntField).Value
		if k <= prev {
			t.Fatalf("key order violated: %d after %d", k, prev)
		}
		prev = k
		count++
	}
	if count != n {
		t.Fatalf("iterated %d tuples, want %d", count, n)
	}
	if bf.NumPages() < 3 {
		t.Fatalf("expected multiple leaf/internal pages for %d rows on 128-byte pages, got %d total pages", n, bf.NumPages())
	}
}

func TestBTreeFile_DeleteTriggersMergeAndStaysSorted(t *testing.T) {
	bf, desc, pool := newTestBTreeEnv(t, 128)
	tid := NewTxID()

	const n = 150
	var tuples []*Tuple
	for i := 0; i < n; i++ {
		tup, _ := NewTuple(desc, IntField{Value: int32(i)}, IntField{Value: int32(i)})
		if err := bf.InsertTuple(tid, pool, tup); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		tuples = append(tuples, tup)
	}

	// Delete every tuple with an even key, which should force steals and
	// merges across many leaves.
	for i := 0; i < n; i += 2 {
		if err := bf.DeleteTuple(tid, pool, tuples[i]); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}

	it := bf.Iterator(tid, pool)
	prev := int32(-1)
	count := 0
	for {
		tup, err := it.Next()
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		if tup == nil {
			break
		}
		k := tup.Fields[0].(IntField).Value
		if k <= prev {
			t.Fatalf("key order violated after deletes: %d after %d", k, prev)
		}
		if k%2 == 0 {
			t.Fatalf("found deleted even key %d still present", k)
		}
		prev = k
		count++
	}
	if count != n/2 {
		t.Fatalf("iterated %d tuples after deleting half, want %d", count, n/2)
	}
}

func TestBTreeFile_RangeIteratorEquality(t *testing.T) {
	bf, desc, pool := newTestBTreeEnv(t, 128)
	tid := NewTxID()
	for i := 0; i < 50; i++ {
		tup, _ := NewTuple(desc, IntField{Value: int32(i)}, IntField{Value: int32(i)})
		if err := bf.InsertTuple(tid, pool, tup); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	it, err := bf.RangeIterator(tid, pool, OpEq, IntField{Value: 25})
	if err != nil {
		t.Fatalf("RangeIterator: %v", err)
	}
	tup, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tup == nil || tup.Fields[0].(IntField).Value != 25 {
		t.Fatalf("expected key 25, got %v", tup)
	}
	next, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if next != nil {
		t.Fatal("expected exactly one match for an equality range scan")
	}
}

func TestBTreeFile_RangeIteratorGreaterThanExcludesEqual(t *testing.T) {
	bf, desc, pool := newTestBTreeEnv(t, 128)
	tid := NewTxID()
	for i := 0; i < 20; i++ {
		tup, _ := NewTuple(desc, IntField{Value: int32(i)}, IntField{Value: int32(i)})
		if err := bf.InsertTuple(tid, pool, tup); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	it, err := bf.RangeIterator(tid, pool, OpGt, IntField{Value: 7})
	if err != nil {
		t.Fatalf("RangeIterator: %v", err)
	}
	prev := int32(7)
	count := 0
	for {
		tup, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tup == nil {
			break
		}
		k := tup.Fields[0].(IntField).Value
		if k <= 7 {
			t.Fatalf("OpGt yielded key %d, which is not greater than 7", k)
		}
		if k <= prev {
			t.Fatalf("key order violated: %d after %d", k, prev)
		}
		prev = k
		count++
	}
	if count != 12 {
		t.Fatalf("OpGt scanned %d keys, want 12 (8..19)", count)
	}
}
