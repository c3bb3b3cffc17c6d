package operators

import (
	"path/filepath"
	"testing"

	"github.com/relstore/relstore/internal/core"
)

func twoIntDesc(t *testing.T) *core.TupleDesc {
	t.Helper()
	d, err := core.NewTupleDesc(
		core.FieldDesc{Name: "a", Type: core.IntType},
		core.FieldDesc{Name: "b", Type: core.IntType},
	)
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return d
}

// heapEnv builds a table + catalog + buffer pool, returning everything a
// scan/filter/join/aggregate test needs.
func heapEnv(t *testing.T) (*core.HeapFile, *core.TupleDesc, *core.BufferPool) {
	t.Helper()
	desc := twoIntDesc(t)
	path := filepath.Join(t.TempDir(), "t.heap")
	hf, err := core.OpenHeapFile(path, desc, 4096)
	if err != nil {
		t.Fatalf("OpenHeapFile: %v", err)
	}
	cat := core.NewTableCatalog()
	cat.RegisterTable("t", hf, desc)
	cfg := core.DefaultConfig()
	pool := core.NewBufferPool(cfg, cat, core.NewLockManager(cfg))
	return hf, desc, pool
}

func TestSeqScan_YieldsAllInsertedTuples(t *testing.T) {
	hf, desc, pool := heapEnv(t)
	tid := core.NewTxID()
	for i := 0; i < 5; i++ {
		tup, _ := core.NewTuple(desc, core.IntField{Value: int32(i)}, core.IntField{Value: int32(i * 2)})
		if err := hf.InsertTuple(tid, pool, tup); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	s := NewSeqScan(tid, pool, hf)
	count := 0
	for {
		tup, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tup == nil {
			break
		}
		count++
	}
	if count != 5 {
		t.Fatalf("scanned %d tuples, want 5", count)
	}

	s.Rewind()
	first, err := s.Next()
	if err != nil || first == nil {
		t.Fatalf("rewound scan failed to yield first tuple: %v", err)
	}
}
