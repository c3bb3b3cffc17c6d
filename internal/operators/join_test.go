package operators

import (
	"path/filepath"
	"testing"

	"github.com/relstore/relstore/internal/core"
)

func TestJoin_NestedLoopEquiJoin(t *testing.T) {
	desc := twoIntDesc(t)
	leftPath := filepath.Join(t.TempDir(), "left.heap")
	rightPath := filepath.Join(t.TempDir(), "right.heap")
	left, err := core.OpenHeapFile(leftPath, desc, 4096)
	if err != nil {
		t.Fatalf("OpenHeapFile left: %v", err)
	}
	right, err := core.OpenHeapFile(rightPath, desc, 4096)
	if err != nil {
		t.Fatalf("OpenHeapFile right: %v", err)
	}
	cat := core.NewTableCatalog()
	cat.RegisterTable("left", left, desc)
	cat.RegisterTable("right", right, desc)
	cfg := core.DefaultConfig()
	pool := core.NewBufferPool(cfg, cat, core.NewLockManager(cfg))

	tid := core.NewTxID()
	for i := 0; i < 5; i++ {
		lt, _ := core.NewTuple(desc, core.IntField{Value: int32(i)}, core.IntField{Value: int32(100 + i)})
		if err := left.InsertTuple(tid, pool, lt); err != nil {
			t.Fatalf("insert left %d: %v", i, err)
		}
	}
	for i := 2; i < 7; i++ {
		rt, _ := core.NewTuple(desc, core.IntField{Value: int32(i)}, core.IntField{Value: int32(200 + i)})
		if err := right.InsertTuple(tid, pool, rt); err != nil {
			t.Fatalf("insert right %d: %v", i, err)
		}
	}

	outDesc, err := core.NewTupleDesc(
		core.FieldDesc{Name: "a", Type: core.IntType},
		core.FieldDesc{Name: "b", Type: core.IntType},
		core.FieldDesc{Name: "c", Type: core.IntType},
		core.FieldDesc{Name: "d", Type: core.IntType},
	)
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}

	j := NewJoin(NewSeqScan(tid, pool, left), NewSeqScan(tid, pool, right), 0, 0, outDesc)
	count := 0
	for {
		tup, err := j.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tup == nil {
			break
		}
		if len(tup.Fields) != 4 {
			t.Fatalf("joined tuple has %d fields, want 4", len(tup.Fields))
		}
		a := tup.Fields[0].(core.IntField).Value
		c := tup.Fields[2].(core.IntField).Value
		if a != c {
			t.Fatalf("join key mismatch: %d != %d", a, c)
		}
		count++
	}
	// keys 2,3,4 are present on both sides -> 3 matches
	if count != 3 {
		t.Fatalf("joined %d rows, want 3", count)
	}
}
