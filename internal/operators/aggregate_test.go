package operators

import (
	"testing"

	"github.com/relstore/relstore/internal/core"
)

func countDesc(t *testing.T) *core.TupleDesc {
	t.Helper()
	d, err := core.NewTupleDesc(core.FieldDesc{Name: "result", Type: core.IntType})
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return d
}

func TestAggregate_SumAndCountAndMinMax(t *testing.T) {
	hf, desc, pool := heapEnv(t)
	tid := core.NewTxID()
	values := []int32{3, 1, 4, 1, 5, 9, 2, 6}
	for _, v := range values {
		tup, _ := core.NewTuple(desc, core.IntField{Value: v}, core.IntField{Value: 0})
		if err := hf.InsertTuple(tid, pool, tup); err != nil {
			t.Fatalf("insert %d: %v", v, err)
		}
	}
	outDesc := countDesc(t)

	cnt := NewAggregate(NewSeqScan(tid, pool, hf), 0, AggCount, outDesc)
	res, err := cnt.Next()
	if err != nil {
		t.Fatalf("count Next: %v", err)
	}
	if res.Fields[0].(core.IntField).Value != int32(len(values)) {
		t.Fatalf("count = %v, want %d", res.Fields[0], len(values))
	}
	if next, _ := cnt.Next(); next != nil {
		t.Fatal("expected a single aggregate result row")
	}

	sum := NewAggregate(NewSeqScan(tid, pool, hf), 0, AggSum, outDesc)
	res, err = sum.Next()
	if err != nil {
		t.Fatalf("sum Next: %v", err)
	}
	var want int32
	for _, v := range values {
		want += v
	}
	if res.Fields[0].(core.IntField).Value != want {
		t.Fatalf("sum = %v, want %d", res.Fields[0], want)
	}

	mn := NewAggregate(NewSeqScan(tid, pool, hf), 0, AggMin, outDesc)
	res, err = mn.Next()
	if err != nil {
		t.Fatalf("min Next: %v", err)
	}
	if res.Fields[0].(core.IntField).Value != 1 {
		t.Fatalf("min = %v, want 1", res.Fields[0])
	}

	mx := NewAggregate(NewSeqScan(tid, pool, hf), 0, AggMax, outDesc)
	res, err = mx.Next()
	if err != nil {
		t.Fatalf("max Next: %v", err)
	}
	if res.Fields[0].(core.IntField).Value != 9 {
		t.Fatalf("max = %v, want 9", res.Fields[0])
	}
}
