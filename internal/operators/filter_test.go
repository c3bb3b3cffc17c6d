package operators

import (
	"testing"

	"github.com/relstore/relstore/internal/core"
)

func TestFilter_YieldsOnlyMatchingTuples(t *testing.T) {
	hf, desc, pool := heapEnv(t)
	tid := core.NewTxID()
	for i := 0; i < 10; i++ {
		tup, _ := core.NewTuple(desc, core.IntField{Value: int32(i)}, core.IntField{Value: int32(i)})
		if err := hf.InsertTuple(tid, pool, tup); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	f := NewFilter(NewSeqScan(tid, pool, hf), 0, FilterGe, core.IntField{Value: 5})
	count := 0
	for {
		tup, err := f.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tup == nil {
			break
		}
		if tup.Fields[0].(core.IntField).Value < 5 {
			t.Fatalf("filter leaked a non-matching tuple: %v", tup)
		}
		count++
	}
	if count != 5 {
		t.Fatalf("filtered %d tuples, want 5", count)
	}
}
