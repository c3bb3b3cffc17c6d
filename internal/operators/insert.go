package operators

import "github.com/relstore/relstore/internal/core"

// Insert consumes its child iterator and writes each tuple into tableID
// via the buffer pool, yielding a single one-field tuple with the total
// rows inserted once the child is exhausted.
type Insert struct {
	tid     core.TxID
	pool    *core.BufferPool
	tableID int64
	child   Iterator
	outDesc *core.TupleDesc

	done bool
}

func NewInsert(tid core.TxID, pool *core.BufferPool, tableID int64, child Iterator, outDesc *core.TupleDesc) *Insert {
	return &Insert{tid: tid, pool: pool, tableID: tableID, child: child, outDesc: outDesc}
}

func (in *Insert) Rewind() { in.child.Rewind(); in.done = false }

func (in *Insert) Next() (*core.Tuple, error) {
	if in.done {
		return nil, nil
	}
	in.done = true

	var n int32
	for {
		t, err := in.child.Next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		if err := in.pool.InsertTuple(in.tid, in.tableID, t); err != nil {
			return nil, err
		}
		n++
	}
	return core.NewTuple(in.outDesc, core.IntField{Value: n})
}

var _ Iterator = (*Insert)(nil)
