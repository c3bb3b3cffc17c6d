package operators

import "github.com/relstore/relstore/internal/core"

// Delete consumes its child iterator and removes each tuple (identified
// by its RecordID) via the buffer pool, yielding a single one-field
// tuple with the total rows deleted.
type Delete struct {
	tid     core.TxID
	pool    *core.BufferPool
	child   Iterator
	outDesc *core.TupleDesc

	done bool
}

func NewDelete(tid core.TxID, pool *core.BufferPool, child Iterator, outDesc *core.TupleDesc) *Delete {
	return &Delete{tid: tid, pool: pool, child: child, outDesc: outDesc}
}

func (d *Delete) Rewind() { d.child.Rewind(); d.done = false }

func (d *Delete) Next() (*core.Tuple, error) {
	if d.done {
		return nil, nil
	}
	d.done = true

	var n int32
	for {
		t, err := d.child.Next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		if err := d.pool.DeleteTuple(d.tid, t); err != nil {
			return nil, err
		}
		n++
	}
	return core.NewTuple(d.outDesc, core.IntField{Value: n})
}

var _ Iterator = (*Delete)(nil)
