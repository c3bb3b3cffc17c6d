package operators

import "github.com/relstore/relstore/internal/core"

// IndexScan yields tuples from a B+-tree file's leaf chain, optionally
// restricted to those matching a single comparison predicate on the
// indexed key field (an equality or range lookup seeks directly to the
// first matching leaf instead of walking the whole chain).
type IndexScan struct {
	full  *core.BTreeFileIterator
	rangeIt *core.RangeIterator
}

// NewIndexScan scans every tuple in key order.
func NewIndexScan(tid core.TxID, pool core.PagePool, bf *core.BTreeFile) *IndexScan {
	return &IndexScan{full: bf.Iterator(tid, pool)}
}

// NewIndexScanRange scans tuples matching op against v on the indexed key
// field.
func NewIndexScanRange(tid core.TxID, pool core.PagePool, bf *core.BTreeFile, op core.CompareOp, v core.Field) (*IndexScan, error) {
	it, err := bf.RangeIterator(tid, pool, op, v)
	if err != nil {
		return nil, err
	}
	return &IndexScan{rangeIt: it}, nil
}

func (s *IndexScan) Rewind() {
	if s.full != nil {
		s.full.Rewind()
		return
	}
	s.rangeIt.Rewind()
}

func (s *IndexScan) Next() (*core.Tuple, error) {
	if s.full != nil {
		return s.full.Next()
	}
	return s.rangeIt.Next()
}

var _ Iterator = (*IndexScan)(nil)
