package operators

import "github.com/relstore/relstore/internal/core"

// SeqScan yields every tuple of one heap-file table in page/slot order,
// pinning each page SHARED through the buffer pool as it goes.
type SeqScan struct {
	tid     core.TxID
	pool    core.PagePool
	hf      *core.HeapFile
	it      *core.HeapFileIterator
	tableID int64
}

func NewSeqScan(tid core.TxID, pool core.PagePool, hf *core.HeapFile) *SeqScan {
	s := &SeqScan{tid: tid, pool: pool, hf: hf, tableID: hf.TableID()}
	s.it = hf.Iterator(tid, pool)
	return s
}

func (s *SeqScan) Rewind() { s.it.Rewind() }

func (s *SeqScan) Next() (*core.Tuple, error) { return s.it.Next() }

// TupleDesc exposes the scanned table's schema. Filter and Join take field
// indices directly and do not call it.
func (s *SeqScan) TupleDesc() *core.TupleDesc { return s.hf.TupleDesc() }

var _ Iterator = (*SeqScan)(nil)
