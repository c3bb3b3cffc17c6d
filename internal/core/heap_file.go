package core

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// PagePool is the slice of BufferPool that files need: fetch a page under
// a transaction's lock, in the given mode. Kept as an interface so heap
// and B+-tree files can be unit tested against a fake pool.
type PagePool interface {
	GetPage(tid TxID, pid PageID, mode LockMode) (Page, error)
}

// TableIDForPath derives the stable table identifier spec.md §3 calls for:
// a hash of the backing file's absolute path.
func TableIDForPath(path string) int64 {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return int64(h.Sum64())
}

// HeapFile is a sequence of pageSize-byte pages on one file. Pages beyond
// the current end of file are materialized lazily as empty pages on first
// read (spec.md §4.2).
type HeapFile struct {
	mu       sync.RWMutex
	f        *os.File
	path     string
	tableID  int64
	desc     *TupleDesc
	pageSize int
	numPages int
}

// OpenHeapFile opens (creating if necessary) the file at path as a heap
// file with the given schema and page size.
func OpenHeapFile(path string, desc *TupleDesc, pageSize int) (*HeapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open heap file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat heap file %s: %w", path, err)
	}
	numPages := 0
	if pageSize > 0 {
		numPages = int((info.Size() + int64(pageSize) - 1) / int64(pageSize))
	}
	return &HeapFile{
		f:        f,
		path:     path,
		tableID:  TableIDForPath(path),
		desc:     desc,
		pageSize: pageSize,
		numPages: numPages,
	}, nil
}

func (hf *HeapFile) TableID() int64     { return hf.tableID }
func (hf *HeapFile) TupleDesc() *TupleDesc { return hf.desc }

func (hf *HeapFile) NumPages() int {
	hf.mu.RLock()
	defer hf.mu.RUnlock()
	return hf.numPages
}

// ReadPage returns the contents of pid. A page number at or beyond the
// current end of file yields a synthetic empty page and grows numPages to
// match — this is how new pages are materialized ahead of their first
// write (spec.md §4.2).
func (hf *HeapFile) ReadPage(pid PageID) (Page, error) {
	hpid, ok := pid.(HeapPageID)
	if !ok {
		return nil, fmt.Errorf("read heap page: wrong page id type %T", pid)
	}
	if hpid.TableID() != hf.tableID {
		return nil, fmt.Errorf("read heap page %s: %w", hpid.Key(), ErrWrongPage)
	}

	hf.mu.Lock()
	defer hf.mu.Unlock()

	if hpid.PageNo() >= hf.numPages {
		hf.numPages = hpid.PageNo() + 1
		return NewHeapPage(hpid, hf.desc, EmptyHeapPageBytes(hf.pageSize), hf.pageSize)
	}

	buf := make([]byte, hf.pageSize)
	off := int64(hpid.PageNo()) * int64(hf.pageSize)
	// A page materialized but never written has no bytes on disk; the
	// missing tail of buf stays zero, which reads as an empty page.
	if _, err := hf.f.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read heap page %s: %w", hpid.Key(), err)
	}
	return NewHeapPage(hpid, hf.desc, buf, hf.pageSize)
}

// WritePage writes p's serialized bytes to its page-number offset.
func (hf *HeapFile) WritePage(p Page) error {
	hpid, ok := p.ID().(HeapPageID)
	if !ok {
		return fmt.Errorf("write heap page: wrong page id type %T", p.ID())
	}
	hf.mu.Lock()
	defer hf.mu.Unlock()

	off := int64(hpid.PageNo()) * int64(hf.pageSize)
	if _, err := hf.f.WriteAt(p.Serialize(), off); err != nil {
		return fmt.Errorf("write heap page %s: %w", hpid.Key(), err)
	}
	if hpid.PageNo()+1 > hf.numPages {
		hf.numPages = hpid.PageNo() + 1
	}
	return nil
}

// InsertTuple scans page_no = 0..=num_pages (the one-past-end page always
// exists virtually and is always empty), pinning each SHARED first and
// only re-acquiring EXCLUSIVE once a page reports free slots, per spec.md
// §4.2's rationale: keep the lock footprint of a failed search minimal.
func (hf *HeapFile) InsertTuple(tid TxID, pool PagePool, t *Tuple) ([]PageID, error) {
	n := hf.NumPages()
	for pageNo := 0; pageNo <= n; pageNo++ {
		pid := NewHeapPageID(hf.tableID, pageNo)
		page, err := pool.GetPage(tid, pid, Shared)
		if err != nil {
			return nil, err
		}
		hp := page.(*HeapPage)
		if hp.NumUnusedSlots() == 0 {
			continue
		}
		page, err = pool.GetPage(tid, pid, Exclusive)
		if err != nil {
			return nil, err
		}
		hp = page.(*HeapPage)
		if err := hp.InsertTuple(t); err != nil {
			if err == ErrPageFull {
				// Lost the race for the last free slot; keep scanning.
				continue
			}
			return nil, err
		}
		return []PageID{pid}, nil
	}
	return nil, fmt.Errorf("heap file %d: insert tuple: %w", hf.tableID, ErrPageFull)
}

// DeleteTuple removes t from the page it was read from.
func (hf *HeapFile) DeleteTuple(tid TxID, pool PagePool, t *Tuple) (PageID, error) {
	if t.RecordID == nil {
		return nil, fmt.Errorf("delete tuple: no record id")
	}
	pid := t.RecordID.PageID
	page, err := pool.GetPage(tid, pid, Exclusive)
	if err != nil {
		return nil, err
	}
	hp := page.(*HeapPage)
	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}
	return pid, nil
}

// HeapFileIterator walks page_no = 0..numPages, pinning each page SHARED
// and yielding its tuples in slot order. Rewind restarts without
// reallocating.
type HeapFileIterator struct {
	hf      *HeapFile
	pool    PagePool
	tid     TxID
	pageNo  int
	cur     func() (*Tuple, error)
}

func (hf *HeapFile) Iterator(tid TxID, pool PagePool) *HeapFileIterator {
	it := &HeapFileIterator{hf: hf, pool: pool, tid: tid}
	it.Rewind()
	return it
}

func (it *HeapFileIterator) Rewind() {
	it.pageNo = 0
	it.cur = nil
}

func (it *HeapFileIterator) Next() (*Tuple, error) {
	for {
		if it.cur == nil {
			if it.pageNo >= it.hf.NumPages() {
				return nil, nil
			}
			pid := NewHeapPageID(it.hf.tableID, it.pageNo)
			page, err := it.pool.GetPage(it.tid, pid, Shared)
			if err != nil {
				return nil, err
			}
			it.cur = page.(*HeapPage).Iterator()
		}
		t, err := it.cur()
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
		it.cur = nil
		it.pageNo++
	}
}

func (hf *HeapFile) Close() error {
	return hf.f.Close()
}
