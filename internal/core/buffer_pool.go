package core

import (
	"fmt"
	"sync"
	"time"
)

// frame is one cached page plus the doubly linked list pointers used by
// the young/old lists below.
type frame struct {
	pid  PageID
	page Page
	prev *frame
	next *frame
}

// pageList is a small doubly linked list keyed by PageID, used for both
// the young and old lists of the midpoint-insertion LRU. Mirrors the
// teacher's own head/tail pointer LRU rather than reaching for
// container/list.
type pageList struct {
	head, tail *frame
	size, cap  int
	index      map[string]*frame
}

func newPageList(capacity int) *pageList {
	return &pageList{cap: capacity, index: make(map[string]*frame)}
}

func (l *pageList) pushFront(f *frame) {
	f.prev = nil
	f.next = l.head
	if l.head != nil {
		l.head.prev = f
	}
	l.head = f
	if l.tail == nil {
		l.tail = f
	}
	l.index[f.pid.Key()] = f
	l.size++
}

func (l *pageList) unlink(f *frame) {
	if f.prev != nil {
		f.prev.next = f.next
	} else {
		l.head = f.next
	}
	if f.next != nil {
		f.next.prev = f.prev
	} else {
		l.tail = f.prev
	}
	f.prev, f.next = nil, nil
	delete(l.index, f.pid.Key())
	l.size--
}

func (l *pageList) moveToFront(f *frame) {
	if l.head == f {
		return
	}
	l.unlink(f)
	l.pushFront(f)
}

// BufferPool is a bounded cache of pages split into an "old" (cold entry
// point) and "young" (promoted hot) list, implementing the MySQL
// InnoDB-style midpoint-insertion LRU of spec.md §4.4.
type BufferPool struct {
	cfg     Config
	catalog Catalog
	lockMgr *LockManager

	mu       sync.Mutex
	young    *pageList
	old      *pageList
	lastUsed map[string]time.Time
}

func NewBufferPool(cfg Config, catalog Catalog, lockMgr *LockManager) *BufferPool {
	return &BufferPool{
		cfg:      cfg,
		catalog:  catalog,
		lockMgr:  lockMgr,
		young:    newPageList(cfg.youngCapacity()),
		old:      newPageList(cfg.oldCapacity()),
		lastUsed: make(map[string]time.Time),
	}
}

var _ PagePool = (*BufferPool)(nil)

// GetPage acquires the requested lock, then returns pid's cached page,
// loading and admitting it if necessary.
func (bp *BufferPool) GetPage(tid TxID, pid PageID, mode LockMode) (Page, error) {
	if err := bp.lockMgr.Acquire(tid, pid, mode); err != nil {
		return nil, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	key := pid.Key()
	if f, ok := bp.young.index[key]; ok {
		bp.young.moveToFront(f)
		bp.lastUsed[key] = time.Now()
		return f.page, nil
	}
	if f, ok := bp.old.index[key]; ok {
		bp.old.unlink(f)
		if time.Since(bp.lastUsed[key]) > bp.cfg.OldBlockTime && bp.young.size < bp.young.cap {
			bp.young.pushFront(f)
		} else {
			bp.old.pushFront(f)
		}
		bp.lastUsed[key] = time.Now()
		return f.page, nil
	}

	page, err := bp.readThrough(pid)
	if err != nil {
		bp.lockMgr.Release(tid, pid)
		return nil, err
	}
	if err := bp.admit(pid, page); err != nil {
		bp.lockMgr.Release(tid, pid)
		return nil, err
	}
	bp.lastUsed[key] = time.Now()
	return page, nil
}

func (bp *BufferPool) readThrough(pid PageID) (Page, error) {
	file, err := bp.catalog.GetFile(pid.TableID())
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", pid.Key(), err)
	}
	page, err := file.ReadPage(pid)
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", pid.Key(), err)
	}
	return page, nil
}

// admit places a freshly loaded page into old (growing it if there's
// still room), otherwise promotes old's coldest entry into young and puts
// the new page at old's head, evicting first if both lists are full.
// Called with bp.mu held.
func (bp *BufferPool) admit(pid PageID, page Page) error {
	for {
		if bp.old.size < bp.old.cap {
			bp.old.pushFront(&frame{pid: pid, page: page})
			return nil
		}
		if bp.young.size < bp.young.cap {
			oldest := bp.old.tail
			if oldest == nil {
				// A zero-capacity old list never holds pages; admit
				// straight into young.
				bp.young.pushFront(&frame{pid: pid, page: page})
				return nil
			}
			bp.old.unlink(oldest)
			bp.young.pushFront(oldest)
			bp.old.pushFront(&frame{pid: pid, page: page})
			return nil
		}
		if err := bp.evictOneLocked(); err != nil {
			return err
		}
	}
}

// evictOneLocked scans old then young, oldest first, and discards the
// first clean page on which no transaction holds a lock. Pages locked by
// any transaction, the caller's included, are skipped. Dirty pages are
// never evicted (NO-STEAL); if no cached page is both clean and unlocked,
// eviction fails with ErrAllPagesDirty. Called with bp.mu held.
func (bp *BufferPool) evictOneLocked() error {
	for _, list := range []*pageList{bp.old, bp.young} {
		for f := list.tail; f != nil; f = f.prev {
			if f.page.IsDirty() != nil {
				continue
			}
			if bp.lockMgr.HoldsAnyLock(f.pid) {
				continue
			}
			list.unlink(f)
			delete(bp.lastUsed, f.pid.Key())
			return nil
		}
	}
	return ErrAllPagesDirty
}

// InsertTuple delegates to the table's file, then marks every page the
// file dirtied as owned by tid.
func (bp *BufferPool) InsertTuple(tid TxID, tableID int64, t *Tuple) error {
	file, err := bp.catalog.GetFile(tableID)
	if err != nil {
		return fmt.Errorf("insert tuple: %w", err)
	}
	hf, ok := file.(*HeapFile)
	if !ok {
		return fmt.Errorf("insert tuple: table %d is not a heap file", tableID)
	}
	pids, err := hf.InsertTuple(tid, bp, t)
	if err != nil {
		return err
	}
	bp.markDirty(tid, pids)
	return nil
}

// DeleteTuple delegates to the table's file and marks the affected page
// dirty under tid.
func (bp *BufferPool) DeleteTuple(tid TxID, t *Tuple) error {
	if t.RecordID == nil {
		return fmt.Errorf("delete tuple: no record id")
	}
	file, err := bp.catalog.GetFile(t.RecordID.PageID.TableID())
	if err != nil {
		return fmt.Errorf("delete tuple: %w", err)
	}
	hf, ok := file.(*HeapFile)
	if !ok {
		return fmt.Errorf("delete tuple: table %d is not a heap file", t.RecordID.PageID.TableID())
	}
	pid, err := hf.DeleteTuple(tid, bp, t)
	if err != nil {
		return err
	}
	bp.markDirty(tid, []PageID{pid})
	return nil
}

func (bp *BufferPool) markDirty(tid TxID, pids []PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, pid := range pids {
		key := pid.Key()
		if f, ok := bp.young.index[key]; ok {
			f.page.MarkDirty(tid)
			continue
		}
		if f, ok := bp.old.index[key]; ok {
			f.page.MarkDirty(tid)
		}
	}
}

func (bp *BufferPool) frames() []*frame {
	out := make([]*frame, 0, bp.young.size+bp.old.size)
	for f := bp.young.head; f != nil; f = f.next {
		out = append(out, f)
	}
	for f := bp.old.head; f != nil; f = f.next {
		out = append(out, f)
	}
	return out
}

// TransactionComplete flushes (commit) or discards (abort) every page tid
// holds a lock on, then releases those locks.
func (bp *BufferPool) TransactionComplete(tid TxID, commit bool) error {
	bp.mu.Lock()
	var owned []*frame
	for _, f := range bp.frames() {
		if bp.lockMgr.HoldsLock(tid, f.pid) {
			owned = append(owned, f)
		}
	}

	for _, f := range owned {
		if commit {
			if f.page.IsDirty() != nil {
				if err := bp.flushFrameLocked(f); err != nil {
					bp.mu.Unlock()
					return err
				}
			}
		} else if dirtyTid := f.page.IsDirty(); dirtyTid != nil && dirtyTid.Equal(tid) {
			bp.discardLocked(f)
		}
	}
	bp.mu.Unlock()

	for _, f := range owned {
		bp.lockMgr.Release(tid, f.pid)
	}
	return nil
}

// flushFrameLocked writes a dirty page through its owning file, clears its
// dirty flag, and takes a fresh before-image. Called with bp.mu held.
func (bp *BufferPool) flushFrameLocked(f *frame) error {
	file, err := bp.catalog.GetFile(f.pid.TableID())
	if err != nil {
		return fmt.Errorf("flush page %s: %w", f.pid.Key(), err)
	}
	if err := file.WritePage(f.page); err != nil {
		return fmt.Errorf("flush page %s: %w", f.pid.Key(), err)
	}
	f.page.ClearDirty()
	f.page.SetBeforeImage()
	return nil
}

func (bp *BufferPool) discardLocked(f *frame) {
	if _, ok := bp.young.index[f.pid.Key()]; ok {
		bp.young.unlink(f)
	} else if _, ok := bp.old.index[f.pid.Key()]; ok {
		bp.old.unlink(f)
	}
	delete(bp.lastUsed, f.pid.Key())
}

// FlushAllPages writes every dirty cached page through its file. Unsafe
// while transactions are in flight; intended for checkpoint/shutdown use.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, f := range bp.frames() {
		if f.page.IsDirty() == nil {
			continue
		}
		if err := bp.flushFrameLocked(f); err != nil {
			return err
		}
	}
	return nil
}

// RemovePage discards pid from the pool without flushing, used by
// B+-tree free-page recycling and by abort.
func (bp *BufferPool) RemovePage(pid PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	key := pid.Key()
	if f, ok := bp.young.index[key]; ok {
		bp.young.unlink(f)
	}
	if f, ok := bp.old.index[key]; ok {
		bp.old.unlink(f)
	}
	delete(bp.lastUsed, key)
}
