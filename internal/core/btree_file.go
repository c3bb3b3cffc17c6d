package core

import (
	"fmt"
	"os"
	"sync"
)

// BTreeFile is the indexed alternative to a HeapFile: a root-pointer page
// followed by a sequence of pageSize-sized INTERNAL/LEAF/HEADER pages,
// sharing the buffer pool and lock manager (spec.md §4.5).
type BTreeFile struct {
	mu       sync.RWMutex
	f        *os.File
	path     string
	tableID  int64
	desc     *TupleDesc
	keyField int
	pageSize int
	numPages int // highest allocated page number, 1..numPages exist on disk
}

func btreePageOffset(pageNo, pageSize int) int64 {
	return int64(RootPtrPageSize) + int64(pageNo-1)*int64(pageSize)
}

// OpenBTreeFile opens (creating if necessary) path as a B+-tree file keyed
// on desc.Fields[keyField].
func OpenBTreeFile(path string, desc *TupleDesc, keyField, pageSize int) (*BTreeFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open btree file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat btree file %s: %w", path, err)
	}
	bf := &BTreeFile{
		f:        f,
		path:     path,
		tableID:  TableIDForPath(path),
		desc:     desc,
		keyField: keyField,
		pageSize: pageSize,
	}
	if info.Size() < int64(RootPtrPageSize) {
		empty := NewEmptyRootPtrPage(bf.tableID)
		if _, err := f.WriteAt(empty.Serialize(), 0); err != nil {
			return nil, fmt.Errorf("init btree file %s: %w", path, err)
		}
		return bf, nil
	}
	bf.numPages = int((info.Size() - int64(RootPtrPageSize)) / int64(pageSize))
	return bf, nil
}

func (bf *BTreeFile) TableID() int64 { return bf.tableID }
func (bf *BTreeFile) RootPtrID() BTreePageID {
	return NewBTreePageID(bf.tableID, 0, RootPtrCategory)
}

func (bf *BTreeFile) NumPages() int {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return bf.numPages
}

func (bf *BTreeFile) bumpNumPages() int {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.numPages++
	return bf.numPages
}

func (bf *BTreeFile) noteAllocated(pageNo int) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if pageNo > bf.numPages {
		bf.numPages = pageNo
	}
}

// ReadPage reads and parses whichever page shape pid.Category() names.
func (bf *BTreeFile) ReadPage(pid PageID) (Page, error) {
	bpid, ok := pid.(BTreePageID)
	if !ok {
		return nil, fmt.Errorf("read btree page: wrong page id type %T", pid)
	}
	if bpid.TableID() != bf.tableID {
		return nil, fmt.Errorf("read btree page %s: %w", bpid.Key(), ErrWrongPage)
	}
	if bpid.Category() == RootPtrCategory {
		buf := make([]byte, RootPtrPageSize)
		if _, err := bf.f.ReadAt(buf, 0); err != nil {
			return nil, fmt.Errorf("read root ptr page: %w", err)
		}
		return ParseRootPtrPage(bf.tableID, buf)
	}

	buf := make([]byte, bf.pageSize)
	off := btreePageOffset(bpid.PageNo(), bf.pageSize)
	if _, err := bf.f.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("read btree page %s: %w", bpid.Key(), err)
	}
	switch bpid.Category() {
	case HeaderCategory:
		return ParseHeaderPage(bpid, buf, bf.pageSize)
	case InternalCategory:
		return ParseInternalPage(bpid, bf.desc, bf.keyField, buf, bf.pageSize)
	case LeafCategory:
		return ParseLeafPage(bpid, bf.desc, bf.keyField, buf, bf.pageSize)
	default:
		return nil, fmt.Errorf("read btree page %s: unknown category", bpid.Key())
	}
}

// WritePage writes p's serialized bytes to its page's offset.
func (bf *BTreeFile) WritePage(p Page) error {
	bpid, ok := p.ID().(BTreePageID)
	if !ok {
		return fmt.Errorf("write btree page: wrong page id type %T", p.ID())
	}
	if bpid.Category() == RootPtrCategory {
		_, err := bf.f.WriteAt(p.Serialize(), 0)
		if err != nil {
			return fmt.Errorf("write root ptr page: %w", err)
		}
		return nil
	}
	off := btreePageOffset(bpid.PageNo(), bf.pageSize)
	if _, err := bf.f.WriteAt(p.Serialize(), off); err != nil {
		return fmt.Errorf("write btree page %s: %w", bpid.Key(), err)
	}
	bf.noteAllocated(bpid.PageNo())
	return nil
}

func (bf *BTreeFile) Close() error { return bf.f.Close() }

// ---------------------------------------------------------------- Allocation

// AllocPage returns a fresh page id of the given category, recycling a
// freed page number from the header chain when one is available and
// growing the file otherwise. childCategory is only meaningful for
// InternalCategory allocations.
func (bf *BTreeFile) AllocPage(tid TxID, pool PagePool, category, childCategory BTreePageCategory) (BTreePageID, error) {
	rootPage, err := pool.GetPage(tid, bf.RootPtrID(), Exclusive)
	if err != nil {
		return BTreePageID{}, err
	}
	root := rootPage.(*RootPtrPage)

	if root.firstHeaderPID == nil {
		hNo := bf.bumpNumPages()
		hID := NewBTreePageID(bf.tableID, hNo, HeaderCategory)
		hp := NewEmptyHeaderPage(hID, bf.pageSize, hNo+1)
		if err := bf.WritePage(hp); err != nil {
			return BTreePageID{}, err
		}
		root.firstHeaderPID = &hID
		root.MarkDirty(tid)
	}

	cur := *root.firstHeaderPID
	for {
		page, err := pool.GetPage(tid, cur, Exclusive)
		if err != nil {
			return BTreePageID{}, err
		}
		hp := page.(*HeaderPage)
		if idx, ok := hp.FindFreeBit(); ok {
			pageNo := hp.FirstPageNo() + idx
			hp.SetFree(pageNo, false)
			hp.MarkDirty(tid)
			bf.noteAllocated(pageNo)

			newID := NewBTreePageID(bf.tableID, pageNo, category)
			var fresh Page
			switch category {
			case LeafCategory:
				fresh = NewEmptyLeafPage(newID, bf.desc, bf.keyField, bf.pageSize)
			case InternalCategory:
				fresh = NewEmptyInternalPage(newID, bf.desc, bf.keyField, bf.pageSize, childCategory)
			default:
				return BTreePageID{}, fmt.Errorf("alloc page: unsupported category %s", category)
			}
			if err := bf.WritePage(fresh); err != nil {
				return BTreePageID{}, err
			}
			return newID, nil
		}
		if hp.NextID() != nil {
			cur = *hp.NextID()
			continue
		}
		hNo := bf.bumpNumPages()
		newHID := NewBTreePageID(bf.tableID, hNo, HeaderCategory)
		newHP := NewEmptyHeaderPage(newHID, bf.pageSize, hNo+1)
		prev := cur
		newHP.SetPrevID(&prev)
		if err := bf.WritePage(newHP); err != nil {
			return BTreePageID{}, err
		}
		hp.SetNextID(&newHID)
		hp.MarkDirty(tid)
		cur = newHID
	}
}

// FreePage marks pid's page number free for reuse in its covering header,
// and evicts it from the buffer pool uncommitted.
func (bf *BTreeFile) FreePage(tid TxID, pool PagePool, pid BTreePageID) error {
	rootPage, err := pool.GetPage(tid, bf.RootPtrID(), Shared)
	if err != nil {
		return err
	}
	root := rootPage.(*RootPtrPage)
	if root.firstHeaderPID == nil {
		return fmt.Errorf("free page %s: no header pages", pid.Key())
	}
	cur := *root.firstHeaderPID
	for {
		page, err := pool.GetPage(tid, cur, Exclusive)
		if err != nil {
			return err
		}
		hp := page.(*HeaderPage)
		if pid.PageNo() >= hp.FirstPageNo() && pid.PageNo() < hp.FirstPageNo()+hp.Capacity() {
			hp.SetFree(pid.PageNo(), true)
			hp.MarkDirty(tid)
			if bp, ok := pool.(*BufferPool); ok {
				bp.RemovePage(pid)
			}
			return nil
		}
		if hp.NextID() == nil {
			return fmt.Errorf("free page %s: not covered by any header", pid.Key())
		}
		cur = *hp.NextID()
	}
}

// ---------------------------------------------------------------- Search

// FindLeaf descends from the root to the leaf that would hold key,
// locking internal nodes SHARED and the leaf in the caller's requested
// mode. key == nil always takes the leftmost child, for full scans.
func (bf *BTreeFile) FindLeaf(tid TxID, pool PagePool, key Field, mode LockMode) (*LeafPage, error) {
	rootPage, err := pool.GetPage(tid, bf.RootPtrID(), Shared)
	if err != nil {
		return nil, err
	}
	root := rootPage.(*RootPtrPage)
	if root.rootPID == nil {
		return nil, ErrNotFound
	}
	cur := *root.rootPID
	for cur.Category() == InternalCategory {
		page, err := pool.GetPage(tid, cur, Shared)
		if err != nil {
			return nil, err
		}
		ip := page.(*InternalPage)
		idx := len(ip.keys)
		if key != nil {
			for i, k := range ip.keys {
				c, err := CompareFields(k, key)
				if err != nil {
					return nil, err
				}
				if c >= 0 {
					idx = i
					break
				}
			}
		} else {
			idx = 0
		}
		cur = ip.children[idx]
	}
	page, err := pool.GetPage(tid, cur, mode)
	if err != nil {
		return nil, err
	}
	leaf, ok := page.(*LeafPage)
	if !ok {
		return nil, fmt.Errorf("find leaf: page %s is not a leaf", cur.Key())
	}
	return leaf, nil
}

// ---------------------------------------------------------------- Insert

// InsertTuple finds (or creates) the target leaf, splits it first if it
// is full (splits propagate up to the parents as needed), then inserts t
// in sorted order.
func (bf *BTreeFile) InsertTuple(tid TxID, pool PagePool, t *Tuple) error {
	rootPage, err := pool.GetPage(tid, bf.RootPtrID(), Exclusive)
	if err != nil {
		return err
	}
	root := rootPage.(*RootPtrPage)
	if root.rootPID == nil {
		leafID, err := bf.AllocPage(tid, pool, LeafCategory, 0)
		if err != nil {
			return err
		}
		root.rootPID = &leafID
		root.MarkDirty(tid)
	}

	key := t.Fields[bf.keyField]
	leaf, err := bf.FindLeaf(tid, pool, key, Exclusive)
	if err != nil {
		return err
	}
	if leaf.IsFull() {
		leaf, err = bf.splitLeaf(tid, pool, leaf, key)
		if err != nil {
			return err
		}
	}
	if err := leaf.InsertSorted(t); err != nil {
		return err
	}
	leaf.MarkDirty(tid)
	return nil
}

// splitLeaf allocates a new leaf, moves the upper half of leaf's tuples
// into it, splices it into the sibling chain, and pushes a separator
// entry into the parent (creating a new root if leaf was the root).
func (bf *BTreeFile) splitLeaf(tid TxID, pool PagePool, leaf *LeafPage, key Field) (*LeafPage, error) {
	newID, err := bf.AllocPage(tid, pool, LeafCategory, 0)
	if err != nil {
		return nil, err
	}
	newPage, err := pool.GetPage(tid, newID, Exclusive)
	if err != nil {
		return nil, err
	}
	newLeaf := newPage.(*LeafPage)

	mid := leaf.NumTuples() / 2
	moved := append([]*Tuple(nil), leaf.tuples[mid:]...)
	leaf.tuples = leaf.tuples[:mid]
	leaf.renumber()
	newLeaf.tuples = moved
	newLeaf.renumber()

	newLeaf.SetNextID(leaf.NextID())
	if leaf.NextID() != nil {
		rsPage, err := pool.GetPage(tid, *leaf.NextID(), Exclusive)
		if err != nil {
			return nil, err
		}
		rs := rsPage.(*LeafPage)
		npid := newLeaf.id
		rs.SetPrevID(&npid)
		rs.MarkDirty(tid)
	}
	lpid := leaf.id
	newLeaf.SetPrevID(&lpid)
	npid := newLeaf.id
	leaf.SetNextID(&npid)
	leaf.MarkDirty(tid)
	newLeaf.MarkDirty(tid)

	splitKey := newLeaf.FirstKey()
	parent, err := bf.getParentWithEmptySlots(tid, pool, leaf.ParentID(), splitKey, LeafCategory)
	if err != nil {
		return nil, err
	}
	bf.insertEntryIntoInternal(parent, splitKey, leaf.id, newLeaf.id)
	leaf.SetParentID(parent.id)
	newLeaf.SetParentID(parent.id)
	parent.MarkDirty(tid)

	c, err := CompareFields(key, splitKey)
	if err != nil {
		return nil, err
	}
	if c < 0 {
		return leaf, nil
	}
	return newLeaf, nil
}

// getParentWithEmptySlots returns the internal page that should receive a
// new separator entry for a just-split child, splitting it first if it is
// itself full, and creating a brand new root if parentPID names the
// root-pointer sentinel.
func (bf *BTreeFile) getParentWithEmptySlots(tid TxID, pool PagePool, parentPID BTreePageID, key Field, childCategory BTreePageCategory) (*InternalPage, error) {
	if parentPID.Category() == RootPtrCategory {
		newID, err := bf.AllocPage(tid, pool, InternalCategory, childCategory)
		if err != nil {
			return nil, err
		}
		page, err := pool.GetPage(tid, newID, Exclusive)
		if err != nil {
			return nil, err
		}
		ip := page.(*InternalPage)
		rootPage, err := pool.GetPage(tid, bf.RootPtrID(), Exclusive)
		if err != nil {
			return nil, err
		}
		root := rootPage.(*RootPtrPage)
		root.rootPID = &newID
		root.MarkDirty(tid)
		return ip, nil
	}

	page, err := pool.GetPage(tid, parentPID, Exclusive)
	if err != nil {
		return nil, err
	}
	ip := page.(*InternalPage)
	if ip.IsFull() {
		return bf.splitInternal(tid, pool, ip, key)
	}
	return ip, nil
}

func (bf *BTreeFile) insertEntryIntoInternal(ip *InternalPage, key Field, left, right BTreePageID) {
	i := 0
	for ; i < len(ip.keys); i++ {
		c, _ := CompareFields(key, ip.keys[i])
		if c < 0 {
			break
		}
	}
	ip.insertAt(i, key, left, right)
}

// splitInternal allocates a new internal page, pushes node's middle key
// up into the parent, and moves the upper half of node's entries to the
// new page.
func (bf *BTreeFile) splitInternal(tid TxID, pool PagePool, node *InternalPage, key Field) (*InternalPage, error) {
	newID, err := bf.AllocPage(tid, pool, InternalCategory, node.childCategory)
	if err != nil {
		return nil, err
	}
	newPage, err := pool.GetPage(tid, newID, Exclusive)
	if err != nil {
		return nil, err
	}
	newNode := newPage.(*InternalPage)

	mid := len(node.keys) / 2
	midKey := node.keys[mid]
	newNode.keys = append([]Field(nil), node.keys[mid+1:]...)
	newNode.children = append([]BTreePageID(nil), node.children[mid+1:]...)
	node.keys = node.keys[:mid]
	node.children = node.children[:mid+1]

	if err := bf.updateParentPointers(tid, pool, newNode); err != nil {
		return nil, err
	}
	node.MarkDirty(tid)
	newNode.MarkDirty(tid)

	parent, err := bf.getParentWithEmptySlots(tid, pool, node.ParentID(), midKey, InternalCategory)
	if err != nil {
		return nil, err
	}
	bf.insertEntryIntoInternal(parent, midKey, node.id, newNode.id)
	node.SetParentID(parent.id)
	newNode.SetParentID(parent.id)
	parent.MarkDirty(tid)

	c, err := CompareFields(key, midKey)
	if err != nil {
		return nil, err
	}
	if c < 0 {
		return node, nil
	}
	return newNode, nil
}

// updateParentPointers rewrites every child of node to point back at
// node.id, called after any entry migration (spec.md §9).
func (bf *BTreeFile) updateParentPointers(tid TxID, pool PagePool, node *InternalPage) error {
	for _, childID := range node.children {
		page, err := pool.GetPage(tid, childID, Exclusive)
		if err != nil {
			return err
		}
		switch c := page.(type) {
		case *LeafPage:
			c.SetParentID(node.id)
			c.MarkDirty(tid)
		case *InternalPage:
			c.SetParentID(node.id)
			c.MarkDirty(tid)
		}
	}
	return nil
}

// ---------------------------------------------------------------- Delete

// DeleteTuple removes t from its leaf, then rebalances (steal or merge)
// if the leaf drops below half-full.
func (bf *BTreeFile) DeleteTuple(tid TxID, pool PagePool, t *Tuple) error {
	if t.RecordID == nil {
		return fmt.Errorf("delete tuple: no record id")
	}
	bpid := t.RecordID.PageID.(BTreePageID)
	page, err := pool.GetPage(tid, bpid, Exclusive)
	if err != nil {
		return err
	}
	leaf := page.(*LeafPage)
	if err := leaf.DeleteTuple(t); err != nil {
		return err
	}
	leaf.MarkDirty(tid)

	half := (leaf.MaxTuples() + 1) / 2
	if leaf.NumTuples() < half && leaf.ParentID().Category() != RootPtrCategory {
		return bf.handleMinOccupancyLeaf(tid, pool, leaf)
	}
	return nil
}

func indexOfChild(parent *InternalPage, childKey string) int {
	for i, c := range parent.children {
		if c.Key() == childKey {
			return i
		}
	}
	return -1
}

func (bf *BTreeFile) handleMinOccupancyLeaf(tid TxID, pool PagePool, leaf *LeafPage) error {
	parentPage, err := pool.GetPage(tid, leaf.ParentID(), Exclusive)
	if err != nil {
		return err
	}
	parent := parentPage.(*InternalPage)
	idx := indexOfChild(parent, leaf.id.Key())
	if idx < 0 {
		return fmt.Errorf("handle min occupancy: leaf %s not found in parent", leaf.id.Key())
	}

	if idx > 0 {
		leftPage, err := pool.GetPage(tid, parent.children[idx-1], Exclusive)
		if err != nil {
			return err
		}
		left := leftPage.(*LeafPage)
		half := (left.MaxTuples() + 1) / 2
		if left.NumTuples() > half {
			return bf.stealFromLeftLeaf(tid, parent, idx, left, leaf)
		}
	}
	if idx < len(parent.children)-1 {
		rightPage, err := pool.GetPage(tid, parent.children[idx+1], Exclusive)
		if err != nil {
			return err
		}
		right := rightPage.(*LeafPage)
		half := (right.MaxTuples() + 1) / 2
		if right.NumTuples() > half {
			return bf.stealFromRightLeaf(tid, parent, idx, leaf, right)
		}
		return bf.mergeLeaves(tid, pool, parent, idx, leaf, right)
	}

	leftPage, err := pool.GetPage(tid, parent.children[idx-1], Exclusive)
	if err != nil {
		return err
	}
	left := leftPage.(*LeafPage)
	return bf.mergeLeaves(tid, pool, parent, idx-1, left, leaf)
}

func (bf *BTreeFile) stealFromRightLeaf(tid TxID, parent *InternalPage, idx int, leaf, right *LeafPage) error {
	n := (right.NumTuples() - leaf.NumTuples() + 1) / 2
	for i := 0; i < n; i++ {
		t := right.tuples[0]
		right.tuples = right.tuples[1:]
		leaf.tuples = append(leaf.tuples, t)
	}
	leaf.renumber()
	right.renumber()
	parent.keys[idx] = right.FirstKey()
	leaf.MarkDirty(tid)
	right.MarkDirty(tid)
	parent.MarkDirty(tid)
	return nil
}

func (bf *BTreeFile) stealFromLeftLeaf(tid TxID, parent *InternalPage, idx int, left, leaf *LeafPage) error {
	n := (left.NumTuples() - leaf.NumTuples() + 1) / 2
	for i := 0; i < n; i++ {
		last := left.tuples[len(left.tuples)-1]
		left.tuples = left.tuples[:len(left.tuples)-1]
		leaf.tuples = append([]*Tuple{last}, leaf.tuples...)
	}
	left.renumber()
	leaf.renumber()
	parent.keys[idx-1] = leaf.FirstKey()
	left.MarkDirty(tid)
	leaf.MarkDirty(tid)
	parent.MarkDirty(tid)
	return nil
}

// mergeLeaves concatenates right's tuples onto left, unlinks right from
// the sibling chain, frees its page, and deletes the parent's separator.
func (bf *BTreeFile) mergeLeaves(tid TxID, pool PagePool, parent *InternalPage, leftIdx int, left, right *LeafPage) error {
	left.tuples = append(left.tuples, right.tuples...)
	left.renumber()
	left.SetNextID(right.NextID())
	if right.NextID() != nil {
		rsPage, err := pool.GetPage(tid, *right.NextID(), Exclusive)
		if err != nil {
			return err
		}
		rs := rsPage.(*LeafPage)
		lpid := left.id
		rs.SetPrevID(&lpid)
		rs.MarkDirty(tid)
	}
	left.MarkDirty(tid)

	if err := bf.FreePage(tid, pool, right.id); err != nil {
		return err
	}
	return bf.deleteParentEntry(tid, pool, parent, leftIdx)
}

// deleteParentEntry removes the separator key at keyIdx (and the child
// that followed it, now merged away), then rebalances or collapses the
// parent if it underflows.
func (bf *BTreeFile) deleteParentEntry(tid TxID, pool PagePool, parent *InternalPage, keyIdx int) error {
	parent.DeleteEntryAt(keyIdx)
	parent.MarkDirty(tid)

	if parent.ParentID().Category() == RootPtrCategory {
		if len(parent.keys) == 0 {
			onlyChild := parent.children[0]
			rootPage, err := pool.GetPage(tid, bf.RootPtrID(), Exclusive)
			if err != nil {
				return err
			}
			root := rootPage.(*RootPtrPage)
			root.rootPID = &onlyChild
			root.MarkDirty(tid)
			childPage, err := pool.GetPage(tid, onlyChild, Exclusive)
			if err != nil {
				return err
			}
			rootSentinel := bf.RootPtrID()
			switch c := childPage.(type) {
			case *LeafPage:
				c.SetParentID(rootSentinel)
				c.MarkDirty(tid)
			case *InternalPage:
				c.SetParentID(rootSentinel)
				c.MarkDirty(tid)
			}
			return bf.FreePage(tid, pool, parent.id)
		}
		return nil
	}

	half := (parent.MaxEntries() + 1) / 2
	if len(parent.keys) < half {
		return bf.handleMinOccupancyInternal(tid, pool, parent)
	}
	return nil
}

func (bf *BTreeFile) handleMinOccupancyInternal(tid TxID, pool PagePool, node *InternalPage) error {
	parentPage, err := pool.GetPage(tid, node.ParentID(), Exclusive)
	if err != nil {
		return err
	}
	parent := parentPage.(*InternalPage)
	idx := indexOfChild(parent, node.id.Key())
	if idx < 0 {
		return fmt.Errorf("handle min occupancy: internal %s not found in parent", node.id.Key())
	}

	if idx > 0 {
		leftPage, err := pool.GetPage(tid, parent.children[idx-1], Exclusive)
		if err != nil {
			return err
		}
		left := leftPage.(*InternalPage)
		half := (left.MaxEntries() + 1) / 2
		if left.NumKeys() > half {
			return bf.stealFromLeftInternal(tid, pool, parent, idx, left, node)
		}
	}
	if idx < len(parent.children)-1 {
		rightPage, err := pool.GetPage(tid, parent.children[idx+1], Exclusive)
		if err != nil {
			return err
		}
		right := rightPage.(*InternalPage)
		half := (right.MaxEntries() + 1) / 2
		if right.NumKeys() > half {
			return bf.stealFromRightInternal(tid, pool, parent, idx, node, right)
		}
		return bf.mergeInternal(tid, pool, parent, idx, node, right)
	}

	leftPage, err := pool.GetPage(tid, parent.children[idx-1], Exclusive)
	if err != nil {
		return err
	}
	left := leftPage.(*InternalPage)
	return bf.mergeInternal(tid, pool, parent, idx-1, left, node)
}

// stealFromRightInternal rotates the parent's separator down into node and
// the right sibling's first entry up into the parent.
func (bf *BTreeFile) stealFromRightInternal(tid TxID, pool PagePool, parent *InternalPage, idx int, node, right *InternalPage) error {
	downKey := parent.keys[idx]
	movedChild := right.children[0]

	node.keys = append(node.keys, downKey)
	node.children = append(node.children, movedChild)
	parent.keys[idx] = right.keys[0]

	right.keys = right.keys[1:]
	right.children = right.children[1:]

	if err := bf.reparentChild(tid, pool, node, movedChild); err != nil {
		return err
	}
	node.MarkDirty(tid)
	right.MarkDirty(tid)
	parent.MarkDirty(tid)
	return nil
}

func (bf *BTreeFile) stealFromLeftInternal(tid TxID, pool PagePool, parent *InternalPage, idx int, left, node *InternalPage) error {
	downKey := parent.keys[idx-1]
	movedChild := left.children[len(left.children)-1]

	node.keys = append([]Field{downKey}, node.keys...)
	node.children = append([]BTreePageID{movedChild}, node.children...)
	parent.keys[idx-1] = left.keys[len(left.keys)-1]

	left.keys = left.keys[:len(left.keys)-1]
	left.children = left.children[:len(left.children)-1]

	if err := bf.reparentChild(tid, pool, node, movedChild); err != nil {
		return err
	}
	node.MarkDirty(tid)
	left.MarkDirty(tid)
	parent.MarkDirty(tid)
	return nil
}

func (bf *BTreeFile) reparentChild(tid TxID, pool PagePool, newParent *InternalPage, childID BTreePageID) error {
	page, err := pool.GetPage(tid, childID, Exclusive)
	if err != nil {
		return err
	}
	switch c := page.(type) {
	case *LeafPage:
		c.SetParentID(newParent.id)
		c.MarkDirty(tid)
	case *InternalPage:
		c.SetParentID(newParent.id)
		c.MarkDirty(tid)
	}
	return nil
}

// mergeInternal pulls the parent's separator down between left and right,
// appends right's entries onto left, frees right, and deletes the
// separator from the parent.
func (bf *BTreeFile) mergeInternal(tid TxID, pool PagePool, parent *InternalPage, leftIdx int, left, right *InternalPage) error {
	sep := parent.keys[leftIdx]
	left.keys = append(left.keys, sep)
	left.keys = append(left.keys, right.keys...)
	left.children = append(left.children, right.children...)

	if err := bf.updateParentPointers(tid, pool, left); err != nil {
		return err
	}
	left.MarkDirty(tid)

	if err := bf.FreePage(tid, pool, right.id); err != nil {
		return err
	}
	return bf.deleteParentEntry(tid, pool, parent, leftIdx)
}

// ---------------------------------------------------------------- Iteration

// BTreeFileIterator walks the leaf sibling chain left to right, yielding
// tuples in key_field order.
type BTreeFileIterator struct {
	bf      *BTreeFile
	pool    PagePool
	tid     TxID
	started bool
	leaf    *LeafPage
	idx     int
	nextID  *BTreePageID
}

func (bf *BTreeFile) Iterator(tid TxID, pool PagePool) *BTreeFileIterator {
	it := &BTreeFileIterator{bf: bf, pool: pool, tid: tid}
	it.Rewind()
	return it
}

func (it *BTreeFileIterator) Rewind() {
	it.started = false
	it.leaf = nil
	it.idx = 0
	it.nextID = nil
}

func (it *BTreeFileIterator) Next() (*Tuple, error) {
	for {
		if it.leaf == nil {
			var leaf *LeafPage
			var err error
			if !it.started {
				it.started = true
				leaf, err = it.bf.FindLeaf(it.tid, it.pool, nil, Shared)
				if err == ErrNotFound {
					return nil, nil
				}
			} else if it.nextID != nil {
				page, e := it.pool.GetPage(it.tid, *it.nextID, Shared)
				err = e
				if e == nil {
					leaf = page.(*LeafPage)
				}
			} else {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			it.leaf = leaf
			it.idx = 0
		}
		if it.idx < it.leaf.NumTuples() {
			t := it.leaf.Tuple(it.idx)
			it.idx++
			return t, nil
		}
		it.nextID = it.leaf.NextID()
		it.leaf = nil
		if it.nextID == nil && it.started {
			return nil, nil
		}
	}
}

// CompareOp names a scan predicate's comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpGt
	OpGe
	OpLt
	OpLe
)

// RangeIterator scans tuples matching op against v on the key field. For
// =, >, >= it seeks directly to the first possibly-matching leaf; for <,
// <= it scans from the beginning and stops at the first failing tuple.
type RangeIterator struct {
	base  *BTreeFileIterator
	start BTreeFileIterator // base's state right after the seek, restored by Rewind
	op    CompareOp
	v     Field
	done  bool
}

func (bf *BTreeFile) RangeIterator(tid TxID, pool PagePool, op CompareOp, v Field) (*RangeIterator, error) {
	it := &RangeIterator{op: op, v: v}
	switch op {
	case OpEq, OpGt, OpGe:
		leaf, err := bf.FindLeaf(tid, pool, v, Shared)
		if err == ErrNotFound {
			it.done = true
			return it, nil
		}
		if err != nil {
			return nil, err
		}
		startIdx := 0
		for startIdx < leaf.NumTuples() {
			c, err := CompareFields(leaf.Tuple(startIdx).Fields[bf.keyField], v)
			if err != nil {
				return nil, err
			}
			// OpGt must skip past keys equal to v, not just land on them.
			if op == OpGt {
				if c > 0 {
					break
				}
			} else if c >= 0 {
				break
			}
			startIdx++
		}
		it.base = &BTreeFileIterator{bf: bf, pool: pool, tid: tid, started: true, leaf: leaf, idx: startIdx}
	default:
		it.base = bf.Iterator(tid, pool)
	}
	it.start = *it.base
	return it, nil
}

// Rewind restarts the scan from the position the seek found. A scan over
// an empty tree stays exhausted.
func (it *RangeIterator) Rewind() {
	if it.base == nil {
		return
	}
	it.done = false
	*it.base = it.start
}

func (it *RangeIterator) Next() (*Tuple, error) {
	if it.done {
		return nil, nil
	}
	t, err := it.base.Next()
	if err != nil || t == nil {
		return t, err
	}
	c, err := CompareFields(t.Fields[it.base.bf.keyField], it.v)
	if err != nil {
		return nil, err
	}
	switch it.op {
	case OpEq:
		if c > 0 {
			it.done = true
			return nil, nil
		}
	case OpLt:
		if c >= 0 {
			it.done = true
			return nil, nil
		}
	case OpLe:
		if c > 0 {
			it.done = true
			return nil, nil
		}
	}
	return t, nil
}

var (
	_ DBFile = (*BTreeFile)(nil)
)
