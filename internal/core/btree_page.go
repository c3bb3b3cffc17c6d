package core

import (
	"encoding/binary"
	"fmt"
)

// RootPtrPageSize is the fixed, deliberately small size of the root
// pointer page — distinct from the page size used by every other B+-tree
// page (spec.md §3).
const RootPtrPageSize = 32

const (
	rootPtrEncodedSize = 1 + 1 + 8 + 1 + 8 // rootPresent, rootCategory, rootPageNo, headerPresent, headerPageNo
	headerPageOverhead = 1 + 8 + 1 + 8 + 8 // prevPresent, prevPageNo, nextPresent, nextPageNo, basePageNo
	internalOverhead   = 4 + 1 + 1 + 8 + 1 // numKeys, parentPresent, parentCategory, parentPageNo, childCategory
	leafOverhead        = 4 + 1 + 1 + 8 + 1 + 8 + 1 + 8
)

func keyFieldWidth(desc *TupleDesc, keyField int) int {
	fd := desc.Fields[keyField]
	switch fd.Type {
	case IntType:
		return intFieldWidth
	case StringType:
		return StringFieldWidth(fd.StringLen)
	default:
		return 0
	}
}

func maxInternalEntries(pageSize, keyWidth int) int {
	return (pageSize - internalOverhead - 8) / (keyWidth + 8)
}

func maxLeafTuples(pageSize, tupleWidth int) int {
	return (pageSize - leafOverhead) / tupleWidth
}

func headerBitmapBits(pageSize int) int {
	return (pageSize - headerPageOverhead) * 8
}

// ---------------------------------------------------------------- RootPtr

// RootPtrPage is the single fixed-size page at the start of a B+-tree
// file, naming the current root and the start of the header free-list
// chain.
type RootPtrPage struct {
	id             BTreePageID
	rootPID        *BTreePageID
	firstHeaderPID *BTreePageID

	dirtyTid    *TxID
	beforeImage []byte
}

func NewEmptyRootPtrPage(tableID int64) *RootPtrPage {
	return &RootPtrPage{id: NewBTreePageID(tableID, 0, RootPtrCategory)}
}

func (p *RootPtrPage) ID() PageID { return p.id }

func (p *RootPtrPage) Serialize() []byte {
	out := make([]byte, RootPtrPageSize)
	if p.rootPID != nil {
		out[0] = 1
		out[1] = byte(p.rootPID.Category())
		binary.BigEndian.PutUint64(out[2:10], uint64(p.rootPID.PageNo()))
	}
	if p.firstHeaderPID != nil {
		out[10] = 1
		binary.BigEndian.PutUint64(out[11:19], uint64(p.firstHeaderPID.PageNo()))
	}
	return out
}

func ParseRootPtrPage(tableID int64, data []byte) (*RootPtrPage, error) {
	if len(data) != RootPtrPageSize {
		return nil, fmt.Errorf("parse root ptr page: expected %d bytes, got %d", RootPtrPageSize, len(data))
	}
	p := &RootPtrPage{id: NewBTreePageID(tableID, 0, RootPtrCategory)}
	if data[0] == 1 {
		pageNo := int(binary.BigEndian.Uint64(data[2:10]))
		pid := NewBTreePageID(tableID, pageNo, BTreePageCategory(data[1]))
		p.rootPID = &pid
	}
	if data[10] == 1 {
		pageNo := int(binary.BigEndian.Uint64(data[11:19]))
		pid := NewBTreePageID(tableID, pageNo, HeaderCategory)
		p.firstHeaderPID = &pid
	}
	return p, nil
}

func (p *RootPtrPage) MarkDirty(tid TxID) { t := tid; p.dirtyTid = &t }
func (p *RootPtrPage) ClearDirty()        { p.dirtyTid = nil }
func (p *RootPtrPage) IsDirty() *TxID     { return p.dirtyTid }
func (p *RootPtrPage) BeforeImage() []byte {
	if p.beforeImage == nil {
		return p.Serialize()
	}
	return p.beforeImage
}
func (p *RootPtrPage) SetBeforeImage() { p.beforeImage = p.Serialize() }

// ---------------------------------------------------------------- Header

// HeaderPage holds a bitmap of free/used page slots covering a contiguous
// range of page numbers, and links to the next header page in the chain.
// Bit value 1 means the corresponding page number is free for reuse.
type HeaderPage struct {
	id       BTreePageID
	pageSize int
	bitmap   []byte
	prevPID  *BTreePageID
	nextPID  *BTreePageID

	// firstPageNo is the page number the first bit of this header's
	// bitmap corresponds to.
	firstPageNo int

	dirtyTid    *TxID
	beforeImage []byte
}

func NewEmptyHeaderPage(id BTreePageID, pageSize, firstPageNo int) *HeaderPage {
	nbits := headerBitmapBits(pageSize)
	hp := &HeaderPage{
		id:          id,
		pageSize:    pageSize,
		bitmap:      make([]byte, (nbits+7)/8),
		firstPageNo: firstPageNo,
	}
	// Every slot starts free.
	for i := range hp.bitmap {
		hp.bitmap[i] = 0xFF
	}
	return hp
}

func (p *HeaderPage) ID() PageID { return p.id }
func (p *HeaderPage) Capacity() int { return headerBitmapBits(p.pageSize) }
func (p *HeaderPage) FirstPageNo() int { return p.firstPageNo }
func (p *HeaderPage) NextID() *BTreePageID { return p.nextPID }
func (p *HeaderPage) PrevID() *BTreePageID { return p.prevPID }
func (p *HeaderPage) SetNextID(pid *BTreePageID) { p.nextPID = pid }
func (p *HeaderPage) SetPrevID(pid *BTreePageID) { p.prevPID = pid }

func (p *HeaderPage) IsFree(pageNo int) bool {
	bit := pageNo - p.firstPageNo
	return (p.bitmap[bit>>3]>>uint(bit&7))&1 == 1
}

// FindFreeBit returns the index of the lowest free bit in the bitmap, or
// false if the header's whole range is in use.
func (p *HeaderPage) FindFreeBit() (int, bool) {
	cap := p.Capacity()
	for i := 0; i < cap; i++ {
		if (p.bitmap[i>>3]>>uint(i&7))&1 == 1 {
			return i, true
		}
	}
	return 0, false
}

func (p *HeaderPage) SetFree(pageNo int, free bool) {
	bit := pageNo - p.firstPageNo
	if free {
		p.bitmap[bit>>3] |= 1 << uint(bit&7)
	} else {
		p.bitmap[bit>>3] &^= 1 << uint(bit&7)
	}
}

func (p *HeaderPage) Serialize() []byte {
	out := make([]byte, p.pageSize)
	off := 0
	if p.prevPID != nil {
		out[off] = 1
		binary.BigEndian.PutUint64(out[off+1:off+9], uint64(p.prevPID.PageNo()))
	}
	off += 9
	if p.nextPID != nil {
		out[off] = 1
		binary.BigEndian.PutUint64(out[off+1:off+9], uint64(p.nextPID.PageNo()))
	}
	off += 9
	binary.BigEndian.PutUint64(out[off:off+8], uint64(p.firstPageNo))
	off += 8
	copy(out[off:], p.bitmap)
	return out
}

// ParseHeaderPage parses a header page. The page range it covers
// (firstPageNo) is stored in the page itself, recorded at creation time.
func ParseHeaderPage(id BTreePageID, data []byte, pageSize int) (*HeaderPage, error) {
	if len(data) != pageSize {
		return nil, fmt.Errorf("parse header page: expected %d bytes, got %d", pageSize, len(data))
	}
	p := &HeaderPage{id: id, pageSize: pageSize}
	off := 0
	if data[off] == 1 {
		pid := NewBTreePageID(id.TableID(), int(binary.BigEndian.Uint64(data[off+1:off+9])), HeaderCategory)
		p.prevPID = &pid
	}
	off += 9
	if data[off] == 1 {
		pid := NewBTreePageID(id.TableID(), int(binary.BigEndian.Uint64(data[off+1:off+9])), HeaderCategory)
		p.nextPID = &pid
	}
	off += 9
	p.firstPageNo = int(binary.BigEndian.Uint64(data[off : off+8]))
	off += 8
	nbytes := (headerBitmapBits(pageSize) + 7) / 8
	p.bitmap = append([]byte(nil), data[off:off+nbytes]...)
	return p, nil
}

func (p *HeaderPage) MarkDirty(tid TxID) { t := tid; p.dirtyTid = &t }
func (p *HeaderPage) ClearDirty()        { p.dirtyTid = nil }
func (p *HeaderPage) IsDirty() *TxID     { return p.dirtyTid }
func (p *HeaderPage) BeforeImage() []byte {
	if p.beforeImage == nil {
		return p.Serialize()
	}
	return p.beforeImage
}
func (p *HeaderPage) SetBeforeImage() { p.beforeImage = p.Serialize() }

// ---------------------------------------------------------------- Internal

// InternalPage holds numKeys sorted keys and numKeys+1 child pointers,
// such that consecutive entries share a child pointer. Children are all
// LEAF or all INTERNAL, named by childCategory.
type InternalPage struct {
	id           BTreePageID
	desc         *TupleDesc
	keyField     int
	pageSize     int
	maxEntries   int
	childCategory BTreePageCategory

	keys     []Field
	children []BTreePageID
	parentPID BTreePageID

	dirtyTid    *TxID
	beforeImage []byte
}

func NewEmptyInternalPage(id BTreePageID, desc *TupleDesc, keyField, pageSize int, childCategory BTreePageCategory) *InternalPage {
	kw := keyFieldWidth(desc, keyField)
	return &InternalPage{
		id:            id,
		desc:          desc,
		keyField:      keyField,
		pageSize:      pageSize,
		maxEntries:    maxInternalEntries(pageSize, kw),
		childCategory: childCategory,
	}
}

func (p *InternalPage) ID() PageID                  { return p.id }
func (p *InternalPage) Category() BTreePageCategory { return InternalCategory }
func (p *InternalPage) NumKeys() int                 { return len(p.keys) }
func (p *InternalPage) IsFull() bool                 { return len(p.keys) >= p.maxEntries }
func (p *InternalPage) MaxEntries() int              { return p.maxEntries }
func (p *InternalPage) ParentID() BTreePageID        { return p.parentPID }
func (p *InternalPage) SetParentID(pid BTreePageID)  { p.parentPID = pid }
func (p *InternalPage) ChildCategory() BTreePageCategory { return p.childCategory }

func (p *InternalPage) Key(i int) Field          { return p.keys[i] }
func (p *InternalPage) Child(i int) BTreePageID  { return p.children[i] }

// insertAt inserts key at sorted position i, splitting the child that
// previously occupied that position into leftChild/rightChild. A brand
// new (empty) internal page is a special case: it has no child to split,
// so the first insertion simply becomes its sole key and two children.
func (p *InternalPage) insertAt(i int, key Field, leftChild, rightChild BTreePageID) {
	if len(p.children) == 0 {
		p.keys = []Field{key}
		p.children = []BTreePageID{leftChild, rightChild}
		return
	}

	newKeys := make([]Field, len(p.keys)+1)
	copy(newKeys, p.keys[:i])
	newKeys[i] = key
	copy(newKeys[i+1:], p.keys[i:])
	p.keys = newKeys

	newChildren := make([]BTreePageID, len(p.children)+1)
	copy(newChildren, p.children[:i])
	newChildren[i] = leftChild
	newChildren[i+1] = rightChild
	copy(newChildren[i+2:], p.children[i+1:])
	p.children = newChildren
}

// DeleteEntryAt removes the key at index i and the child that followed it
// (children[i+1]), used when a right sibling has just been merged away.
func (p *InternalPage) DeleteEntryAt(i int) {
	p.keys = append(p.keys[:i], p.keys[i+1:]...)
	p.children = append(p.children[:i+1], p.children[i+2:]...)
}

func (p *InternalPage) Serialize() []byte {
	out := make([]byte, p.pageSize)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(p.keys)))
	off := 4
	out[off] = 1
	out[off+1] = byte(p.parentPID.Category())
	binary.BigEndian.PutUint64(out[off+2:off+10], uint64(p.parentPID.PageNo()))
	off += 10
	out[off] = byte(p.childCategory)
	off++

	for i, k := range p.keys {
		kb := k.Serialize(nil)
		copy(out[off:], kb)
		off += len(kb)
		binary.BigEndian.PutUint64(out[off:off+8], uint64(p.children[i].PageNo()))
		off += 8
	}
	if len(p.children) > 0 {
		binary.BigEndian.PutUint64(out[off:off+8], uint64(p.children[len(p.children)-1].PageNo()))
	}
	return out
}

func ParseInternalPage(id BTreePageID, desc *TupleDesc, keyField int, data []byte, pageSize int) (*InternalPage, error) {
	if len(data) != pageSize {
		return nil, fmt.Errorf("parse internal page: expected %d bytes, got %d", pageSize, len(data))
	}
	numKeys := int(binary.BigEndian.Uint32(data[0:4]))
	off := 4
	var parentPID BTreePageID
	if data[off] == 1 {
		parentPID = NewBTreePageID(id.TableID(), int(binary.BigEndian.Uint64(data[off+2:off+10])), BTreePageCategory(data[off+1]))
	}
	off += 10
	childCategory := BTreePageCategory(data[off])
	off++

	kw := keyFieldWidth(desc, keyField)
	p := NewEmptyInternalPage(id, desc, keyField, pageSize, childCategory)
	p.parentPID = parentPID
	p.keys = make([]Field, 0, numKeys)
	p.children = make([]BTreePageID, 0, numKeys+1)

	for i := 0; i < numKeys; i++ {
		var key Field
		var err error
		fd := desc.Fields[keyField]
		if fd.Type == IntType {
			key, err = ParseIntField(data[off:])
		} else {
			key, err = ParseStringField(data[off:], fd.StringLen)
		}
		if err != nil {
			return nil, fmt.Errorf("parse internal page %s: key %d: %w", id.Key(), i, err)
		}
		off += kw
		childNo := int(binary.BigEndian.Uint64(data[off : off+8]))
		off += 8
		p.keys = append(p.keys, key)
		p.children = append(p.children, NewBTreePageID(id.TableID(), childNo, childCategory))
	}
	if numKeys > 0 {
		lastChildNo := int(binary.BigEndian.Uint64(data[off : off+8]))
		p.children = append(p.children, NewBTreePageID(id.TableID(), lastChildNo, childCategory))
	}
	return p, nil
}

func (p *InternalPage) MarkDirty(tid TxID) { t := tid; p.dirtyTid = &t }
func (p *InternalPage) ClearDirty()        { p.dirtyTid = nil }
func (p *InternalPage) IsDirty() *TxID     { return p.dirtyTid }
func (p *InternalPage) BeforeImage() []byte {
	if p.beforeImage == nil {
		return p.Serialize()
	}
	return p.beforeImage
}
func (p *InternalPage) SetBeforeImage() { p.beforeImage = p.Serialize() }

// ---------------------------------------------------------------- Leaf

// LeafPage holds tuples sorted by key_field, plus sibling links forming a
// doubly linked chain across all leaves and a parent pointer.
type LeafPage struct {
	id         BTreePageID
	desc       *TupleDesc
	keyField   int
	pageSize   int
	maxTuples  int

	tuples    []*Tuple
	parentPID BTreePageID
	prevPID   *BTreePageID
	nextPID   *BTreePageID

	dirtyTid    *TxID
	beforeImage []byte
}

func NewEmptyLeafPage(id BTreePageID, desc *TupleDesc, keyField, pageSize int) *LeafPage {
	tw := desc.Size()
	return &LeafPage{
		id:        id,
		desc:      desc,
		keyField:  keyField,
		pageSize:  pageSize,
		maxTuples: maxLeafTuples(pageSize, tw),
	}
}

func (p *LeafPage) ID() PageID                 { return p.id }
func (p *LeafPage) Category() BTreePageCategory { return LeafCategory }
func (p *LeafPage) NumTuples() int              { return len(p.tuples) }
func (p *LeafPage) MaxTuples() int              { return p.maxTuples }
func (p *LeafPage) IsFull() bool                { return len(p.tuples) >= p.maxTuples }
func (p *LeafPage) ParentID() BTreePageID       { return p.parentPID }
func (p *LeafPage) SetParentID(pid BTreePageID) { p.parentPID = pid }
func (p *LeafPage) PrevID() *BTreePageID        { return p.prevPID }
func (p *LeafPage) NextID() *BTreePageID        { return p.nextPID }
func (p *LeafPage) SetPrevID(pid *BTreePageID)  { p.prevPID = pid }
func (p *LeafPage) SetNextID(pid *BTreePageID)  { p.nextPID = pid }
func (p *LeafPage) Tuple(i int) *Tuple          { return p.tuples[i] }

func (p *LeafPage) FirstKey() Field {
	return p.tuples[0].Fields[p.keyField]
}

// InsertSorted inserts t into its sorted position on key_field.
func (p *LeafPage) InsertSorted(t *Tuple) error {
	key := t.Fields[p.keyField]
	i := 0
	for ; i < len(p.tuples); i++ {
		c, err := CompareFields(key, p.tuples[i].Fields[p.keyField])
		if err != nil {
			return err
		}
		if c < 0 {
			break
		}
	}
	p.tuples = append(p.tuples, nil)
	copy(p.tuples[i+1:], p.tuples[i:])
	cp := &Tuple{Desc: t.Desc, Fields: t.Fields}
	p.tuples[i] = cp
	p.renumber()
	t.RecordID = cp.RecordID
	return nil
}

// DeleteTuple removes the tuple at t.RecordID.Slot.
func (p *LeafPage) DeleteTuple(t *Tuple) error {
	if t.RecordID == nil || t.RecordID.PageID.Key() != p.id.Key() {
		return ErrWrongPage
	}
	slot := t.RecordID.Slot
	if slot < 0 || slot >= len(p.tuples) {
		return ErrSlotEmpty
	}
	p.tuples = append(p.tuples[:slot], p.tuples[slot+1:]...)
	p.renumber()
	return nil
}

// renumber updates each tuple's RecordID in place, so the RecordID handed
// back by InsertSorted keeps tracking the tuple as it moves between slots
// and pages.
func (p *LeafPage) renumber() {
	for i, t := range p.tuples {
		if t.RecordID == nil {
			t.RecordID = &RecordID{}
		}
		t.RecordID.PageID = p.id
		t.RecordID.Slot = i
	}
}

func (p *LeafPage) Serialize() []byte {
	out := make([]byte, p.pageSize)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(p.tuples)))
	off := 4
	out[off] = 1
	out[off+1] = byte(p.parentPID.Category())
	binary.BigEndian.PutUint64(out[off+2:off+10], uint64(p.parentPID.PageNo()))
	off += 10
	if p.prevPID != nil {
		out[off] = 1
		binary.BigEndian.PutUint64(out[off+1:off+9], uint64(p.prevPID.PageNo()))
	}
	off += 9
	if p.nextPID != nil {
		out[off] = 1
		binary.BigEndian.PutUint64(out[off+1:off+9], uint64(p.nextPID.PageNo()))
	}
	off += 9
	for _, t := range p.tuples {
		tb := t.Serialize(nil)
		copy(out[off:], tb)
		off += len(tb)
	}
	return out
}

func ParseLeafPage(id BTreePageID, desc *TupleDesc, keyField int, data []byte, pageSize int) (*LeafPage, error) {
	if len(data) != pageSize {
		return nil, fmt.Errorf("parse leaf page: expected %d bytes, got %d", pageSize, len(data))
	}
	numTuples := int(binary.BigEndian.Uint32(data[0:4]))
	off := 4
	p := NewEmptyLeafPage(id, desc, keyField, pageSize)
	if data[off] == 1 {
		p.parentPID = NewBTreePageID(id.TableID(), int(binary.BigEndian.Uint64(data[off+2:off+10])), BTreePageCategory(data[off+1]))
	}
	off += 10
	if data[off] == 1 {
		pid := NewBTreePageID(id.TableID(), int(binary.BigEndian.Uint64(data[off+1:off+9])), LeafCategory)
		p.prevPID = &pid
	}
	off += 9
	if data[off] == 1 {
		pid := NewBTreePageID(id.TableID(), int(binary.BigEndian.Uint64(data[off+1:off+9])), LeafCategory)
		p.nextPID = &pid
	}
	off += 9

	tw := desc.Size()
	p.tuples = make([]*Tuple, 0, numTuples)
	for i := 0; i < numTuples; i++ {
		t, err := ParseTuple(desc, data[off:off+tw])
		if err != nil {
			return nil, fmt.Errorf("parse leaf page %s: tuple %d: %w", id.Key(), i, err)
		}
		t.RecordID = &RecordID{PageID: id, Slot: i}
		p.tuples = append(p.tuples, t)
		off += tw
	}
	return p, nil
}

func (p *LeafPage) MarkDirty(tid TxID) { t := tid; p.dirtyTid = &t }
func (p *LeafPage) ClearDirty()        { p.dirtyTid = nil }
func (p *LeafPage) IsDirty() *TxID     { return p.dirtyTid }
func (p *LeafPage) BeforeImage() []byte {
	if p.beforeImage == nil {
		return p.Serialize()
	}
	return p.beforeImage
}
func (p *LeafPage) SetBeforeImage() { p.beforeImage = p.Serialize() }

var (
	_ Page = (*RootPtrPage)(nil)
	_ Page = (*HeaderPage)(nil)
	_ Page = (*InternalPage)(nil)
	_ Page = (*LeafPage)(nil)
)
