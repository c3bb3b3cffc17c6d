package core

import "fmt"

// numSlotsForTuple computes N = floor(P*8 / (T*8 + 1)) — the number of
// fixed-width tuple slots that fit on a page of size P once the header
// bitmap's one bit per slot is accounted for (spec.md §3).
func numSlotsForTuple(pageSize, tupleWidth int) int {
	return (pageSize * 8) / (tupleWidth*8 + 1)
}

// headerSizeForSlots is ⌈N/8⌉ bytes.
func headerSizeForSlots(numSlots int) int {
	return (numSlots + 7) / 8
}

// HeapPage is one fixed-size slotted page: a header bitmap of used slots
// followed by N fixed-width tuple records and trailing zero padding.
// Bit i of header byte i>>3 (LSB-first within the byte) marks slot i used.
type HeapPage struct {
	id         HeapPageID
	desc       *TupleDesc
	pageSize   int
	tupleWidth int
	numSlots   int
	headerSize int

	used   []bool
	tuples []*Tuple

	dirtyTid    *TxID
	beforeImage []byte
}

// EmptyHeapPageBytes returns the all-zero byte image of a fresh page: an
// all-zero header means no slot is used.
func EmptyHeapPageBytes(pageSize int) []byte {
	return make([]byte, pageSize)
}

// NewHeapPage parses a page id's worth of bytes into a HeapPage. Parsing an
// empty slot still consumes its full tupleWidth; data must be exactly
// pageSize bytes.
func NewHeapPage(id HeapPageID, desc *TupleDesc, data []byte, pageSize int) (*HeapPage, error) {
	tupleWidth := desc.Size()
	numSlots := numSlotsForTuple(pageSize, tupleWidth)
	hs := headerSizeForSlots(numSlots)
	need := hs + numSlots*tupleWidth
	if len(data) != pageSize {
		return nil, fmt.Errorf("new heap page %s: expected %d bytes, got %d", id.Key(), pageSize, len(data))
	}
	if need > pageSize {
		return nil, fmt.Errorf("new heap page %s: schema too wide for page size", id.Key())
	}

	p := &HeapPage{
		id:         id,
		desc:       desc,
		pageSize:   pageSize,
		tupleWidth: tupleWidth,
		numSlots:   numSlots,
		headerSize: hs,
		used:       make([]bool, numSlots),
		tuples:     make([]*Tuple, numSlots),
	}

	header := data[:hs]
	for i := 0; i < numSlots; i++ {
		bit := (header[i>>3] >> uint(i&7)) & 1
		if bit == 0 {
			continue
		}
		start := hs + i*tupleWidth
		tup, err := ParseTuple(desc, data[start:start+tupleWidth])
		if err != nil {
			return nil, fmt.Errorf("new heap page %s: slot %d: %w", id.Key(), i, err)
		}
		tup.RecordID = &RecordID{PageID: id, Slot: i}
		p.used[i] = true
		p.tuples[i] = tup
	}
	return p, nil
}

func (p *HeapPage) ID() PageID { return p.id }

func (p *HeapPage) NumUnusedSlots() int {
	n := 0
	for _, u := range p.used {
		if !u {
			n++
		}
	}
	return n
}

// Serialize emits the header, then each slot (zero-filled if unused), then
// zero padding to reach exactly pageSize.
func (p *HeapPage) Serialize() []byte {
	out := make([]byte, p.pageSize)
	for i, u := range p.used {
		if !u {
			continue
		}
		out[i>>3] |= 1 << uint(i&7)
		start := p.headerSize + i*p.tupleWidth
		slot := p.tuples[i].Serialize(nil)
		copy(out[start:start+p.tupleWidth], slot)
	}
	return out
}

// InsertTuple places t into the lowest-index free slot, tagging it with
// this page's RecordID. Fails ErrPageFull if no slot is free.
func (p *HeapPage) InsertTuple(t *Tuple) error {
	if !t.Desc.Equals(p.desc) {
		return ErrSchemaMismatch
	}
	for i := 0; i < p.numSlots; i++ {
		if p.used[i] {
			continue
		}
		rid := &RecordID{PageID: p.id, Slot: i}
		cp := &Tuple{Desc: t.Desc, Fields: t.Fields, RecordID: rid}
		p.used[i] = true
		p.tuples[i] = cp
		t.RecordID = rid
		return nil
	}
	return ErrPageFull
}

// DeleteTuple clears t's slot. t.RecordID must name this page and an
// occupied slot.
func (p *HeapPage) DeleteTuple(t *Tuple) error {
	if t.RecordID == nil || t.RecordID.PageID.Key() != p.id.Key() {
		return ErrWrongPage
	}
	slot := t.RecordID.Slot
	if slot < 0 || slot >= p.numSlots || !p.used[slot] {
		return ErrSlotEmpty
	}
	p.used[slot] = false
	p.tuples[slot] = nil
	return nil
}

func (p *HeapPage) MarkDirty(tid TxID) {
	t := tid
	p.dirtyTid = &t
}

func (p *HeapPage) ClearDirty() {
	p.dirtyTid = nil
}

func (p *HeapPage) IsDirty() *TxID { return p.dirtyTid }

// Iterator returns a closure yielding tuples from used slots in slot order,
// nil,nil once exhausted. Matches the open/next iterator shape the rest of
// this engine's files use.
func (p *HeapPage) Iterator() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for i < p.numSlots {
			idx := i
			i++
			if p.used[idx] {
				return p.tuples[idx], nil
			}
		}
		return nil, nil
	}
}

// BeforeImage returns the snapshot taken by SetBeforeImage, or the current
// serialized bytes if none was ever taken.
func (p *HeapPage) BeforeImage() []byte {
	if p.beforeImage == nil {
		return p.Serialize()
	}
	return p.beforeImage
}

// SetBeforeImage snapshots the page's current bytes. Never consulted by
// this engine (there is no recovery path); kept for parity with the
// SimpleDB lineage this design descends from.
func (p *HeapPage) SetBeforeImage() {
	p.beforeImage = p.Serialize()
}
