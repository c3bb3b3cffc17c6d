package core

// Page is the common surface the buffer pool needs from any cached page,
// whether it belongs to a HeapFile or a BTreeFile.
type Page interface {
	ID() PageID
	Serialize() []byte
	MarkDirty(tid TxID)
	ClearDirty()
	IsDirty() *TxID
	BeforeImage() []byte
	SetBeforeImage()
}

// DBFile is the common surface a file (heap or B+-tree) exposes to the
// buffer pool: raw page I/O keyed by PageID. Higher-level operations
// (insert/delete/iterate) live on the concrete file types, since they need
// to talk back to the buffer pool for locking.
type DBFile interface {
	TableID() int64
	ReadPage(pid PageID) (Page, error)
	WritePage(p Page) error
}

// Catalog maps stable table identifiers to their backing file and schema.
// spec.md §6 treats this as a required external dependency of the core;
// engine context code builds one per open database.
type Catalog interface {
	GetFile(tableID int64) (DBFile, error)
	GetTupleDesc(tableID int64) (*TupleDesc, error)
}

var _ Page = (*HeapPage)(nil)
