package core

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/relstore/relstore/internal/storage"
)

// TxID is the opaque transaction identifier spec.md §3 calls out: born at
// the first get_page, dies at transaction_complete. The teacher's pager
// hands out monotonic counters backed by a superblock; this engine keeps no
// superblock, so a random v4 UUID (as the teacher already uses for other
// opaque ids in internal/storage/uuid_helpers.go) is the natural substitute.
type TxID struct {
	id uuid.UUID
}

// NewTxID returns a fresh, globally unique transaction identifier.
func NewTxID() TxID {
	return TxID{id: uuid.New()}
}

// ParseTxID reconstructs a TxID from its String() form, via the teacher's
// uuid parsing helper.
func ParseTxID(s string) (TxID, error) {
	u, err := storage.ParseUUID(s)
	if err != nil {
		return TxID{}, fmt.Errorf("parse tx id %q: %w", s, err)
	}
	return TxID{id: u}, nil
}

func (t TxID) String() string {
	return t.id.String()
}

// Bytes returns the TxID's 16-byte binary encoding, via the teacher's
// uuid-to-bytes helper. Used for the compact tag lock contention errors
// report.
func (t TxID) Bytes() []byte {
	return storage.UUIDToBytes(t.id)
}

func (t TxID) IsZero() bool {
	return t.id == uuid.Nil
}

func (a TxID) Equal(b TxID) bool {
	return a.id == b.id
}
