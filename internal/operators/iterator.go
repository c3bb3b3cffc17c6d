// Package operators provides a thin, iterator-based execution layer over
// internal/core: sequential and index scans, filters, a nested-loop join,
// aggregation, and insert/delete, each pinning pages transiently through
// the buffer pool rather than materializing whole result sets.
package operators

import "github.com/relstore/relstore/internal/core"

// Iterator is the common shape every operator in this package implements:
// repeated calls to Next return one tuple at a time, nil with a nil error
// at end of stream, and Rewind restarts the stream without reallocating.
type Iterator interface {
	Next() (*core.Tuple, error)
	Rewind()
}
