package core

import "errors"

// Sentinel errors for the page/file/lock taxonomy. Callers match with
// errors.Is; wrapping with fmt.Errorf("...: %w", err) is expected at every
// layer that adds context.
var (
	ErrPageFull       = errors.New("page full")
	ErrSlotEmpty      = errors.New("slot already empty")
	ErrWrongPage      = errors.New("record id belongs to a different page")
	ErrSchemaMismatch = errors.New("tuple schema does not match page schema")
	ErrDeadlockAborted = errors.New("transaction aborted: deadlock detected")
	ErrTimeoutAborted  = errors.New("transaction aborted: lock retry limit exceeded")
	ErrAllPagesDirty   = errors.New("buffer pool exhausted: all pages dirty")
	ErrNotFound        = errors.New("not found")
)
