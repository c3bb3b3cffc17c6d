package core

import "fmt"

// RecordID uniquely locates a tuple within a file: the page it lives on and
// its slot index within that page.
type RecordID struct {
	PageID PageID
	Slot   int
}

// Tuple is a row of typed field values under a TupleDesc, plus an optional
// RecordID set once the tuple has been placed in a page slot.
type Tuple struct {
	Desc     *TupleDesc
	Fields   []Field
	RecordID *RecordID
}

// NewTuple builds a tuple and checks its field values against desc.
func NewTuple(desc *TupleDesc, fields ...Field) (*Tuple, error) {
	if len(fields) != len(desc.Fields) {
		return nil, fmt.Errorf("tuple: expected %d fields, got %d", len(desc.Fields), len(fields))
	}
	for i, f := range fields {
		if f.Type() != desc.Fields[i].Type {
			return nil, fmt.Errorf("tuple: field %d: expected %s, got %s", i, desc.Fields[i].Type, f.Type())
		}
	}
	return &Tuple{Desc: desc, Fields: fields}, nil
}

// Serialize appends this tuple's fixed-width wire encoding to dst.
func (t *Tuple) Serialize(dst []byte) []byte {
	for _, f := range t.Fields {
		dst = f.Serialize(dst)
	}
	return dst
}

// ParseTuple reads one fixed-width tuple matching desc from the front of
// src.
func ParseTuple(desc *TupleDesc, src []byte) (*Tuple, error) {
	fields := make([]Field, len(desc.Fields))
	off := 0
	for i, fd := range desc.Fields {
		switch fd.Type {
		case IntType:
			f, err := ParseIntField(src[off:])
			if err != nil {
				return nil, fmt.Errorf("parse tuple field %d: %w", i, err)
			}
			fields[i] = f
			off += intFieldWidth
		case StringType:
			f, err := ParseStringField(src[off:], fd.StringLen)
			if err != nil {
				return nil, fmt.Errorf("parse tuple field %d: %w", i, err)
			}
			fields[i] = f
			off += StringFieldWidth(fd.StringLen)
		default:
			return nil, fmt.Errorf("parse tuple field %d: unknown field type", i)
		}
	}
	return &Tuple{Desc: desc, Fields: fields}, nil
}

// Equals compares two tuples by schema and field value, ignoring RecordID.
func (t *Tuple) Equals(other *Tuple) bool {
	if !t.Desc.Equals(other.Desc) {
		return false
	}
	if len(t.Fields) != len(other.Fields) {
		return false
	}
	a, b := make([]byte, 0, t.Desc.Size()), make([]byte, 0, other.Desc.Size())
	a = t.Serialize(a)
	b = other.Serialize(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
