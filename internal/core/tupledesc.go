package core

import "fmt"

// FieldDesc names one column of a schema. StringLen is only meaningful when
// Type == StringType; it is the maximum byte length that column's
// StringField values are padded/truncated to.
type FieldDesc struct {
	Name      string
	Type      FieldType
	StringLen int
}

func (fd FieldDesc) width() int {
	switch fd.Type {
	case IntType:
		return intFieldWidth
	case StringType:
		return StringFieldWidth(fd.StringLen)
	default:
		return 0
	}
}

// TupleDesc is the ordered, immutable schema shared by every tuple in a
// heap file or B+-tree file.
type TupleDesc struct {
	Fields []FieldDesc
}

// NewTupleDesc validates and constructs a TupleDesc. A schema must name at
// least one field.
func NewTupleDesc(fields ...FieldDesc) (*TupleDesc, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("tuple desc: need at least one field")
	}
	cp := make([]FieldDesc, len(fields))
	copy(cp, fields)
	return &TupleDesc{Fields: cp}, nil
}

// Equals compares schemas structurally: same length and pairwise type
// equality. Field names are not compared.
func (d *TupleDesc) Equals(other *TupleDesc) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.Fields) != len(other.Fields) {
		return false
	}
	for i := range d.Fields {
		if d.Fields[i].Type != other.Fields[i].Type {
			return false
		}
	}
	return true
}

// Size is the fixed on-disk width of one tuple under this schema: the sum
// of every field's width.
func (d *TupleDesc) Size() int {
	total := 0
	for _, f := range d.Fields {
		total += f.width()
	}
	return total
}

// FieldIndex returns the index of the first field with the given name, or
// -1 if none matches.
func (d *TupleDesc) FieldIndex(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
