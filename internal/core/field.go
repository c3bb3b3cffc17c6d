package core

import (
	"encoding/binary"
	"fmt"
)

// FieldType is the closed set of column types this engine understands.
type FieldType int

const (
	IntType FieldType = iota
	StringType
)

func (t FieldType) String() string {
	switch t {
	case IntType:
		return "INT"
	case StringType:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// intFieldWidth is the fixed on-disk width of an INT field: a 4-byte,
// two's-complement, big-endian integer (spec.md §6, external interface).
const intFieldWidth = 4

// Field is one typed column value within a tuple.
type Field interface {
	Type() FieldType
	// Serialize appends this field's fixed-width wire encoding to dst and
	// returns the result.
	Serialize(dst []byte) []byte
}

// IntField is a 4-byte signed integer field.
type IntField struct {
	Value int32
}

func (f IntField) Type() FieldType { return IntType }

func (f IntField) Serialize(dst []byte) []byte {
	var buf [intFieldWidth]byte
	binary.BigEndian.PutUint32(buf[:], uint32(f.Value))
	return append(dst, buf[:]...)
}

// ParseIntField reads one fixed-width IntField from the front of src.
func ParseIntField(src []byte) (IntField, error) {
	if len(src) < intFieldWidth {
		return IntField{}, fmt.Errorf("parse int field: need %d bytes, have %d", intFieldWidth, len(src))
	}
	return IntField{Value: int32(binary.BigEndian.Uint32(src))}, nil
}

// StringField is a variable-length string stored in a fixed-width slot:
// a 4-byte big-endian length prefix followed by exactly MaxLen bytes,
// NUL-padded (spec.md §6).
type StringField struct {
	Value  string
	MaxLen int
}

func (f StringField) Type() FieldType { return StringType }

// StringFieldWidth is the on-disk width of a StringField slot with the given maximum
// length: a 4-byte length prefix plus MaxLen content bytes.
func StringFieldWidth(maxLen int) int { return 4 + maxLen }

func (f StringField) Serialize(dst []byte) []byte {
	raw := []byte(f.Value)
	if len(raw) > f.MaxLen {
		raw = raw[:f.MaxLen]
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(raw)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, raw...)
	padding := f.MaxLen - len(raw)
	for i := 0; i < padding; i++ {
		dst = append(dst, 0)
	}
	return dst
}

// CompareFields orders two fields of matching type: numerically for INT,
// lexicographically for STRING. Used by the B+-tree to keep leaves and
// internal entries sorted on the key field.
func CompareFields(a, b Field) (int, error) {
	if a.Type() != b.Type() {
		return 0, fmt.Errorf("compare fields: type mismatch %s vs %s", a.Type(), b.Type())
	}
	switch av := a.(type) {
	case IntField:
		bv := b.(IntField)
		switch {
		case av.Value < bv.Value:
			return -1, nil
		case av.Value > bv.Value:
			return 1, nil
		default:
			return 0, nil
		}
	case StringField:
		bv := b.(StringField)
		switch {
		case av.Value < bv.Value:
			return -1, nil
		case av.Value > bv.Value:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("compare fields: unsupported type %s", a.Type())
	}
}

// ParseStringField reads one fixed-width StringField of the given maximum
// length from the front of src.
func ParseStringField(src []byte, maxLen int) (StringField, error) {
	width := StringFieldWidth(maxLen)
	if len(src) < width {
		return StringField{}, fmt.Errorf("parse string field: need %d bytes, have %d", width, len(src))
	}
	n := binary.BigEndian.Uint32(src[:4])
	if int(n) > maxLen {
		return StringField{}, fmt.Errorf("parse string field: encoded length %d exceeds max %d", n, maxLen)
	}
	return StringField{Value: string(src[4 : 4+n]), MaxLen: maxLen}, nil
}
