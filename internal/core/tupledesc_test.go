package core

import "testing"

func twoIntDesc(t *testing.T) *TupleDesc {
	t.Helper()
	d, err := NewTupleDesc(
		FieldDesc{Name: "a", Type: IntType},
		FieldDesc{Name: "b", Type: IntType},
	)
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return d
}

func TestTupleDesc_Size(t *testing.T) {
	d := twoIntDesc(t)
	if got := d.Size(); got != 8 {
		t.Fatalf("size = %d, want 8", got)
	}
}

func TestTupleDesc_Equals(t *testing.T) {
	a := twoIntDesc(t)
	b, _ := NewTupleDesc(
		FieldDesc{Name: "x", Type: IntType},
		FieldDesc{Name: "y", Type: IntType},
	)
	if !a.Equals(b) {
		t.Fatal("expected structurally equal schemas to compare equal despite differing names")
	}
	c, _ := NewTupleDesc(FieldDesc{Name: "a", Type: IntType})
	if a.Equals(c) {
		t.Fatal("expected schemas of different length to compare unequal")
	}
}

func TestTupleDesc_FieldIndex(t *testing.T) {
	d := twoIntDesc(t)
	if d.FieldIndex("b") != 1 {
		t.Fatalf("FieldIndex(b) = %d, want 1", d.FieldIndex("b"))
	}
	if d.FieldIndex("missing") != -1 {
		t.Fatal("expected -1 for unknown field")
	}
}

func TestNewTupleDesc_RequiresFields(t *testing.T) {
	if _, err := NewTupleDesc(); err == nil {
		t.Fatal("expected error for empty schema")
	}
}
