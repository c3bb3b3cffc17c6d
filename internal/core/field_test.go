package core

import "testing"

func TestIntField_SerializeParseRoundTrip(t *testing.T) {
	f := IntField{Value: -42}
	buf := f.Serialize(nil)
	if len(buf) != intFieldWidth {
		t.Fatalf("serialized width = %d, want %d", len(buf), intFieldWidth)
	}
	got, err := ParseIntField(buf)
	if err != nil {
		t.Fatalf("ParseIntField: %v", err)
	}
	if got.Value != f.Value {
		t.Fatalf("got %d, want %d", got.Value, f.Value)
	}
}

func TestStringField_SerializeParseRoundTrip(t *testing.T) {
	f := StringField{Value: "hello", MaxLen: 10}
	buf := f.Serialize(nil)
	if len(buf) != StringFieldWidth(10) {
		t.Fatalf("serialized width = %d, want %d", len(buf), StringFieldWidth(10))
	}
	got, err := ParseStringField(buf, 10)
	if err != nil {
		t.Fatalf("ParseStringField: %v", err)
	}
	if got.Value != f.Value {
		t.Fatalf("got %q, want %q", got.Value, f.Value)
	}
}

func TestStringField_TruncatesOverLongValues(t *testing.T) {
	f := StringField{Value: "this is too long", MaxLen: 4}
	buf := f.Serialize(nil)
	got, err := ParseStringField(buf, 4)
	if err != nil {
		t.Fatalf("ParseStringField: %v", err)
	}
	if got.Value != "this" {
		t.Fatalf("got %q, want truncated to 4 bytes", got.Value)
	}
}

func TestCompareFields_Int(t *testing.T) {
	cases := []struct {
		a, b Field
		want int
	}{
		{IntField{Value: 1}, IntField{Value: 2}, -1},
		{IntField{Value: 2}, IntField{Value: 2}, 0},
		{IntField{Value: 3}, IntField{Value: 2}, 1},
	}
	for _, c := range cases {
		got, err := CompareFields(c.a, c.b)
		if err != nil {
			t.Fatalf("CompareFields: %v", err)
		}
		if got != c.want {
			t.Fatalf("CompareFields(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareFields_TypeMismatch(t *testing.T) {
	_, err := CompareFields(IntField{Value: 1}, StringField{Value: "x", MaxLen: 4})
	if err == nil {
		t.Fatal("expected error comparing mismatched field types")
	}
}
