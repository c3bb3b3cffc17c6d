package core

import "testing"

func TestTxID_ParseRoundTrip(t *testing.T) {
	orig := NewTxID()
	parsed, err := ParseTxID(orig.String())
	if err != nil {
		t.Fatalf("ParseTxID: %v", err)
	}
	if !parsed.Equal(orig) {
		t.Fatalf("parsed tid %v != original %v", parsed, orig)
	}
	if len(orig.Bytes()) != 16 {
		t.Fatalf("Bytes() length = %d, want 16", len(orig.Bytes()))
	}
}

func TestTxID_ParseInvalidFails(t *testing.T) {
	if _, err := ParseTxID("not-a-uuid"); err == nil {
		t.Fatal("expected ParseTxID to reject a malformed string")
	}
}
