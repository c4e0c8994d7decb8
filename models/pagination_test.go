package models

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	encoded := EncodeCursor("GAS-13-E")
	decoded, err := DecodeCursor(&encoded)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if decoded != "GAS-13-E" {
		t.Fatalf("expected GAS-13-E; got %q", decoded)
	}
}

func TestDecodeCursorNil(t *testing.T) {
	decoded, err := DecodeCursor(nil)
	if err != nil {
		t.Fatalf("nil cursor should decode to empty: %v", err)
	}
	if decoded != "" {
		t.Fatalf("expected empty; got %q", decoded)
	}
}

func TestDecodeCursorInvalidBase64(t *testing.T) {
	bad := "not-base64!!!"
	if _, err := DecodeCursor(&bad); err == nil {
		t.Fatal("invalid base64 should error")
	}
}

func TestCompositeCursorRoundTrip(t *testing.T) {
	encoded := EncodeCompositeCursor("2026-01-15 10:30:00.000", 42)
	column, id := DecodeCompositeCursor(&encoded)
	if column != "2026-01-15 10:30:00.000" || id != 42 {
		t.Fatalf("round trip mismatch: %q %d", column, id)
	}
}

func TestDecodeCompositeCursorMalformed(t *testing.T) {
	for _, raw := range []string{"", "garbage", EncodeCursor("no-separator"), EncodeCursor("a|b|c"), EncodeCursor("a|notanumber")} {
		raw := raw
		column, id := DecodeCompositeCursor(&raw)
		if column != "" || id != 0 {
			t.Errorf("malformed cursor %q should decode to zero values; got %q %d", raw, column, id)
		}
	}
}
