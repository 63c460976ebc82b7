package wire

import "testing"

func TestChecksumEmpty(t *testing.T) {
	if got := Checksum(nil); got != 0 {
		t.Errorf("Checksum(nil) = %#x, want 0", got)
	}
}

func TestVerifyAndStripRoundTrip(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	msg := AppendChecksum(append([]byte(nil), body...))

	got, ok := VerifyAndStrip(msg)
	if !ok {
		t.Fatal("VerifyAndStrip() ok = false, want true")
	}
	if len(got) != len(body) {
		t.Fatalf("stripped length = %d, want %d", len(got), len(body))
	}
	for i := range body {
		if got[i] != body[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], body[i])
		}
	}
}

func TestVerifyAndStripDetectsCorruption(t *testing.T) {
	msg := AppendChecksum([]byte{0xAA, 0xBB, 0xCC})
	for i := range msg {
		corrupt := append([]byte(nil), msg...)
		corrupt[i] ^= 0xFF
		if _, ok := VerifyAndStrip(corrupt); ok {
			t.Errorf("VerifyAndStrip() accepted corruption at byte %d", i)
		}
	}
}

func TestVerifyAndStripTooShort(t *testing.T) {
	if _, ok := VerifyAndStrip([]byte{0x01}); ok {
		t.Error("VerifyAndStrip() on 1-byte input, want ok=false")
	}
}
