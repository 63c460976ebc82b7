package token

import "testing"

func TestKeyPrefixBodyRoundTrip(t *testing.T) {
	prefixes := []Prefix{
		PrefixCommand, PrefixOutputStatus, PrefixInputStatus,
		PrefixBinaryRepeat, PrefixAnalogRepeat, PrefixPatternSync,
	}
	for _, p := range prefixes {
		for _, body := range []uint16{0, 1, 199, 4095, 8191} {
			k := NewKey(p, body)
			if k.Prefix() != p {
				t.Errorf("NewKey(%#x, %d).Prefix() = %#x, want %#x", p, body, k.Prefix(), p)
			}
			if k.Body() != body {
				t.Errorf("NewKey(%#x, %d).Body() = %d, want %d", p, body, k.Body(), body)
			}
		}
	}
}

func TestKeyBytesRoundTrip(t *testing.T) {
	k := NewKey(PrefixOutputStatus, 500)
	got := KeyFromBytes(k.Hi(), k.Lo())
	if got != k {
		t.Errorf("KeyFromBytes round trip = %#x, want %#x", got, k)
	}
}

func TestValueSizeRegions(t *testing.T) {
	tests := []struct {
		body uint16
		want int
	}{
		{1, 1}, {119, 1},
		{120, 2}, {169, 2},
		{170, 4}, {189, 4},
		{190, 0}, {199, 0},
		{200, 1}, {499, 1},
		{500, 1}, {999, 1},
		{1000, 1}, {4999, 1},
		{5000, 2}, {6999, 2},
		{7000, 4}, {7999, 4},
		{8000, 0}, {8149, 0},
		{8150, 3}, {8159, 3},
	}
	for _, tt := range tests {
		k := NewKey(PrefixCommand, tt.body)
		size, ok := ValueSize(k)
		if !ok {
			t.Errorf("ValueSize(body=%d) ok = false, want true", tt.body)
			continue
		}
		if size != tt.want {
			t.Errorf("ValueSize(body=%d) = %d, want %d", tt.body, size, tt.want)
		}
	}
}

func TestValueSizeUnknownBody(t *testing.T) {
	if _, ok := ValueSize(NewKey(PrefixCommand, 0)); ok {
		t.Error("ValueSize(body=0) ok = true, want false (outside every region)")
	}
}

func TestFTPRegionClassification(t *testing.T) {
	if !IsFTPRequest(NewKey(PrefixCommand, 8165)) {
		t.Error("body 8165 should be an FTP request key")
	}
	if !IsFTPResponse(NewKey(PrefixCommand, 8180)) {
		t.Error("body 8180 should be an FTP response key")
	}
	if IsFTPRequest(NewKey(PrefixCommand, 1000)) {
		t.Error("body 1000 should not be an FTP request key")
	}
}
