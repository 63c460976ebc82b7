package wire

import "testing"

func TestFrameIDRoundTrip(t *testing.T) {
	types := []FrameType{FrameTypeSingle, FrameTypeBody, FrameTypeLast}

	for srcAddr := uint8(0); srcAddr <= 127; srcAddr += 7 {
		for destAddr := uint8(0); destAddr <= 127; destAddr += 11 {
			for frameIndex := uint8(0); frameIndex <= 31; frameIndex++ {
				for _, isEvent := range []bool{false, true} {
					for _, ft := range types {
						want := FrameID{
							FrameIndex: frameIndex,
							DestAddr:   destAddr,
							IsEvent:    isEvent,
							SrcAddr:    srcAddr,
							FrameType:  ft,
						}
						got := Decode(Encode(want))
						if got != want {
							t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
						}
					}
				}
			}
		}
	}
}

func TestFrameTypeValid(t *testing.T) {
	for _, ft := range []FrameType{FrameTypeSingle, FrameTypeBody, FrameTypeLast} {
		if !ft.Valid() {
			t.Errorf("FrameType(%#x).Valid() = false, want true", byte(ft))
		}
	}
	for _, bad := range []FrameType{0x00, 0x1B, 0x1F, 0xFF} {
		if bad.Valid() {
			t.Errorf("FrameType(%#x).Valid() = true, want false", byte(bad))
		}
	}
}

func TestEncodeMasksReservedToZero(t *testing.T) {
	id := Encode(FrameID{FrameIndex: 31, DestAddr: 127, IsEvent: true, SrcAddr: 127, FrameType: FrameTypeLast})
	reserved := (id >> reservedShift) & reservedMask
	if reserved != 0 {
		t.Errorf("reserved bits = %#x, want 0", reserved)
	}
	if id > IDMask {
		t.Errorf("encoded id %#x exceeds 29-bit range", id)
	}
}

func TestDriverID(t *testing.T) {
	id := Encode(FrameID{DestAddr: 5, SrcAddr: 6, FrameType: FrameTypeBody})
	got := DriverID(id, 8, 3)
	wantIndexBits := got & frameIndexMask
	if wantIndexBits != 3 {
		t.Errorf("frame index bits = %d, want 3", wantIndexBits)
	}
	if (got>>28)&0xF != 8 {
		t.Errorf("data size bits = %d, want 8", (got>>28)&0xF)
	}
}
