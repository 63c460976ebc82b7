package wire

// FrameType identifies the role a single CAN frame plays within a message.
// Any bit pattern outside this closed set must be treated as NONE/skip by
// callers — see FrameType.Valid.
type FrameType uint8

const (
	FrameTypeSingle FrameType = 0x1C
	FrameTypeBody   FrameType = 0x1D
	FrameTypeLast   FrameType = 0x1E
)

// Valid reports whether t is one of the three frame types the wire format
// defines. Any other 5-bit value causes the frame to be dropped per spec.
func (t FrameType) Valid() bool {
	switch t {
	case FrameTypeSingle, FrameTypeBody, FrameTypeLast:
		return true
	default:
		return false
	}
}

// Bit widths and shifts of the 29-bit CAN identifier. Field layout is
// bit-exact on the wire; do not rely on struct bit-fields, only explicit
// shifts and masks (mirrors the teacher's little-endian byte-level framing
// discipline in protocol/frame.go, generalized to a sub-byte bitfield).
const (
	frameIndexBits = 5
	destAddrBits   = 7
	isEventBits    = 1
	reservedBits   = 4
	srcAddrBits    = 7
	frameTypeBits  = 5

	frameIndexShift = 0
	destAddrShift   = frameIndexShift + frameIndexBits // 5
	isEventShift    = destAddrShift + destAddrBits      // 12
	reservedShift   = isEventShift + isEventBits         // 13
	srcAddrShift    = reservedShift + reservedBits       // 17
	frameTypeShift  = srcAddrShift + srcAddrBits         // 24

	frameIndexMask = (1 << frameIndexBits) - 1
	destAddrMask   = (1 << destAddrBits) - 1
	isEventMask    = (1 << isEventBits) - 1
	reservedMask   = (1 << reservedBits) - 1
	srcAddrMask    = (1 << srcAddrBits) - 1
	frameTypeMask  = (1 << frameTypeBits) - 1

	// IDMask masks a 32-bit value down to the 29 significant identifier bits.
	IDMask = (1 << 29) - 1
)

// FrameID is the decoded form of the 29-bit CAN identifier.
type FrameID struct {
	FrameIndex uint8 // 5 bits, 0..31
	DestAddr   uint8 // 7 bits, 0..127
	IsEvent    bool
	SrcAddr    uint8 // 7 bits, 0..127
	FrameType  FrameType
}

// Encode packs id into its 29-bit wire representation. The reserved field is
// always emitted as zero.
func Encode(id FrameID) uint32 {
	var v uint32
	v |= uint32(id.FrameIndex&frameIndexMask) << frameIndexShift
	v |= uint32(id.DestAddr&destAddrMask) << destAddrShift
	if id.IsEvent {
		v |= 1 << isEventShift
	}
	v |= uint32(id.SrcAddr&srcAddrMask) << srcAddrShift
	v |= uint32(id.FrameType) << frameTypeShift
	return v & IDMask
}

// Decode unpacks a 29-bit CAN identifier. The returned FrameType is not
// validated; callers must check FrameType.Valid() and drop the frame if it
// fails, per spec.
func Decode(v uint32) FrameID {
	v &= IDMask
	return FrameID{
		FrameIndex: uint8((v >> frameIndexShift) & frameIndexMask),
		DestAddr:   uint8((v >> destAddrShift) & destAddrMask),
		IsEvent:    (v>>isEventShift)&isEventMask != 0,
		SrcAddr:    uint8((v >> srcAddrShift) & srcAddrMask),
		FrameType:  FrameType((v >> frameTypeShift) & frameTypeMask),
	}
}

// DriverID computes the 32-bit value handed to the CAN driver's send_can, per
// §4.4: (idAddress & 0x0FFF_FFFF) | (dataSize << 28) | frameIndex. idAddress
// here is the already-encoded 29-bit identifier with the frame index bits
// zeroed by the caller if it intends to overwrite them via frameIndex.
func DriverID(idAddress uint32, dataSize uint8, frameIndex uint8) uint32 {
	return (idAddress & 0x0FFF_FFFF) | (uint32(dataSize) << 28) | uint32(frameIndex&frameIndexMask)
}
