// Package hostcap declares the capability interfaces the embedder provides to
// the ECCONet core: the CAN driver, flash primitives, the application token
// callback, FTP read overrides, and volume resolution. Core is generic over
// any implementor of these interfaces — production firmware wires them to
// real hardware, hostfake wires them to in-memory fakes for tests. This
// mirrors the teacher's transport.RadioDriver, widened from one method set to
// the eight named functions of spec.md §6.
package hostcap

// SendStatus is the two-valued result of a CAN send attempt. Busy is not a
// failure: the transmitter retries the same frame on the next tick.
type SendStatus int

const (
	SendOK SendStatus = iota
	SendBusy
)

// FlashStatus is the result of a flash primitive call.
type FlashStatus int

const (
	FlashOK FlashStatus = iota
	FlashError
)

// CANDriver sends fully-formed CAN frames to the bus. Reception is push-based:
// the embedder calls Core.ReceiveCANFrame from its ISR context instead of the
// core pulling from a CANDriver method.
type CANDriver interface {
	SendCAN(id uint32, data []byte) SendStatus
}

// FlashDevice is the raw read/write/erase primitive set backing volume 0's
// files (address.can, product.inf, equation.btc, patterns.tbl). Addressing is
// expressed as a (volume, offset, size) triple per §9's "no raw pointers"
// redesign note; the core never retains a pointer into flash.
type FlashDevice interface {
	FlashRead(volume uint16, addr uint32, buf []byte) FlashStatus
	FlashWrite(volume uint16, addr uint32, data []byte) FlashStatus
	FlashErase(volume uint16, addr uint32, length uint32) FlashStatus
}

// GUIDSource returns the node's 128-bit device GUID as four 32-bit words.
type GUIDSource interface {
	GetGUID() [4]uint32
}

// TokenSink receives every decoded token bound for the local application,
// regardless of address validity or routing outcome.
type TokenSink interface {
	TokenCallback(address uint8, key uint16, value int32, flags uint8)
}

// FTPOverrideResult is the outcome of an FTPReadHandler call.
type FTPOverrideResult int

const (
	FTPDefault FTPOverrideResult = iota
	FTPOverride
)

// FileInfo describes a file the FTP server is about to answer a FileInfo or
// FileReadStart request for.
type FileInfo struct {
	Name string
	Size uint32
}

// FTPReadHandler lets the embedder intercept an inbound file read before the
// FTP server serves it from flash — used for virtual files like product.inf
// whose GUID suffix the core does not itself know how to fabricate. Returning
// FTPDefault falls through to the ordinary flash-backed read path.
type FTPReadHandler interface {
	FTPReadOverride(requester uint8, info FileInfo) (data []byte, result FTPOverrideResult)
}

// VolumeResolver maps a filename to the flash volume that stores it.
type VolumeResolver interface {
	FileToVolume(name string) uint16
}
