package hostfake

import (
	"sync"

	"github.com/ecconet/ecconet/hostcap"
)

// Flash is a plain byte-slice-backed hostcap.FlashDevice: one volume is one
// growable buffer, addressed by (offset, length). Grounded on the same
// in-memory-fake-over-a-capability-interface idea as driver/stub.Driver, with
// no wear-levelling or timing behaviour since ECCONet's flash contract is
// synchronous per §5.
type Flash struct {
	mu      sync.Mutex
	volumes map[uint16][]byte
}

// NewFlash returns an empty Flash with no volumes allocated yet.
func NewFlash() *Flash {
	return &Flash{volumes: make(map[uint16][]byte)}
}

func (f *Flash) volume(v uint16) []byte {
	buf, ok := f.volumes[v]
	if !ok {
		buf = make([]byte, 0)
		f.volumes[v] = buf
	}
	return buf
}

func (f *Flash) ensureSize(v uint16, size uint32) []byte {
	buf := f.volume(v)
	if uint32(len(buf)) < size {
		grown := make([]byte, size)
		copy(grown, buf)
		f.volumes[v] = grown
		return grown
	}
	return buf
}

// FlashRead implements hostcap.FlashDevice.
func (f *Flash) FlashRead(volume uint16, addr uint32, buf []byte) hostcap.FlashStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.volume(volume)
	end := addr + uint32(len(buf))
	if end > uint32(len(v)) {
		return hostcap.FlashError
	}
	copy(buf, v[addr:end])
	return hostcap.FlashOK
}

// FlashWrite implements hostcap.FlashDevice.
func (f *Flash) FlashWrite(volume uint16, addr uint32, data []byte) hostcap.FlashStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := addr + uint32(len(data))
	v := f.ensureSize(volume, end)
	copy(v[addr:end], data)
	return hostcap.FlashOK
}

// FlashErase implements hostcap.FlashDevice, filling the given range with
// 0xFF.
func (f *Flash) FlashErase(volume uint16, addr uint32, length uint32) hostcap.FlashStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := addr + length
	v := f.ensureSize(volume, end)
	for i := addr; i < end; i++ {
		v[i] = 0xFF
	}
	return hostcap.FlashOK
}

// Contents returns a copy of the raw bytes of a volume, for test assertions.
func (f *Flash) Contents(volume uint16) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.volume(volume)
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Seed pre-loads a volume's contents, growing it if necessary.
func (f *Flash) Seed(volume uint16, addr uint32, data []byte) {
	f.FlashWrite(volume, addr, data)
}
