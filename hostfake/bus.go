// Package hostfake provides in-memory implementations of hostcap's
// interfaces for tests and examples, grounded directly on the teacher's
// driver/stub.Driver: a fixed-capacity ring buffer standing in for the wire,
// with a GetTxLog-style hook for reading back sent frames (renamed to the
// CAN domain). There is no inbound-injection hook; tests feed received
// frames to Core.ReceiveCANFrame directly.
package hostfake

import (
	"sync"

	"github.com/ecconet/ecconet/hostcap"
)

const ringCapacity = 64

type canFrame struct {
	id   uint32
	data []byte
}

// ringBuffer is the teacher's driver/stub.ringBuffer, generalized from
// [][]byte payloads to (id, data) CAN frames.
type ringBuffer struct {
	data       [ringCapacity]canFrame
	head, tail int
	count      int
}

func (rb *ringBuffer) push(f canFrame) {
	if rb.count == ringCapacity {
		rb.data[rb.head] = canFrame{}
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = f
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

func (rb *ringBuffer) pop() (canFrame, bool) {
	if rb.count == 0 {
		return canFrame{}, false
	}
	f := rb.data[rb.head]
	rb.data[rb.head] = canFrame{}
	rb.head = (rb.head + 1) % ringCapacity
	rb.count--
	return f, true
}

func (rb *ringBuffer) snapshot() []canFrame {
	out := make([]canFrame, 0, rb.count)
	i := rb.head
	for c := 0; c < rb.count; c++ {
		out = append(out, rb.data[i])
		i = (i + 1) % ringCapacity
	}
	return out
}

// Bus is a hostcap.CANDriver that records every sent frame; it does not
// carry inbound frames. Busy responses can be scripted via SetBusy to
// exercise the transmitter's back-pressure handling.
type Bus struct {
	mu    sync.Mutex
	sent  ringBuffer
	busy  bool
	drops int
}

// NewBus returns an empty Bus.
func NewBus() *Bus { return &Bus{} }

// SendCAN implements hostcap.CANDriver.
func (b *Bus) SendCAN(id uint32, data []byte) hostcap.SendStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.busy {
		return hostcap.SendBusy
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.sent.push(canFrame{id: id, data: cp})
	return hostcap.SendOK
}

// SetBusy scripts the next SendCAN calls to report Busy until cleared.
func (b *Bus) SetBusy(busy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy = busy
}

// SentFrame is a recorded outbound frame, exposed for test assertions.
type SentFrame struct {
	ID   uint32
	Data []byte
}

// SentFrames returns every frame accepted by SendCAN since the last Drain.
func (b *Bus) SentFrames() []SentFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw := b.sent.snapshot()
	out := make([]SentFrame, len(raw))
	for i, f := range raw {
		out[i] = SentFrame{ID: f.id, Data: f.data}
	}
	return out
}

// Drain returns and clears every recorded frame.
func (b *Bus) Drain() []SentFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SentFrame, 0, b.sent.count)
	for {
		f, ok := b.sent.pop()
		if !ok {
			break
		}
		out = append(out, SentFrame{ID: f.id, Data: f.data})
	}
	return out
}
