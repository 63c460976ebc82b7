// Package transmitter builds outbound CAN messages token-by-token and hands
// pre-formed frames to the driver on tick, per §4.4. Grounded on the
// teacher's transport.Transmitter (frame accumulation plus an outbound ring
// drained one frame per tick, back-pressure on a "busy" driver response),
// generalized from a single fixed payload type to the token wire format's
// start/add_*/finish builder API.
package transmitter

import (
	"log/slog"

	"github.com/ecconet/ecconet/eventindex"
	"github.com/ecconet/ecconet/hostcap"
	"github.com/ecconet/ecconet/token"
	"github.com/ecconet/ecconet/wire"
)

const (
	maxFrameData  = 8
	frameIndexMax = 32 // 5-bit cyclic
	ringCapacity  = 32

	// stuckWarnAfterMS mirrors receiver's evictAfterMS: a head-of-line frame
	// the driver keeps reporting Busy for this long is worth a log line,
	// since it means the bus (or the driver) has been unavailable for an
	// unusually long stretch.
	stuckWarnAfterMS = 750
)

type outFrame struct {
	id   uint32
	data []byte
}

// ring is a fixed-capacity FIFO of pre-formed frames. On overflow the oldest
// frame is discarded — the newest-wins policy of §4.4, mirrored from
// hostfake.ringBuffer.
type ring struct {
	data       [ringCapacity]outFrame
	head, tail int
	count      int
}

func (r *ring) push(f outFrame) {
	if r.count == ringCapacity {
		r.head = (r.head + 1) % ringCapacity
		r.count--
	}
	r.data[r.tail] = f
	r.tail = (r.tail + 1) % ringCapacity
	r.count++
}

func (r *ring) peek() (outFrame, bool) {
	if r.count == 0 {
		return outFrame{}, false
	}
	return r.data[r.head], true
}

func (r *ring) advance() {
	r.head = (r.head + 1) % ringCapacity
	r.count--
}

// Transmitter accumulates one message at a time between Start and Finish,
// then drains the resulting frames to the driver from Tick.
type Transmitter struct {
	driver    hostcap.CANDriver
	localAddr func() uint8
	eventIdx  *eventindex.Index
	log       *slog.Logger

	frameIndex uint8

	destAddr uint8
	isEvent  bool
	fifo     []byte

	out ring

	busySince  uint32
	busyLogged bool
}

// New builds a Transmitter. localAddr is called once per message, when it is
// finished, so the transmitter stamps the node's current (possibly
// still-negotiating) address rather than a value captured at construction
// time.
func New(driver hostcap.CANDriver, localAddr func() uint8, idx *eventindex.Index) *Transmitter {
	return &Transmitter{driver: driver, localAddr: localAddr, eventIdx: idx, log: slog.Default()}
}

// SetLogger replaces the transmitter's logger.
func (t *Transmitter) SetLogger(l *slog.Logger) { t.log = l }

// Start begins a new message addressed to destAddr, tagged with key. The
// isEvent frame-id bit is set iff key's prefix is InputStatus or
// OutputStatus. The message's first payload byte is the current event
// index, except for the two address-negotiation keys which always stamp 0.
func (t *Transmitter) Start(destAddr uint8, key token.Key) {
	t.destAddr = destAddr
	t.isEvent = key.Prefix() == token.PrefixInputStatus || key.Prefix() == token.PrefixOutputStatus
	t.fifo = t.fifo[:0]

	if key == token.KeyRequestAddress || key == token.KeyResponseAddressInUse {
		t.fifo = append(t.fifo, 0)
	} else {
		t.fifo = append(t.fifo, t.eventIdx.Value())
	}
}

// AddByte appends one raw byte.
func (t *Transmitter) AddByte(b byte) { t.fifo = append(t.fifo, b) }

// AddU16 appends v big-endian.
func (t *Transmitter) AddU16(v uint16) { t.fifo = append(t.fifo, byte(v>>8), byte(v)) }

// AddU32 appends v big-endian.
func (t *Transmitter) AddU32(v uint32) {
	t.fifo = append(t.fifo, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// AddToken appends a (key, value) pair: two big-endian key bytes followed by
// the key's region-mapped value size in big-endian bytes. PatternSync keys
// carry no separate value at all — the pattern enumeration lives in the
// key's own body — so AddToken is never called with one; use AddU16 with the
// raw key value instead.
func (t *Transmitter) AddToken(key token.Key, value int32) {
	t.fifo = append(t.fifo, key.Hi(), key.Lo())
	size, ok := token.ValueSize(key)
	if !ok {
		return
	}
	switch size {
	case 1:
		t.fifo = append(t.fifo, byte(value))
	case 2:
		t.fifo = append(t.fifo, byte(value>>8), byte(value))
	case 3:
		t.fifo = append(t.fifo, byte(value>>16), byte(value>>8), byte(value))
	case 4:
		t.fifo = append(t.fifo, byte(value>>24), byte(value>>16), byte(value>>8), byte(value))
	}
}

// AddString appends s plus a terminating NUL, capping the message at 256
// bytes total.
func (t *Transmitter) AddString(s string) {
	for i := 0; i < len(s) && len(t.fifo) < 255; i++ {
		t.fifo = append(t.fifo, s[i])
	}
	if len(t.fifo) < 256 {
		t.fifo = append(t.fifo, 0)
	}
}

// Finish closes out the message: single-frame if it fits in 8 bytes,
// otherwise a CRC16 is appended and the payload is chunked into 8-byte
// frames enqueued on the outbound ring for Tick to drain.
func (t *Transmitter) Finish() {
	payload := t.fifo
	multiFrame := len(payload) > maxFrameData
	if multiFrame {
		payload = wire.AppendChecksum(append([]byte(nil), payload...))
	}

	src := t.localAddr()
	for offset := 0; offset < len(payload); offset += maxFrameData {
		end := offset + maxFrameData
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[offset:end]

		var ft wire.FrameType
		switch {
		case !multiFrame:
			ft = wire.FrameTypeSingle
		case end == len(payload):
			ft = wire.FrameTypeLast
		default:
			ft = wire.FrameTypeBody
		}

		id := wire.Encode(wire.FrameID{
			FrameIndex: t.frameIndex,
			DestAddr:   t.destAddr,
			IsEvent:    t.isEvent,
			SrcAddr:    src,
			FrameType:  ft,
		})
		driverID := wire.DriverID(id, uint8(len(chunk)), t.frameIndex)

		data := make([]byte, len(chunk))
		copy(data, chunk)
		t.out.push(outFrame{id: driverID, data: data})

		t.frameIndex = (t.frameIndex + 1) % frameIndexMax
	}
}

// Tick drains as many outbound frames as the driver accepts, stopping the
// first time it reports Busy so the same frame is retried next tick. now
// tracks how long the head-of-line frame has been stuck behind a busy
// driver, so a bus that never frees up gets one warning rather than silence.
func (t *Transmitter) Tick(now uint32) {
	for {
		f, ok := t.out.peek()
		if !ok {
			t.busyLogged = false
			return
		}
		if t.driver.SendCAN(f.id, f.data) == hostcap.SendBusy {
			if t.busySince == 0 {
				t.busySince = now
			} else if !t.busyLogged && now-t.busySince >= stuckWarnAfterMS {
				t.log.Warn("outbound frame stuck behind busy driver", slog.Uint64("stalledMS", uint64(now-t.busySince)))
				t.busyLogged = true
			}
			return
		}
		t.busySince = 0
		t.busyLogged = false
		t.out.advance()
	}
}
