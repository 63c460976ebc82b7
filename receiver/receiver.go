// Package receiver ingests inbound CAN frames from ISR context into a back
// buffer, sorts and reassembles them into complete messages on tick, and
// hands the payload of each complete message to the router, per §4.3.
// Grounded on the teacher's transport.Receiver two-stage buffering (an
// interrupt-safe ring plus a tick-drained working set), generalized from
// fixed single-frame packets to the multi-frame reassembly and per-sender
// sort this protocol needs.
package receiver

import (
	"log/slog"

	"github.com/ecconet/ecconet/wire"
)

const (
	backSize        = 24 // ISR-written ring, spec minimum 20
	frontCapacity   = 80 // sorted working set, spec minimum 72
	sortWindow      = 15
	evictAfterMS    = 750
	filterClearMS   = 1000
)

// frameFlag mirrors wire.FrameType, offset so zero means "empty slot".
type frameFlag uint8

const (
	flagNone frameFlag = iota
	flagSingle
	flagBody
	flagLast
)

func flagFromType(t wire.FrameType) frameFlag {
	switch t {
	case wire.FrameTypeSingle:
		return flagSingle
	case wire.FrameTypeBody:
		return flagBody
	case wire.FrameTypeLast:
		return flagLast
	default:
		return flagNone
	}
}

type rxFrame struct {
	srcAddr, destAddr uint8
	frameType         wire.FrameType
	frameIndex        uint8
	isEvent           bool
	data              []byte
	timestampMS       uint32
}

// slot is one entry of the sorted front buffer.
type slot struct {
	sender      uint8
	destAddr    uint8
	frameIndex  uint8
	flag        frameFlag
	isEvent     bool
	data        []byte
	timestampMS uint32
}

// Message is a fully reassembled, CRC-verified payload ready for routing.
// DestAddr preserves the frame's wire destination address (0 for broadcast,
// 1..127 for a specific node) exactly as decoded — never one of the
// 128..255 virtual intra-node addresses, which have no representation in
// the 7-bit wire field and only ever apply to locally-injected tokens.
type Message struct {
	Sender   uint8
	DestAddr uint8
	IsEvent  bool
	Payload  []byte
}

// Receiver owns the back and front buffers described in §4.3 and §5.
type Receiver struct {
	localAddr func() uint8
	log       *slog.Logger

	back            [backSize]rxFrame
	writeIdx, readIdx int

	front []slot

	filterActive   bool
	filterAddr     uint8
	filterSetAtMS  uint32
}

// New returns an empty Receiver.
func New(localAddr func() uint8) *Receiver {
	return &Receiver{localAddr: localAddr, front: make([]slot, 0, frontCapacity), log: slog.Default()}
}

// SetLogger overrides the receiver's logger; a nil logger is ignored.
func (r *Receiver) SetLogger(l *slog.Logger) {
	if l != nil {
		r.log = l
	}
}

// SetSenderFilter restricts multi-frame ingestion to frames from addr until
// it auto-clears after filterClearMS.
func (r *Receiver) SetSenderFilter(now uint32, addr uint8) {
	r.filterActive = true
	r.filterAddr = addr
	r.filterSetAtMS = now
}

// ClearSenderFilter releases any active sender filter immediately.
func (r *Receiver) ClearSenderFilter() { r.filterActive = false }

// FilterActive reports whether a sender filter is currently suppressing
// multi-frame ingestion from every other sender.
func (r *Receiver) FilterActive() bool { return r.filterActive }

func isOlder(candidate, ref uint8) bool {
	diff := (ref - candidate) & 0x1F
	return diff != 0 && diff < 16
}

// Ingest may run in ISR context: it validates and stores one raw frame into
// the back buffer at writeIdx. Overflow overwrites the oldest unread frame.
func (r *Receiver) Ingest(now uint32, id wire.FrameID, data []byte) {
	if !id.FrameType.Valid() {
		return
	}
	if id.FrameType != wire.FrameTypeSingle && r.filterActive && id.SrcAddr != r.filterAddr {
		return
	}
	local := r.localAddr()
	if id.DestAddr != 0 && id.DestAddr != local {
		return
	}
	size := len(data)
	if size > 8 {
		size = 8
	}
	cp := make([]byte, size)
	copy(cp, data[:size])

	f := rxFrame{
		srcAddr:     id.SrcAddr,
		destAddr:    id.DestAddr,
		frameType:   id.FrameType,
		frameIndex:  id.FrameIndex,
		isEvent:     id.IsEvent,
		data:        cp,
		timestampMS: now,
	}

	next := (r.writeIdx + 1) % backSize
	if next == r.readIdx {
		r.log.Debug("frame dropped", slog.String("reason", "back-buffer-overflow"), slog.Int("sender", int(id.SrcAddr)))
		r.readIdx = (r.readIdx + 1) % backSize // overwrite oldest unread
	}
	r.back[r.writeIdx] = f
	r.writeIdx = next
}

// Drain moves newly-ingested back-buffer frames into the sorted front
// buffer, reassembles every complete message found there, and runs
// housekeeping. Reassembled messages are returned in front-buffer order.
func (r *Receiver) Drain(now uint32) []Message {
	numNew := (r.writeIdx - r.readIdx + backSize) % backSize
	for i := 0; i < numNew; i++ {
		f := r.back[r.readIdx]
		r.back[r.readIdx] = rxFrame{}
		r.readIdx = (r.readIdx + 1) % backSize
		r.insertSorted(slot{
			sender:      f.srcAddr,
			destAddr:    f.destAddr,
			frameIndex:  f.frameIndex,
			flag:        flagFromType(f.frameType),
			isEvent:     f.isEvent,
			data:        f.data,
			timestampMS: f.timestampMS,
		})
	}

	msgs := r.reassembleAll()
	r.evictStale(now)
	if r.filterActive && now-r.filterSetAtMS >= filterClearMS {
		r.filterActive = false
	}
	return msgs
}

// insertSorted places s into the front buffer following the windowed
// backward search of §4.3: same sender+frameIndex replaces in place, else s
// is inserted after the youngest older same-sender frame found within the
// last sortWindow entries.
func (r *Receiver) insertSorted(s slot) {
	n := len(r.front)
	start := n - sortWindow
	if start < 0 {
		start = 0
	}

	matchIdx := -1
	insertAt := n // default: sender not seen in window, append at tail
	sawSender := false
	foundOlder := false
	earliestSenderIdx := -1

	for i := n - 1; i >= start; i-- {
		if r.front[i].sender != s.sender {
			continue
		}
		sawSender = true
		earliestSenderIdx = i
		if r.front[i].frameIndex == s.frameIndex {
			matchIdx = i
			break
		}
		if isOlder(r.front[i].frameIndex, s.frameIndex) {
			insertAt = i + 1
			foundOlder = true
			break
		}
	}

	if matchIdx >= 0 {
		r.front[matchIdx] = s
		return
	}
	if !foundOlder && sawSender {
		insertAt = earliestSenderIdx
	}

	if len(r.front) >= frontCapacity {
		r.front = r.front[1:]
		insertAt--
		if insertAt < 0 {
			insertAt = 0
		}
	}

	r.front = append(r.front, slot{})
	copy(r.front[insertAt+1:], r.front[insertAt:len(r.front)-1])
	r.front[insertAt] = s
}

// reassembleAll walks the front buffer oldest-first, consuming complete
// messages (single-frame, or contiguous multi-frame runs ending in LAST) and
// dropping orphaned or CRC-failed sequences.
func (r *Receiver) reassembleAll() []Message {
	var out []Message
	i := 0
	for i < len(r.front) {
		s := r.front[i]
		switch s.flag {
		case flagNone:
			i++
			continue
		case flagSingle:
			out = append(out, Message{Sender: s.sender, DestAddr: s.destAddr, IsEvent: s.isEvent, Payload: s.data})
			r.consume(i, 1)
		case flagLast:
			// Orphan LAST with no opening BODY: drop.
			r.log.Debug("frame dropped", slog.String("reason", "orphan-last"), slog.Int("sender", int(s.sender)))
			r.consume(i, 1)
		case flagBody:
			end := i + 1
			ok := false
			for end < len(r.front) {
				next := r.front[end]
				if next.sender != s.sender || next.frameIndex != (r.front[end-1].frameIndex+1)&0x1F {
					break
				}
				if next.flag == flagLast {
					end++
					ok = true
					break
				}
				if next.flag != flagBody {
					break
				}
				end++
			}
			count := end - i
			if ok && count >= 2 {
				var payload []byte
				for j := i; j < end; j++ {
					payload = append(payload, r.front[j].data...)
				}
				if body, valid := wire.VerifyAndStrip(payload); valid {
					out = append(out, Message{Sender: s.sender, DestAddr: s.destAddr, IsEvent: s.isEvent, Payload: body})
				} else {
					r.log.Debug("frame dropped", slog.String("reason", "bad-crc"), slog.Int("sender", int(s.sender)))
				}
				r.consume(i, count)
			} else {
				// Not complete yet — leave the run in the buffer for a
				// future tick (stale eviction removes it if it never
				// completes) and carry on with the frames after it.
				i = end
			}
		}
	}
	return out
}

func (r *Receiver) consume(at, n int) {
	copy(r.front[at:], r.front[at+n:])
	r.front = r.front[:len(r.front)-n]
}

func (r *Receiver) evictStale(now uint32) {
	kept := r.front[:0]
	for _, s := range r.front {
		if s.flag != flagNone && now-s.timestampMS >= evictAfterMS {
			r.log.Debug("frame dropped", slog.String("reason", "stale"), slog.Int("sender", int(s.sender)))
			continue
		}
		kept = append(kept, s)
	}
	r.front = kept
}
