// Package addralloc implements deterministic CAN address self-assignment
// from a device GUID, §4.1. Grounded on the teacher's connection-state-
// machine style (explicit named states advanced only from Tick/OnToken
// entry points, no goroutines), generalized from a link handshake to an
// address-claim handshake.
package addralloc

import (
	crand "crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
	"time"

	"github.com/ecconet/ecconet/hostcap"
	"github.com/ecconet/ecconet/token"
)

// State is the allocator's coarse lifecycle stage.
type State int

const (
	Unassigned State = iota
	Proposing
	Assigned
)

func (s State) String() string {
	switch s {
	case Unassigned:
		return "Unassigned"
	case Proposing:
		return "Proposing"
	case Assigned:
		return "Assigned"
	default:
		return "Unknown"
	}
}

const claimTimeoutMS = 100

// deterministicCandidateLimit bounds the GUID-derived sequence: xorIndex
// cycles through 7 rotations and addressOffset advances once per full
// rotation, so a candidate list of more than 7*18 proposals is treated as
// exhausted and falls back to RandSource rather than looping forever.
const deterministicCandidateLimit = 7 * 18

// Sender emits an outgoing control token. Wired to Transmitter by Core.
type Sender func(key token.Key, value int32)

// defaultRandSource mirrors the teacher's GeneratePairingKey: crypto/rand
// first, falling back to a time-seeded math/rand only if the platform's CSPRNG
// is unavailable.
func defaultRandSource() uint32 {
	var b [4]byte
	if _, err := crand.Read(b[:]); err == nil {
		return binary.LittleEndian.Uint32(b[:])
	}
	src := mrand.NewSource(time.Now().UnixNano())
	return mrand.New(src).Uint32()
}

// Allocator runs the address self-assignment protocol for one node.
type Allocator struct {
	guids hostcap.GUIDSource
	send  Sender
	rand  func() uint32
	log   *slog.Logger

	static      bool
	state       State
	workingAddr uint8

	xorIndex      uint8
	addressOffset uint8
	attempts      int

	proposal      uint8
	claimDeadline uint32
}

// New returns an Allocator. If static is true, addr is adopted immediately
// and the negotiation protocol never runs. randSource is consulted only once
// the deterministic GUID-derived candidate sequence is exhausted; a nil
// randSource defaults to defaultRandSource.
func New(guids hostcap.GUIDSource, send Sender, static bool, addr uint8, randSource func() uint32) *Allocator {
	if randSource == nil {
		randSource = defaultRandSource
	}
	a := &Allocator{guids: guids, send: send, static: static, rand: randSource, log: slog.Default()}
	if static {
		a.workingAddr = addr
		a.state = Assigned
	}
	return a
}

// SetLogger overrides the allocator's logger; a nil logger is ignored.
func (a *Allocator) SetLogger(l *slog.Logger) {
	if l != nil {
		a.log = l
	}
}

// IsValid reports whether the node currently has an assigned address.
func (a *Allocator) IsValid() bool { return a.state == Assigned }

// Address returns the current working address; only meaningful when
// IsValid returns true.
func (a *Allocator) Address() uint8 { return a.workingAddr }

// State returns the allocator's current lifecycle stage.
func (a *Allocator) State() State { return a.state }

func guidBytes(g [4]uint32) [16]byte {
	var out [16]byte
	for i, word := range g {
		out[i*4+0] = byte(word >> 24)
		out[i*4+1] = byte(word >> 16)
		out[i*4+2] = byte(word >> 8)
		out[i*4+3] = byte(word)
	}
	return out
}

func rotateRight7(v, n uint8) uint8 {
	n %= 7
	return ((v >> n) | (v << (7 - n))) & 0x7F
}

// nextCandidate computes the next address proposal. It advances the
// deterministic (xorIndex, addressOffset) GUID-derived sequence so that
// repeated calls diverge — required so a defended collision produces a
// genuinely different second proposal — until deterministicCandidateLimit
// proposals have been made, at which point it draws from RandSource instead
// so a pathologically full bus still terminates.
func (a *Allocator) nextCandidate() uint8 {
	a.attempts++
	if a.attempts > deterministicCandidateLimit {
		candidate := uint8(a.rand()%120) + 1
		a.log.Warn("address allocator exhausted deterministic candidates, drawing random proposal",
			slog.Int("attempts", a.attempts), slog.Int("candidate", int(candidate)))
		return candidate
	}

	bytes := guidBytes(a.guids.GetGUID())
	for {
		xorValue := rotateRight7(0x64, a.xorIndex)
		sum := a.addressOffset
		for _, b := range bytes {
			sum += b ^ xorValue
		}
		candidate := sum & 0x7F

		a.xorIndex++
		if a.xorIndex == 7 {
			a.xorIndex = 0
			a.addressOffset++
		}

		if candidate != 0 && candidate <= 120 {
			return candidate
		}
	}
}

// Tick advances the negotiation state machine.
func (a *Allocator) Tick(now uint32) {
	if a.static {
		return
	}
	switch a.state {
	case Unassigned:
		a.proposal = a.nextCandidate()
		a.send(token.KeyRequestAddress, int32(a.proposal))
		a.claimDeadline = now + claimTimeoutMS
		a.state = Proposing
	case Proposing:
		if int32(now-a.claimDeadline) >= 0 {
			a.workingAddr = a.proposal
			a.state = Assigned
			a.send(token.KeyResponseAddressInUse, int32(a.workingAddr))
		}
	case Assigned:
		// Nothing to do; collisions are handled by OnFrameSource/OnToken.
	}
}

// OnFrameSource must be called for every accepted frame's source address,
// regardless of payload. A frame from our own working, non-static address
// means someone else has claimed it — re-enter self-assignment.
func (a *Allocator) OnFrameSource(src uint8) {
	if a.static || a.state != Assigned {
		return
	}
	if src == a.workingAddr {
		a.log.Warn("address collision detected, re-entering negotiation", slog.Int("address", int(a.workingAddr)))
		a.state = Unassigned
	}
}

// OnToken handles the two address-negotiation control tokens.
func (a *Allocator) OnToken(key token.Key, value int32) {
	switch key {
	case token.KeyResponseAddressInUse:
		if a.state == Proposing && value == int32(a.proposal) {
			a.state = Unassigned
		}
	case token.KeyRequestAddress:
		if a.state == Assigned && value == int32(a.workingAddr) {
			a.send(token.KeyResponseAddressInUse, int32(a.workingAddr))
		}
	}
}
