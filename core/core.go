// Package core wires every ECCONet subsystem into one owned value and
// exposes the cooperative entry points described in §5/§6: Reset, Tick,
// ReceiveCANFrame, TokenIn, SendSync, plus address/event-index accessors.
// Grounded on the teacher's façade type that owned a Transmitter, Receiver,
// and Codec behind one constructor (widened here to the address allocator,
// rule engine, sequencer controller, and FTP client/server §9 calls for),
// and on its single re-entrancy guard around the tick loop.
package core

import (
	"log/slog"

	"github.com/ecconet/ecconet/addralloc"
	"github.com/ecconet/ecconet/eventindex"
	"github.com/ecconet/ecconet/ftp"
	"github.com/ecconet/ecconet/hostcap"
	"github.com/ecconet/ecconet/receiver"
	"github.com/ecconet/ecconet/ruleengine"
	"github.com/ecconet/ecconet/sequencer"
	"github.com/ecconet/ecconet/token"
	"github.com/ecconet/ecconet/transmitter"
	"github.com/ecconet/ecconet/wire"
)

// Virtual intra-node addresses, per §2: "128..255 reach intra-node
// components (rule engine = 132, sequencers 0..5 = 133..138)". These never
// appear as a CAN frame's dest field — the wire format's dest is 7 bits —
// they only steer a locally-injected token in TokenIn.
const (
	ruleEngineAddress    = 132
	sequencerBaseAddress = 133
)

// orchestratorBaseIntervalMS implements the "(1000 - 60 + our_address) ms"
// broadcast pacing of §4.8; the node's own address is added at call sites.
const orchestratorBaseIntervalMS = 1000 - 60

// Config bundles the capability interfaces and static configuration a Core
// is built from. Every field except Driver, Flash, Volumes, and GUIDs is
// optional.
type Config struct {
	Driver  hostcap.CANDriver
	Flash   hostcap.FlashDevice
	Volumes hostcap.VolumeResolver
	GUIDs   hostcap.GUIDSource

	App         hostcap.TokenSink      // optional
	FTPOverride hostcap.FTPReadHandler // optional
	RandSource  func() uint32          // optional; falls back to crypto/rand
	Logger      *slog.Logger           // optional; defaults to slog.Default()

	StaticAddress  uint8 // 0 negotiates; 1..120 pins the address permanently
	SequencerCount int
	PatternTable   sequencer.Table
}

// Core owns every protocol subsystem for one node.
type Core struct {
	cfg Config
	log *slog.Logger

	eventIdx    *eventindex.Index
	allocator   *addralloc.Allocator
	recv        *receiver.Receiver
	xmit        *transmitter.Transmitter
	rules       ruleengine.Engine
	sequencers  *sequencer.Controller
	ftpStore    *ftp.Store
	ftpServer   *ftp.Server
	ftpClient   *ftp.Client

	busy bool

	orchestratorArmed    bool
	orchestratorDeadline uint32
}

// New builds a Core from cfg and performs the equivalent of an initial Reset.
func New(cfg Config, now uint32) *Core {
	c := &Core{cfg: cfg}
	c.rebuild()
	c.Reset(now)
	return c
}

func (c *Core) rebuild() {
	c.log = c.cfg.Logger
	if c.log == nil {
		c.log = slog.Default()
	}

	c.eventIdx = eventindex.New()
	c.recv = receiver.New(c.Address)
	c.recv.SetLogger(c.log)
	c.xmit = transmitter.New(c.cfg.Driver, c.Address, c.eventIdx)
	c.xmit.SetLogger(c.log)
	c.allocator = addralloc.New(c.cfg.GUIDs, c.sendControl, c.cfg.StaticAddress != 0, c.cfg.StaticAddress, c.cfg.RandSource)
	c.allocator.SetLogger(c.log)
	c.rules = ruleengine.NewTable()
	c.sequencers = sequencer.NewController(c.cfg.SequencerCount, c.cfg.PatternTable)
	c.ftpStore = ftp.NewStore(c.cfg.Flash, c.cfg.Volumes)
	c.ftpServer = ftp.NewServer(c.ftpStore, c.cfg.GUIDs, c.cfg.FTPOverride)
	c.ftpServer.SetLogger(c.log)
	c.ftpClient = ftp.NewClient(c.sendFTPRequest)
}

// Reset re-initializes every subsystem, restarting address negotiation
// unless the node is statically addressed. This is the "reset(host_table,
// now_ms)" entry point of §6; the host table itself is bound once at
// construction rather than re-supplied on every reset, since capability
// wiring is a constructor concern here.
func (c *Core) Reset(now uint32) {
	c.rebuild()
	c.orchestratorArmed = false
	c.allocator.Tick(now) // fire the first address-negotiation broadcast immediately
}

// Address returns the node's current CAN address, or 0 before negotiation
// completes.
func (c *Core) Address() uint8 {
	if c.allocator == nil || !c.allocator.IsValid() {
		return 0
	}
	return c.allocator.Address()
}

// AddressValid reports whether the node has a usable CAN address.
func (c *Core) AddressValid() bool { return c.allocator != nil && c.allocator.IsValid() }

// EventIndex returns the node's current local event index.
func (c *Core) EventIndex() uint8 { return c.eventIdx.Value() }

// Rules exposes the rule engine's exposed variable table, so an embedder can
// seed InputStatus/OutputStatus values ahead of a real bytecode evaluator
// being wired in.
func (c *Core) Rules() ruleengine.Engine { return c.rules }

// sendControl transmits a single Command-prefixed control token as its own
// broadcast message. The address allocator's negotiation tokens are its only
// user.
func (c *Core) sendControl(key token.Key, value int32) {
	c.xmit.Start(0, key)
	c.xmit.AddToken(key, value)
	c.xmit.Finish()
}

// sendFTPRequest transmits one FTP request/response frame directly, with no
// codec framing — ftp's own wire.go already shapes payload.
func (c *Core) sendFTPRequest(addr uint8, key token.Key, payload []byte) {
	c.xmit.Start(addr, key)
	c.xmit.AddByte(key.Hi())
	c.xmit.AddByte(key.Lo())
	for _, b := range payload {
		c.xmit.AddByte(b)
	}
	c.xmit.Finish()
}

// ReceiveCANFrame is the ISR-safe entry point: decode the wire identifier
// and push the frame into the receiver's back buffer. Every accepted frame's
// source address is also reported to the address allocator, regardless of
// payload, per addralloc's collision-detection contract.
func (c *Core) ReceiveCANFrame(now uint32, id uint32, data []byte) {
	frameID := wire.Decode(id)
	if !frameID.FrameType.Valid() {
		c.log.Debug("frame dropped", slog.String("reason", "invalid-frame-type"))
		return
	}
	c.allocator.OnFrameSource(frameID.SrcAddr)
	c.recv.Ingest(now, frameID, data)
}

// TokenIn injects one locally-originated token, per §6's token_in(token).
// Its Address selects the destination: the rule engine's or a sequencer's
// virtual address delivers directly to that subsystem without touching the
// bus; anything else is routed exactly like a bus-decoded token, plus, for an
// InputStatus key, broadcast onto the bus per §4.2.
func (c *Core) TokenIn(now uint32, t token.Token) {
	switch {
	case t.Address == ruleEngineAddress:
		c.rules.OnToken(t)
	case t.Address >= sequencerBaseAddress && int(t.Address) < sequencerBaseAddress+len(c.sequencers.Sequencers):
		idx := int(t.Address) - sequencerBaseAddress
		c.sequencers.StartPattern(idx, uint16(t.Value), now, c.sinksFor(idx))
	default:
		if t.Key.Prefix() == token.PrefixInputStatus {
			c.sendEvent(t.Key, t.Value)
		}
		c.dispatchToken(now, t)
	}
}

// sendEvent broadcasts an input-event token per §4.2: the local event index
// advances once via Next(), skipping zero, and the message is then
// transmitted three times over — a CAN frame carrying an event has no
// delivery guarantee of its own, so the sender repeats it rather than
// waiting on an acknowledgment.
func (c *Core) sendEvent(key token.Key, value int32) {
	c.eventIdx.Next()
	for i := 0; i < 3; i++ {
		c.xmit.Start(0, key)
		c.xmit.AddToken(key, value)
		c.xmit.Finish()
	}
}

// SendSync broadcasts a PatternSync pulse for rootEnum, per §6's
// send_sync(token). The pulse carries no separate value byte: the pattern
// enumeration lives in the key's own body, per §4.8's routing rule "PatternSync
// → sequencer sync with value = key_without_prefix".
func (c *Core) SendSync(rootEnum uint16) error {
	if !c.AddressValid() {
		return ErrAddressNotAssigned
	}
	key := token.NewKey(token.PrefixPatternSync, rootEnum)
	c.xmit.Start(0, key)
	c.xmit.AddU16(uint16(key))
	c.xmit.Finish()
	return nil
}

// sinksFor builds the sequencer output sinks for sequencer index idx: normal
// and common-key emissions land in the rule engine's exposed table (so the
// Orchestrator can broadcast them later); a sync emission fans out to the
// application callback, the rule engine, and the bus, per §4.6.
func (c *Core) sinksFor(idx int) sequencer.Sinks {
	return sequencer.Sinks{
		Normal: func(t token.Token) {
			c.rules.OnToken(t)
			if c.cfg.App != nil {
				c.cfg.App.TokenCallback(t.Address, uint16(t.Key), t.Value, uint8(t.Flags))
			}
		},
		CommonKey: func(key token.Key, packedValue int32) {
			c.rules.OnToken(token.Token{Key: key, Value: packedValue, Flags: token.FlagShouldBroadcast})
		},
		Sync: func(rootEnum uint16) {
			// Per §4.6, a sync pulse fans out to self (the embedding
			// application), to the rule engine, and to the CAN bus. It never
			// routes through the rule engine's compressed table, since it
			// already carries its whole payload in the key body with no
			// value byte.
			key := token.NewKey(token.PrefixPatternSync, rootEnum)
			if c.cfg.App != nil {
				c.cfg.App.TokenCallback(0, uint16(key), 0, uint8(token.FlagShouldBroadcast))
			}
			c.rules.OnToken(token.Token{Key: key, Flags: token.FlagShouldBroadcast})
			c.xmit.Start(0, key)
			c.xmit.AddU16(uint16(key))
			c.xmit.Finish()
		},
	}
}

// Tick is the single schedulable surface: cooperative, self-atomic via busy.
func (c *Core) Tick(now uint32) {
	if c.busy {
		return
	}
	c.busy = true
	defer func() { c.busy = false }()

	c.allocator.Tick(now)

	for _, msg := range c.recv.Drain(now) {
		c.routeMessage(now, msg)
	}

	c.sequencers.Tick(now, c.sinksFor)

	c.ftpServer.Tick(now)
	c.ftpClient.Tick(now)

	c.tickOrchestrator(now)

	c.xmit.Tick(now)
}
