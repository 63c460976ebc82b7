package sequencer

import (
	"github.com/ecconet/ecconet/codec"
	"github.com/ecconet/ecconet/token"
)

// invalidEnum marks "no pattern currently running" for a sequencer's root.
const invalidEnum = 0xFFFF

// stackDepth is the maximum number of nested patterns one sequencer tracks.
const stackDepth = 3

type stackEntry struct {
	patternEnum        uint16
	steps              []byte
	firstStepPos       int
	currentPos         int
	repeatedSectionPos int
	counter            int
	sectionCounter     int
	hasCommonKey       bool
	commonKey          token.Key
	stepTime           uint32
}

// Sinks receives a running sequencer's output. Normal receives ordinary
// decompressed tokens (already intensity-scaled); CommonKey receives one
// value per common-key step, packed with intensity in bits 16..22; Sync
// receives the root pattern enumeration each time the root pattern is about
// to run its first step while sync is enabled.
type Sinks struct {
	Normal    func(t token.Token)
	CommonKey func(key token.Key, packedValue int32)
	Sync      func(rootEnum uint16)
}

// Sequencer runs one independent pattern stack.
type Sequencer struct {
	index int

	stack []stackEntry

	intensity int32 // 0..100

	syncBottom uint16
	syncTop    uint16
	syncEnable bool
}

// New returns an idle sequencer identified by index (used as the token
// address stamped on its decoded output).
func New(index int) *Sequencer {
	return &Sequencer{index: index, intensity: 100, syncTop: token.SyncNone}
}

// RootEnum returns the enumeration of the pattern at the bottom of the
// stack, or invalidEnum if nothing is running.
func (s *Sequencer) RootEnum() uint16 {
	if len(s.stack) == 0 {
		return invalidEnum
	}
	return s.stack[0].patternEnum
}

// SetIntensity sets the 0..100 output scaling applied to every emitted
// value.
func (s *Sequencer) SetIntensity(v int32) { s.intensity = v }

// SetSyncRange sets the [bottom, top] band that an incoming sync value must
// fall in to restart this sequencer's root pattern.
func (s *Sequencer) SetSyncRange(bottom, top uint16) {
	s.syncBottom = bottom
	s.syncTop = top
}

func (s *Sequencer) emitAllOff(pat Pattern, sinks Sinks) {
	for _, t := range pat.AllOff {
		t.Address = uint8(s.index)
		t.Flags |= token.FlagDefaultState
		sinks.Normal(t)
	}
}

// Stop pops the entire stack, emitting each level's all-off tokens.
func (s *Sequencer) Stop(table Table, sinks Sinks) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if pat, ok := table[s.stack[i].patternEnum]; ok {
			s.emitAllOff(pat, sinks)
		}
	}
	s.stack = nil
}

// StartPattern begins running patternEnum from the root, replacing whatever
// is currently active. A patternEnum of 0 is Pattern_Stop. Re-requesting the
// pattern already running at the root is a no-op.
func (s *Sequencer) StartPattern(table Table, patternEnum uint16, now uint32, sinks Sinks) {
	if patternEnum == 0 {
		s.Stop(table, sinks)
		return
	}
	if s.RootEnum() == patternEnum {
		return
	}
	pat, ok := table[patternEnum]
	if !ok {
		return
	}
	s.Stop(table, sinks)
	s.pushPattern(patternEnum, pat, int(pat.InitialCounter), now)
	s.syncEnable = pat.StepCount > 1 && s.syncTop != token.SyncNone
}

func (s *Sequencer) pushPattern(enum uint16, pat Pattern, counter int, now uint32) bool {
	if len(s.stack) >= stackDepth {
		return false
	}
	s.stack = append(s.stack, stackEntry{
		patternEnum:  enum,
		steps:        pat.Steps,
		firstStepPos: pat.FirstStepPos,
		currentPos:   pat.FirstStepPos,
		counter:      counter,
		hasCommonKey: pat.HasCommonKey,
		commonKey:    pat.CommonKey,
		stepTime:     now,
	})
	return true
}

// Tick runs one step of the current pattern if its step deadline has
// arrived. Callers invoke this once per sequencer per core tick.
func (s *Sequencer) Tick(now uint32, table Table, sinks Sinks) {
	if len(s.stack) == 0 {
		return
	}
	top := &s.stack[len(s.stack)-1]
	if int32(now-top.stepTime) < 0 {
		return
	}
	s.step(now, table, sinks)
}

func (s *Sequencer) step(now uint32, table Table, sinks Sinks) {
	top := &s.stack[len(s.stack)-1]

	if top.currentPos >= len(top.steps) {
		if top.counter == 0 {
			top.currentPos = top.firstStepPos
			return
		}
		top.counter--
		if top.counter > 0 {
			top.currentPos = top.firstStepPos
			return
		}
		pat, ok := table[top.patternEnum]
		if ok {
			s.emitAllOff(pat, sinks)
		}
		s.stack = s.stack[:len(s.stack)-1]
		return
	}

	if len(s.stack) == 1 && top.currentPos == top.firstStepPos && s.syncEnable {
		sinks.Sync(top.patternEnum)
	}

	tag := top.steps[top.currentPos]
	switch tag & tagMask {
	case tagStepWithPeriod:
		s.stepWithPeriod(top, now, sinks)
	case tagStepWithRepeatsOfNested:
		s.stepNestedPattern(top, tag, table, now)
	case tagSectionStartWithRepeats:
		s.sectionStart(top, tag)
	case tagSectionEnd:
		s.sectionEnd(top)
	default:
		top.currentPos++
	}
}

func (s *Sequencer) stepWithPeriod(top *stackEntry, now uint32, sinks Sinks) {
	pos := top.currentPos + 1
	if pos+2 > len(top.steps) {
		top.currentPos = len(top.steps)
		return
	}
	period := (uint16(top.steps[pos])<<8 | uint16(top.steps[pos+1])) & 0x0FFF
	pos += 2
	top.stepTime += uint32(period)

	if top.hasCommonKey {
		size, ok := token.ValueSize(top.commonKey)
		if !ok || pos+size > len(top.steps) {
			top.currentPos = len(top.steps)
			return
		}
		var v int32
		for _, b := range top.steps[pos : pos+size] {
			v = v<<8 | int32(b)
		}
		pos += size
		sinks.CommonKey(top.commonKey, v|(s.intensity<<16))
	} else {
		if pos >= len(top.steps) {
			top.currentPos = len(top.steps)
			return
		}
		n := int(top.steps[pos])
		pos++
		end := pos + n
		if end > len(top.steps) {
			end = len(top.steps)
		}
		segment := top.steps[pos:end]
		pos = end
		codec.Decompress(segment, uint8(s.index), func(t token.Token) {
			t.Value = t.Value * s.intensity / 100
			sinks.Normal(t)
		})
	}
	top.currentPos = pos
}

func (s *Sequencer) stepNestedPattern(top *stackEntry, tag byte, table Table, now uint32) {
	pos := top.currentPos + 1
	if pos+2 > len(top.steps) {
		top.currentPos = len(top.steps)
		return
	}
	enum := uint16(top.steps[pos])<<8 | uint16(top.steps[pos+1])
	pos += 2
	top.currentPos = pos

	pat, ok := table[enum]
	if !ok {
		return
	}
	s.pushPattern(enum, pat, int(tag&lowMask), now)
}

func (s *Sequencer) sectionStart(top *stackEntry, tag byte) {
	top.sectionCounter = int(tag & lowMask)
	top.currentPos++
	top.repeatedSectionPos = top.currentPos
}

func (s *Sequencer) sectionEnd(top *stackEntry) {
	if top.sectionCounter > 0 {
		top.sectionCounter--
		if top.sectionCounter > 0 {
			top.currentPos = top.repeatedSectionPos
			return
		}
	}
	top.currentPos++
}

// OnSync handles an incoming KeyTokenSequencerSync from a peer at a higher
// CAN address: if value falls in [bottom, top], or bottom is SyncExact and
// value matches the root enumeration, the root pattern restarts and steps
// once immediately.
func (s *Sequencer) OnSync(now uint32, peerAddr, ourAddr uint8, value uint16, table Table, sinks Sinks) {
	if peerAddr <= ourAddr || len(s.stack) == 0 {
		return
	}
	root := &s.stack[0]
	matches := false
	if s.syncBottom == token.SyncExact {
		matches = value == root.patternEnum
	} else {
		matches = value >= s.syncBottom && value <= s.syncTop
	}
	if !matches {
		return
	}
	root.currentPos = root.firstStepPos
	root.stepTime = now
	s.step(now, table, sinks)
}

// Controller runs N independent sequencers and dispatches the tokens that
// address them (§4.6's pattern-start, sync, sync-range, and intensity
// keys).
type Controller struct {
	Sequencers []*Sequencer
	table      Table
}

// NewController builds n sequencers over table.
func NewController(n int, table Table) *Controller {
	c := &Controller{table: table}
	for i := 0; i < n; i++ {
		c.Sequencers = append(c.Sequencers, New(i))
	}
	return c
}

// SetTable replaces the pattern table used by every sequencer.
func (c *Controller) SetTable(table Table) { c.table = table }

// StartPattern starts patternEnum directly on sequencer idx, bypassing key
// dispatch entirely — used for tokens addressed straight at a sequencer's
// virtual intra-node address rather than arriving as a Command-prefixed bus
// token.
func (c *Controller) StartPattern(idx int, patternEnum uint16, now uint32, sinks Sinks) {
	if idx < 0 || idx >= len(c.Sequencers) {
		return
	}
	c.Sequencers[idx].StartPattern(c.table, patternEnum, now, sinks)
}

// Tick steps every running sequencer.
func (c *Controller) Tick(now uint32, sinks func(index int) Sinks) {
	for i, seq := range c.Sequencers {
		seq.Tick(now, c.table, sinks(i))
	}
}

// Dispatch routes one Command-prefixed token to the sequencer it addresses.
// KeyTokenSequencerPattern/Sync/SyncRange/Intensity are per-instance keys:
// the target sequencer is key.Body() offset from that key's base body, one
// consecutive body value per sequencer, matching the region table's general
// indexed-instance convention. KeyIndexedSequencer and
// KeyIndexedTokenSequencerWithPattern are single global keys instead,
// because they pack the target index into the value itself.
func (c *Controller) Dispatch(now, ourAddr uint32, senderAddr uint8, key token.Key, value int32, sinks func(index int) Sinks) {
	switch {
	case key == token.KeyIndexedSequencer:
		// (intensity<<16) | patternEnum, targets sequencer 0 only — this
		// legacy-shaped key predates per-instance addressing and was never
		// widened to carry an index of its own.
		if len(c.Sequencers) == 0 {
			return
		}
		seq := c.Sequencers[0]
		seq.SetIntensity((value >> 16) & 0xFF)
		seq.StartPattern(c.table, uint16(value), now, sinks(0))
		return

	case key == token.KeyIndexedTokenSequencerWithPattern:
		// (exprEnum<<16) | (intensity<<8) | sequencerIndex
		idx := int(uint32(value) & 0xFF)
		if idx >= len(c.Sequencers) {
			return
		}
		seq := c.Sequencers[idx]
		seq.SetIntensity((value >> 8) & 0xFF)
		seq.StartPattern(c.table, uint16(uint32(value)>>16), now, sinks(idx))
		return
	}

	idx, base, ok := indexedBase(key)
	if !ok || idx >= len(c.Sequencers) {
		return
	}
	seq := c.Sequencers[idx]
	switch base {
	case token.KeyTokenSequencerPattern:
		seq.StartPattern(c.table, uint16(value), now, sinks(idx))
	case token.KeyTokenSequencerSync:
		seq.OnSync(now, senderAddr, uint8(ourAddr), uint16(value), c.table, sinks(idx))
	case token.KeyTokenSequencerSyncRange:
		seq.SetSyncRange(uint16(value), uint16(uint32(value)>>16))
	case token.KeyTokenSequencerIntensity:
		seq.SetIntensity(value)
	}
}

// OnSync fans an incoming PatternSync broadcast out to every sequencer, each
// independently deciding via its own [bottom, top] range whether to restart.
func (c *Controller) OnSync(now uint32, peerAddr, ourAddr uint8, value uint16, sinks func(index int) Sinks) {
	for i, seq := range c.Sequencers {
		seq.OnSync(now, peerAddr, ourAddr, value, c.table, sinks(i))
	}
}

// indexedBase matches key against the four per-instance sequencer control
// keys, trying each in turn since their body ranges may be adjacent. It
// returns the sequencer index, which base key matched, and whether any did.
func indexedBase(key token.Key) (idx int, base token.Key, ok bool) {
	bases := []token.Key{
		token.KeyTokenSequencerPattern,
		token.KeyTokenSequencerSync,
		token.KeyTokenSequencerSyncRange,
		token.KeyTokenSequencerIntensity,
	}
	if key.Prefix() != token.PrefixCommand {
		return 0, 0, false
	}
	for _, b := range bases {
		diff := int(key.Body()) - int(b.Body())
		if diff >= 0 && diff < maxSequencersPerBase {
			return diff, b, true
		}
	}
	return 0, 0, false
}

// maxSequencersPerBase bounds how far a per-instance key body may sit past
// its base before it is presumed to belong to the next control key's range
// instead. Six matches the CAN address map's six sequencer slots (133..138).
const maxSequencersPerBase = 6
