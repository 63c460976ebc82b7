// Package sequencer interprets pattern-table byte programs into token
// output over time, per §4.6. Grounded on the teacher's transport package's
// notion of a small byte-code state machine driven from tick (there the
// framing state machine, here a per-pattern program counter), generalized
// into a stack of running patterns with step opcodes.
package sequencer

import (
	"encoding/binary"
	"errors"

	"github.com/ecconet/ecconet/codec"
	"github.com/ecconet/ecconet/token"
)

// Step opcode tags, matching the top nibble of a step byte. Values below
// 0xB0 never appear as opcodes — a byte in that range is a malformed table
// and is skipped defensively.
const (
	tagStepWithPeriod             = 0xB0
	tagStepWithRepeatsOfNested    = 0xC0
	tagStepWithAllOff             = 0xD0
	tagSectionStartWithRepeats    = 0xE0
	tagSectionEnd                 = 0xF0

	tagMask = 0xF0
	lowMask = 0x0F
)

// Pattern header mode bits on the second header byte, per original_source's
// matrix_patterns.h — read as independent bitfields, not a combined value.
// Both select "this pattern drives one common key per step" for our
// purposes; the dictionary-key/LED-matrix-key distinction the original
// draws between them is not otherwise observable from this module's
// contracts, so both simply enable the common-key step-decoding path.
const (
	modeStepDictionaryKey = 0x20
	modeLedMatrixKey      = 0x40
)

// ErrMalformedTable is returned by ParseTable when an entry's declared
// length runs past the end of the buffer.
var ErrMalformedTable = errors.New("sequencer: malformed pattern table")

// Pattern is one parsed, ready-to-run entry from a pattern table.
type Pattern struct {
	HasCommonKey   bool
	CommonKey      token.Key
	InitialCounter int // 0 means "repeat forever"
	StepCount      int
	Steps          []byte
	// FirstStepPos is the offset into Steps just past an optional leading
	// 0xD0 all-off block; a pattern with no such block has FirstStepPos 0.
	FirstStepPos int
	AllOff       []token.Token
}

// Table maps a pattern enumeration to its parsed program.
type Table map[uint16]Pattern

// ParseTable decodes a sequence of table entries, each shaped as:
//
//	enum        uint16 big-endian
//	bodyLength  uint16 big-endian
//	body        bodyLength bytes: a header (2 or 4 bytes) then step bytes
//
// This on-disk shape is this module's own choice — spec.md names the file
// (patterns.tbl) and the step opcodes it must interpret but does not fix a
// container format, so ParseTable defines one consistent enough to round
// trip through BuildEntry in tests.
func ParseTable(data []byte) (Table, error) {
	table := make(Table)
	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			return nil, ErrMalformedTable
		}
		enum := binary.BigEndian.Uint16(data[pos : pos+2])
		length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		pos += 4
		if pos+length > len(data) {
			return nil, ErrMalformedTable
		}
		body := data[pos : pos+length]
		pos += length

		pat, err := parseBody(body)
		if err != nil {
			return nil, err
		}
		table[enum] = pat
	}
	return table, nil
}

func parseBody(body []byte) (Pattern, error) {
	if len(body) < 2 {
		return Pattern{}, ErrMalformedTable
	}
	counter := int(body[0] & lowMask)
	mode := body[1]
	hasCommonKey := mode&(modeStepDictionaryKey|modeLedMatrixKey) != 0

	headerLen := 2
	var commonKey token.Key
	if hasCommonKey {
		if len(body) < 4 {
			return Pattern{}, ErrMalformedTable
		}
		commonKey = token.KeyFromBytes(body[2], body[3])
		headerLen = 4
	}

	steps := body[headerLen:]

	var allOff []token.Token
	firstStepPos := 0
	if len(steps) > 0 && steps[0]&tagMask == tagStepWithAllOff {
		pos := 1
		if hasCommonKey {
			size, ok := token.ValueSize(commonKey)
			if !ok || pos+size > len(steps) {
				return Pattern{}, ErrMalformedTable
			}
			var v int32
			for _, b := range steps[pos : pos+size] {
				v = v<<8 | int32(b)
			}
			pos += size
			allOff = []token.Token{{Key: commonKey, Value: v}}
		} else {
			if pos >= len(steps) {
				return Pattern{}, ErrMalformedTable
			}
			n := int(steps[pos])
			pos++
			end := pos + n
			if end > len(steps) {
				return Pattern{}, ErrMalformedTable
			}
			if err := codec.Decompress(steps[pos:end], 0, func(t token.Token) {
				allOff = append(allOff, t)
			}); err != nil {
				return Pattern{}, ErrMalformedTable
			}
			pos = end
		}
		firstStepPos = pos
	}

	stepCount := 0
	for i := firstStepPos; i < len(steps); {
		if steps[i]&tagMask == tagStepWithPeriod {
			stepCount++
		}
		i++
	}

	return Pattern{
		HasCommonKey:   hasCommonKey,
		CommonKey:      commonKey,
		InitialCounter: counter,
		StepCount:      stepCount,
		Steps:          steps,
		FirstStepPos:   firstStepPos,
		AllOff:         allOff,
	}, nil
}

// BuildEntry assembles one ParseTable-compatible entry, exported for tests
// and for host tooling that authors pattern tables programmatically. allOff
// is the pre-built 0xD0 block (from BuildStepWithAllOff), or nil for a
// pattern with no default-state teardown payload.
func BuildEntry(enum uint16, counter int, commonKey *token.Key, allOff []byte, steps []byte) []byte {
	var body []byte
	body = append(body, byte(counter&lowMask))
	if commonKey != nil {
		body = append(body, modeStepDictionaryKey, commonKey.Hi(), commonKey.Lo())
	} else {
		body = append(body, 0)
	}
	body = append(body, allOff...)
	body = append(body, steps...)

	entry := make([]byte, 4)
	binary.BigEndian.PutUint16(entry[0:2], enum)
	binary.BigEndian.PutUint16(entry[2:4], uint16(len(body)))
	return append(entry, body...)
}

// BuildStepWithAllOff encodes the optional 0xD0 block that precedes a
// pattern's first true step: the default-state payload replayed to every
// level's sink when that pattern instance is popped. If commonKeyValue is
// non-nil the block carries that single fixed-width value, matching
// BuildStepWithPeriod's common-key shape; otherwise codecPayload is the
// pre-compressed token stream.
func BuildStepWithAllOff(commonKeyValue []byte, codecPayload []byte) []byte {
	out := []byte{tagStepWithAllOff}
	if commonKeyValue != nil {
		out = append(out, commonKeyValue...)
	} else {
		out = append(out, byte(len(codecPayload)))
		out = append(out, codecPayload...)
	}
	return out
}

// BuildStepWithPeriod encodes one StepWithPeriod opcode. If valueBytes is
// non-nil the step carries a single common-key value (its byte width fixed
// by the pattern's declared common key); otherwise codecPayload is the
// pre-compressed token stream emitted by this step.
func BuildStepWithPeriod(periodMS uint16, valueBytes []byte, codecPayload []byte) []byte {
	out := []byte{tagStepWithPeriod, byte(periodMS >> 8), byte(periodMS)}
	if valueBytes != nil {
		out = append(out, valueBytes...)
	} else {
		out = append(out, byte(len(codecPayload)))
		out = append(out, codecPayload...)
	}
	return out
}
