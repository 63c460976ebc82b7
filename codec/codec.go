// Package codec implements the run-length token compressor described in
// §4.5: BinaryRepeat and AnalogRepeat prefixes over a sorted, broadcast-
// flagged token sequence. Grounded on the teacher's protocol package in
// spirit — a pure encode/decode pair with no I/O — generalized from a fixed
// packet struct to a variable-length run-length scheme.
package codec

import (
	"github.com/ecconet/ecconet/token"
)

// Sink receives one decoded token at a time from Decompress, mirroring the
// "decompression callbacks" design note of §9: the caller never needs a
// fully materialized slice of decoded tokens.
type Sink func(t token.Token)

const maxRun = 32 // 1 (the anchor) + 31 further look-ahead tokens

// Compress packs tokens into the wire's compressed token stream. tokens must
// already be sorted by Key; only tokens with ShouldBroadcast set are
// emitted. Tokens whose key is unknown to the region table are dropped.
func Compress(tokens []token.Token) []byte {
	var out []byte
	i := 0
	for i < len(tokens) {
		t := tokens[i]
		if !t.ShouldBroadcast() {
			i++
			continue
		}
		size, ok := token.ValueSize(t.Key)
		if !ok {
			i++
			continue
		}
		if size == 0 {
			out = append(out, t.Key.Hi(), t.Key.Lo())
			i++
			continue
		}

		run := gatherRun(tokens, i, size)
		binaryLen, common := binaryPrefix(run)
		numBinary := binaryLen - 1
		if numBinary >= 1 && numBinary < 32 {
			out = append(out, 0x60|byte(numBinary))
			out = append(out, t.Key.Hi(), t.Key.Lo())
			out = appendValue(out, common, size)
			bitmap := make([]byte, (binaryLen+7)/8)
			for idx := 0; idx < binaryLen; idx++ {
				if run[idx].Value != 0 {
					bitmap[idx/8] |= 1 << uint(idx%8)
				}
			}
			out = append(out, bitmap...)
			i += binaryLen
			continue
		}

		numAnalog := len(run) - 1
		if numAnalog >= 1 {
			out = append(out, 0x80|byte(numAnalog))
			out = append(out, t.Key.Hi(), t.Key.Lo())
			for _, rt := range run {
				out = appendValue(out, rt.Value, size)
			}
			i += len(run)
			continue
		}

		out = append(out, t.Key.Hi(), t.Key.Lo())
		out = appendValue(out, t.Value, size)
		i++
	}
	return out
}

// gatherRun collects the anchor at tokens[i] plus up to 31 further
// consecutively-keyed, same-size, broadcast-flagged tokens.
func gatherRun(tokens []token.Token, i, size int) []token.Token {
	anchor := tokens[i]
	run := make([]token.Token, 1, maxRun)
	run[0] = anchor
	j := i + 1
	for j < len(tokens) && len(run) < maxRun {
		nt := tokens[j]
		if !nt.ShouldBroadcast() {
			break
		}
		nsize, ok := token.ValueSize(nt.Key)
		if !ok || nsize != size {
			break
		}
		if nt.Key != anchor.Key+token.Key(len(run)) {
			break
		}
		run = append(run, nt)
		j++
	}
	return run
}

// binaryPrefix returns the length of the maximal prefix of run whose values
// are each either 0 or equal to the prefix's first non-zero value, along
// with that common value.
func binaryPrefix(run []token.Token) (length int, common int32) {
	haveNonZero := false
	for _, rt := range run {
		v := rt.Value
		if v != 0 {
			if !haveNonZero {
				common = v
				haveNonZero = true
			} else if v != common {
				break
			}
		}
		length++
	}
	return length, common
}

func appendValue(out []byte, v int32, size int) []byte {
	switch size {
	case 1:
		out = append(out, byte(v))
	case 2:
		out = append(out, byte(v>>8), byte(v))
	case 3:
		out = append(out, byte(v>>16), byte(v>>8), byte(v))
	case 4:
		out = append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	return out
}

func readValue(data []byte) int32 {
	var v uint32
	for _, b := range data {
		v = v<<8 | uint32(b)
	}
	return int32(v)
}

// Decompress walks a compressed token stream, delivering each decoded token
// to sink as soon as it's parsed. On an UnderrunError, every token parsed
// before the truncation has already reached sink.
func Decompress(data []byte, sender uint8, sink Sink) error {
	pos := 0
	for pos < len(data) {
		marker := data[pos]
		pos++
		prefix := marker & 0xE0

		if prefix == byte(token.PrefixBinaryRepeat) || prefix == byte(token.PrefixAnalogRepeat) {
			runLen := int(marker&0x1F) + 1
			if pos+2 > len(data) {
				return &UnderrunError{Offset: pos}
			}
			key := token.KeyFromBytes(data[pos], data[pos+1])
			pos += 2
			size, ok := token.ValueSize(key)
			if !ok {
				return &UnderrunError{Offset: pos}
			}

			if prefix == byte(token.PrefixAnalogRepeat) {
				for k := 0; k < runLen; k++ {
					if pos+size > len(data) {
						return &UnderrunError{Offset: pos}
					}
					v := readValue(data[pos : pos+size])
					pos += size
					sink(token.Token{Address: sender, Key: key + token.Key(k), Value: v, Flags: token.FlagShouldBroadcast})
				}
				continue
			}

			// Binary run: one common value plus a per-slot presence bitmap.
			if pos+size > len(data) {
				return &UnderrunError{Offset: pos}
			}
			common := readValue(data[pos : pos+size])
			pos += size
			bitmapLen := (runLen + 7) / 8
			if pos+bitmapLen > len(data) {
				return &UnderrunError{Offset: pos}
			}
			bitmap := data[pos : pos+bitmapLen]
			pos += bitmapLen
			for k := 0; k < runLen; k++ {
				var v int32
				if bitmap[k/8]>>uint(k%8)&1 != 0 {
					v = common
				}
				sink(token.Token{Address: sender, Key: key + token.Key(k), Value: v, Flags: token.FlagShouldBroadcast})
			}
			continue
		}

		// Single token: marker is the key's own high byte.
		if pos+1 > len(data) {
			return &UnderrunError{Offset: pos}
		}
		key := token.KeyFromBytes(marker, data[pos])
		pos++
		size, ok := token.ValueSize(key)
		if !ok {
			return &UnderrunError{Offset: pos}
		}
		if size == 0 {
			sink(token.Token{Address: sender, Key: key, Flags: token.FlagShouldBroadcast})
			continue
		}
		if pos+size > len(data) {
			return &UnderrunError{Offset: pos}
		}
		v := readValue(data[pos : pos+size])
		pos += size
		sink(token.Token{Address: sender, Key: key, Value: v, Flags: token.FlagShouldBroadcast})
	}
	return nil
}
