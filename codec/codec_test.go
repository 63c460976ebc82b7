package codec

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ecconet/ecconet/token"
)

func broadcast(key token.Key, value int32) token.Token {
	return token.Token{Key: key, Value: value, Flags: token.FlagShouldBroadcast}
}

func namedKey(body uint16) token.Key { return token.NewKey(token.PrefixCommand, body) }

// TestCompressBinaryRunExactBytes reproduces the walkthrough of a mixed
// zero/common-value run over five consecutive 1-byte named tokens.
func TestCompressBinaryRunExactBytes(t *testing.T) {
	tokens := []token.Token{
		broadcast(namedKey(1000), 0),
		broadcast(namedKey(1001), 0),
		broadcast(namedKey(1002), 50),
		broadcast(namedKey(1003), 0),
		broadcast(namedKey(1004), 50),
	}
	got := Compress(tokens)
	want := []byte{0x64, 0x03, 0xE8, 0x32, 0b00010100}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Compress() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompressAnalogRun(t *testing.T) {
	tokens := []token.Token{
		broadcast(namedKey(2000), 10),
		broadcast(namedKey(2001), 20),
		broadcast(namedKey(2002), 30),
	}
	got := Compress(tokens)
	want := []byte{0x80 | 2, 0x07, 0xD0, 10, 20, 30}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Compress() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompressSkipsNonBroadcastTokens(t *testing.T) {
	tokens := []token.Token{
		{Key: namedKey(3000), Value: 5}, // no FlagShouldBroadcast
		broadcast(namedKey(3001), 6),
	}
	got := Compress(tokens)
	want := []byte{0x0B, 0xB9, 6}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Compress() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompressZeroSizeToken(t *testing.T) {
	key := token.NewKey(token.PrefixCommand, 8000)
	tokens := []token.Token{broadcast(key, 0)}
	got := Compress(tokens)
	want := []byte{key.Hi(), key.Lo()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Compress() mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := [][]token.Token{
		{
			broadcast(namedKey(1000), 0),
			broadcast(namedKey(1001), 0),
			broadcast(namedKey(1002), 50),
			broadcast(namedKey(1003), 0),
			broadcast(namedKey(1004), 50),
		},
		{
			broadcast(namedKey(2000), 10),
			broadcast(namedKey(2001), 20),
			broadcast(namedKey(2002), 30),
		},
		{
			broadcast(namedKey(3000), 7),
		},
		{
			broadcast(token.NewKey(token.PrefixCommand, 8000), 0),
			broadcast(namedKey(4000), 3),
		},
	}

	for i, tokens := range cases {
		compressed := Compress(tokens)
		var got []token.Token
		if err := Decompress(compressed, 0x12, func(tk token.Token) {
			got = append(got, tk)
		}); err != nil {
			t.Fatalf("case %d: Decompress() error: %v", i, err)
		}
		want := make([]token.Token, len(tokens))
		for j, tk := range tokens {
			tk.Address = 0x12
			want[j] = tk
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("case %d: round trip mismatch (-want +got):\n%s", i, diff)
		}
	}
}

// TestCompressionIsNoLargerThanUncompressed checks §8 Property 5: a
// compressed run of N tokens must never exceed N*(2+valueSize) bytes, the
// cost of emitting every member uncompressed.
func TestCompressionIsNoLargerThanUncompressed(t *testing.T) {
	tokens := []token.Token{
		broadcast(namedKey(1000), 0),
		broadcast(namedKey(1001), 0),
		broadcast(namedKey(1002), 50),
		broadcast(namedKey(1003), 0),
		broadcast(namedKey(1004), 50),
		broadcast(namedKey(1006), 1),
		broadcast(namedKey(1007), 2),
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Key < tokens[j].Key })
	got := Compress(tokens)
	uncompressed := 0
	for _, tk := range tokens {
		size, _ := token.ValueSize(tk.Key)
		uncompressed += 2 + size
	}
	if len(got) > uncompressed {
		t.Fatalf("compressed size %d exceeds uncompressed size %d", len(got), uncompressed)
	}
}

func TestDecompressUnderrun(t *testing.T) {
	truncated := []byte{0x64, 0x03, 0xE8, 0x32} // missing the bitmap byte
	var got []token.Token
	err := Decompress(truncated, 1, func(tk token.Token) { got = append(got, tk) })
	if err == nil {
		t.Fatal("expected an underrun error")
	}
	if _, ok := err.(*UnderrunError); !ok {
		t.Fatalf("expected *UnderrunError, got %T: %v", err, err)
	}
}
