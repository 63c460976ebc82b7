package sequencer

import (
	"testing"

	"github.com/ecconet/ecconet/codec"
	"github.com/ecconet/ecconet/token"
)

func keyLightStop() token.Key { return token.NewKey(token.PrefixCommand, 1) }

func tokenBytes(key token.Key, value int32) []byte {
	tk := token.Token{Key: key, Value: value, Flags: token.FlagShouldBroadcast}
	return codec.Compress([]token.Token{tk})
}

// buildTwoStepPattern reproduces §8 Scenario D: pattern K of two 500ms steps
// emitting (KeyLight_Stop, 100) then (KeyLight_Stop, 0).
func buildTwoStepPattern(enum uint16) []byte {
	var steps []byte
	steps = append(steps, BuildStepWithPeriod(500, nil, tokenBytes(keyLightStop(), 100))...)
	steps = append(steps, BuildStepWithPeriod(500, nil, tokenBytes(keyLightStop(), 0))...)
	return BuildEntry(enum, 0, nil, nil, steps)
}

func TestSequencerPatternStart(t *testing.T) {
	table, err := ParseTable(buildTwoStepPattern(7))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}

	seq := New(0)
	var received []token.Token
	sinks := Sinks{
		Normal:    func(tk token.Token) { received = append(received, tk) },
		CommonKey: func(token.Key, int32) {},
		Sync:      func(uint16) {},
	}

	seq.StartPattern(table, 7, 0, sinks)
	seq.Tick(0, table, sinks)

	if len(received) != 1 {
		t.Fatalf("tokens after first tick = %d, want 1", len(received))
	}
	if received[0].Key != keyLightStop() || received[0].Value != 100 {
		t.Fatalf("first token = %+v, want (KeyLight_Stop, 100)", received[0])
	}
	if received[0].DefaultState() {
		t.Fatal("first step incorrectly flagged DefaultState")
	}

	seq.Tick(499, table, sinks)
	if len(received) != 1 {
		t.Fatal("second step fired before its 500ms deadline")
	}

	seq.Tick(500, table, sinks)
	if len(received) != 2 {
		t.Fatalf("tokens after second tick = %d, want 2", len(received))
	}
	if received[1].Value != 0 {
		t.Fatalf("second token value = %d, want 0", received[1].Value)
	}
}

func TestRestartingSamePatternIsNoOp(t *testing.T) {
	table, _ := ParseTable(buildTwoStepPattern(7))
	seq := New(0)
	var count int
	sinks := Sinks{Normal: func(token.Token) { count++ }, CommonKey: func(token.Key, int32) {}, Sync: func(uint16) {}}

	seq.StartPattern(table, 7, 0, sinks)
	seq.Tick(0, table, sinks)
	firstCount := count

	seq.StartPattern(table, 7, 100, sinks) // same enum, should be ignored
	if seq.RootEnum() != 7 {
		t.Fatalf("RootEnum = %d, want 7", seq.RootEnum())
	}
	if count != firstCount {
		t.Fatalf("StartPattern with the same enum emitted tokens: %dvs%d", count, firstCount)
	}
}

func TestPatternStopPopsStack(t *testing.T) {
	table, _ := ParseTable(buildTwoStepPattern(7))
	seq := New(0)
	sinks := Sinks{Normal: func(token.Token) {}, CommonKey: func(token.Key, int32) {}, Sync: func(uint16) {}}

	seq.StartPattern(table, 7, 0, sinks)
	seq.StartPattern(table, 0, 10, sinks)

	if seq.RootEnum() != invalidEnum {
		t.Fatalf("RootEnum after Pattern_Stop = %d, want invalidEnum", seq.RootEnum())
	}
}

// buildPatternWithAllOff builds a single-step pattern preceded by a 0xD0
// all-off block carrying (KeyLight_Stop, 0), reproducing the default-state
// teardown §4.6 describes.
func buildPatternWithAllOff(enum uint16) []byte {
	allOff := BuildStepWithAllOff(nil, tokenBytes(keyLightStop(), 0))
	steps := BuildStepWithPeriod(500, nil, tokenBytes(keyLightStop(), 100))
	return BuildEntry(enum, 1, nil, allOff, steps)
}

func TestPatternTeardownEmitsDefaultStateTokens(t *testing.T) {
	table, err := ParseTable(buildPatternWithAllOff(9))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}

	seq := New(0)
	var received []token.Token
	sinks := Sinks{
		Normal:    func(tk token.Token) { received = append(received, tk) },
		CommonKey: func(token.Key, int32) {},
		Sync:      func(uint16) {},
	}

	seq.StartPattern(table, 9, 0, sinks)
	seq.Tick(0, table, sinks)
	if len(received) != 1 || received[0].DefaultState() {
		t.Fatalf("first step = %+v, want one non-default-state token", received)
	}

	// counter is 1 (single pass): the next tick past the step's 500ms
	// deadline exhausts the pattern and pops it, emitting its all-off token.
	seq.Tick(500, table, sinks)
	if len(received) != 2 {
		t.Fatalf("tokens after teardown = %d, want 2", len(received))
	}
	last := received[1]
	if !last.DefaultState() {
		t.Fatalf("teardown token %+v missing DefaultState flag", last)
	}
	if last.Key != keyLightStop() || last.Value != 0 {
		t.Fatalf("teardown token = %+v, want (KeyLight_Stop, 0)", last)
	}
	if seq.RootEnum() != invalidEnum {
		t.Fatalf("RootEnum after natural pattern end = %d, want invalidEnum", seq.RootEnum())
	}
}

func TestStopEmitsDefaultStateTokens(t *testing.T) {
	table, _ := ParseTable(buildPatternWithAllOff(9))
	seq := New(0)
	var received []token.Token
	sinks := Sinks{
		Normal:    func(tk token.Token) { received = append(received, tk) },
		CommonKey: func(token.Key, int32) {},
		Sync:      func(uint16) {},
	}

	seq.StartPattern(table, 9, 0, sinks)
	seq.StartPattern(table, 0, 10, sinks) // Pattern_Stop

	if len(received) != 1 || !received[0].DefaultState() {
		t.Fatalf("Stop emissions = %+v, want one DefaultState token", received)
	}
}

func TestIntensityScalesOutput(t *testing.T) {
	table, _ := ParseTable(buildTwoStepPattern(7))
	seq := New(0)
	seq.SetIntensity(50)
	var received []token.Token
	sinks := Sinks{Normal: func(tk token.Token) { received = append(received, tk) }, CommonKey: func(token.Key, int32) {}, Sync: func(uint16) {}}

	seq.StartPattern(table, 7, 0, sinks)
	seq.Tick(0, table, sinks)

	if len(received) != 1 || received[0].Value != 50 {
		t.Fatalf("scaled value = %+v, want 50 (100 * 50%%)", received)
	}
}
