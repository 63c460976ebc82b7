// Package ruleengine names the contract the protocol core consumes from the
// bytecode expression evaluator, per spec.md §1: the evaluator itself
// ("the rule engine (bytecode expression evaluator)... specified only
// through the contracts they consume from the protocol core") is out of
// scope. Core only needs somewhere to route InputStatus/OutputStatus tokens
// and something that can expose a table of broadcast-flagged tokens for the
// Orchestrator to compress and send. This package defines that boundary and
// a minimal in-memory Engine satisfying it, grounded on the teacher's
// facade-behind-an-interface pattern (protocol.Codec consumed by transport
// through a narrow method set rather than a concrete type).
package ruleengine

import (
	"sort"

	"github.com/ecconet/ecconet/token"
)

// Engine is the contract the protocol core drives: feed it decoded
// InputStatus/OutputStatus tokens, and read back whatever it currently wants
// broadcast onto the bus.
type Engine interface {
	// OnToken delivers one InputStatus or OutputStatus token to the engine's
	// variable table.
	OnToken(t token.Token)

	// BroadcastTokens returns every currently should-broadcast token in the
	// engine's exposed variable table, for the Orchestrator to compress.
	BroadcastTokens() []token.Token
}

// Table is a minimal Engine: a flat map of the last value seen per key, with
// no expression evaluation. It exists so Core and its tests have a working
// rule engine without depending on the bytecode evaluator this package
// deliberately does not implement.
type Table struct {
	values map[token.Key]token.Token
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{values: make(map[token.Key]token.Token)}
}

// OnToken implements Engine.
func (t *Table) OnToken(tk token.Token) {
	t.values[tk.Key] = tk
}

// Set installs a value directly, for tests and for an embedder seeding the
// exposed variable table ahead of the evaluator being wired in.
func (t *Table) Set(tk token.Token) {
	t.values[tk.Key] = tk
}

// Get returns the last token stored for key.
func (t *Table) Get(key token.Key) (token.Token, bool) {
	tk, ok := t.values[key]
	return tk, ok
}

// BroadcastTokens implements Engine, returning tokens sorted by key so the
// codec sees them in the ascending order it requires for run detection.
func (t *Table) BroadcastTokens() []token.Token {
	var out []token.Token
	for _, tk := range t.values {
		if tk.ShouldBroadcast() {
			out = append(out, tk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
