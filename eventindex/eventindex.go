// Package eventindex implements the monotone 8-bit wrapping counter that
// orders input events across the bus. The type is grounded on the teacher's
// Transmitter.seq (transport/transmitter.go), narrowed from a free-running
// uint32 to the spec's 8-bit index with an explicit skip-zero rule and
// half-space wraparound comparison, since a single byte of sequence space is
// what the wire format budgets per message.
package eventindex

// Index is a monotone 8-bit counter with zero reserved as "no index".
type Index struct {
	local uint8
}

// New returns an Index starting at zero (unassigned).
func New() *Index { return &Index{} }

// Value returns the current local index.
func (e *Index) Value() uint8 { return e.local }

// Next increments the counter, skipping zero, and returns the new value.
func (e *Index) Next() uint8 {
	e.local++
	if e.local == 0 {
		e.local = 1
	}
	return e.local
}

// newer reports whether a is newer than b under 8-bit wraparound: a is newer
// than b iff (a-b) as a signed 8-bit value is positive.
func newer(a, b uint8) bool {
	return int8(a-b) > 0
}

// Observe adopts idx as the local index if idx is newer than the current
// local value, or if the local value is currently unassigned (zero).
func (e *Index) Observe(idx uint8) {
	if e.local == 0 || newer(idx, e.local) {
		e.local = idx
	}
}

// IsExpired reports whether idx is strictly older than the local index. A
// zero idx (never transmitted) is never expired by definition.
func (e *Index) IsExpired(idx uint8) bool {
	return idx != 0 && int8(idx-e.local) < 0
}
