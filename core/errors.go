package core

import "errors"

// Sentinel errors surfaced at Core's own boundary. Every other error kind
// named in §7 (BadChecksum, BufferOverrun, MalformedMessage, CodecUnderrun,
// BusBusy, AddressCollision, Timeout) is absorbed inside the package that
// detects it — the receiver drops silently, the transmitter retries, the
// allocator restarts itself — and never surfaces here. These are the ones
// only Core itself can detect, at its own entry points.
var (
	// ErrAddressNotAssigned is returned by SendSync when it is called before
	// the address allocator has finished negotiating a bus address. TokenIn
	// returns no error.
	ErrAddressNotAssigned = errors.New("core: local address not yet assigned")

	// ErrUnknownSequencer names a sequencer index outside the configured
	// count. No Core entry point returns it at present: TokenIn drops a
	// token addressed to an out-of-range sequencer without reporting it.
	ErrUnknownSequencer = errors.New("core: unknown sequencer index")
)
