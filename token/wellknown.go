package token

// Well-known control keys used by the protocol's own subsystems (address
// negotiation, sequencer control, FTP), as opposed to application-defined
// tokens. Numbering follows the named-region ordering of
// original_source/ECCONet-3.0-C99/matrix_tokens.h; only the keys this module
// actually consumes are reproduced here rather than the full original enum.
var (
	KeyRequestAddress       = NewKey(PrefixCommand, 1000) // requested address, 1..120
	KeyResponseAddressInUse = NewKey(PrefixCommand, 1001) // address already claimed

	// Per-instance sequencer control keys: key.Body() = base + sequencer
	// index, one consecutive body value per sequencer (0..5, matching CAN
	// addresses 133..138), spaced apart so no base's six-wide indexed range
	// can overlap another's. SyncRange sits in the named 4-byte region
	// (7000..7999) rather than alongside its siblings, since it packs two
	// uint16 halves (bottom, top) into one value and the 5000..6999 region
	// only carries 2 bytes.
	KeyTokenSequencerPattern   = NewKey(PrefixCommand, 5000) // pattern enum, stop=0
	KeyTokenSequencerSync      = NewKey(PrefixCommand, 5010) // sync pattern enum
	KeyTokenSequencerIntensity = NewKey(PrefixCommand, 5030) // 0..100
	KeyTokenSequencerSyncRange = NewKey(PrefixCommand, 7010) // low16=bottom, high16=top

	// Global (non-indexed) sequencer keys: the target sequencer is packed
	// into the value instead of the key body.
	KeyIndexedSequencer                 = NewKey(PrefixCommand, 8150) // 3-byte: (intensity<<16)|patternEnum
	KeyIndexedTokenSequencerWithPattern = NewKey(PrefixCommand, 7000) // (exprEnum<<16)|(intensity<<8)|seqIndex

	KeyRequestFileTransferComplete   = NewKey(PrefixCommand, 8160) // FTP request region
	KeyRequestFileInfo               = NewKey(PrefixCommand, 8161)
	KeyRequestFileReadStart          = NewKey(PrefixCommand, 8162)
	KeyRequestFileReadSegment        = NewKey(PrefixCommand, 8163)
	KeyRequestFileWriteStart         = NewKey(PrefixCommand, 8164)
	KeyRequestFileWriteSegment       = NewKey(PrefixCommand, 8165)
	KeyRequestFileDelete             = NewKey(PrefixCommand, 8166)

	KeyResponseFtpClientError          = NewKey(PrefixCommand, 8170) // FTP response region
	KeyResponseFtpTransactionTimedOut  = NewKey(PrefixCommand, 8171)
	KeyResponseFileInfo                = NewKey(PrefixCommand, 8172)
	KeyResponseFileReadSegment         = NewKey(PrefixCommand, 8173)
	KeyResponseFileWriteReady          = NewKey(PrefixCommand, 8174)
	KeyResponseFileWriteSegmentOK      = NewKey(PrefixCommand, 8175)
	KeyResponseFileDeleteOK            = NewKey(PrefixCommand, 8176)
	KeyResponseFileTransferComplete    = NewKey(PrefixCommand, 8177)
	KeyResponseFileChecksumError       = NewKey(PrefixCommand, 8178)
	KeyResponseFileReadComplete        = NewKey(PrefixCommand, 8179)
	KeyResponseFileWriteComplete       = NewKey(PrefixCommand, 8180)
	KeyResponseFileDeleteComplete      = NewKey(PrefixCommand, 8181)
)

// SyncNone marks a sequencer sync range as disabled.
const SyncNone = 0xFFFF

// SyncExact marks a sequencer sync range as "match root enumeration exactly"
// rather than a [bottom, top] band.
const SyncExact = 0xFFFE

