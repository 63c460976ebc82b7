package token

// ValueSize returns the number of value bytes (0, 1, 2, 3, or 4) that a
// token's key carries, derived from the fixed region table in §3. The
// prefix bits are stripped before the body is looked up; region boundaries
// below are grounded on original_source/ECCONet-3.0-C99/matrix_token_regions.h
// (local-variable sub-region split, indexed input/output regions, named
// regions) and on spec.md's data-model table for the regions the original
// header names but does not itself size (the indexed 3-byte sequencer
// region — matrix_token_regions.h literally defines its VALUE_BYTES macro
// as 1, which contradicts both its own name and its packed
// "(intensity<<16)|pattern_enumeration" comment; spec.md's data model is
// taken as authoritative here and this region reports 3).
func ValueSize(k Key) (size int, ok bool) {
	return valueSizeForBody(k.Body())
}

func valueSizeForBody(body uint16) (int, bool) {
	switch {
	case body >= 1 && body <= 119: // local variables, 1-byte sub-region
		return 1, true
	case body >= 120 && body <= 169: // local variables, 2-byte sub-region
		return 2, true
	case body >= 170 && body <= 189: // local variables, 4-byte sub-region
		return 4, true
	case body >= 190 && body <= 199: // local variables, 0-byte sub-region
		return 0, true
	case body >= 200 && body <= 499: // indexed inputs
		return 1, true
	case body >= 500 && body <= 999: // indexed outputs
		return 1, true
	case body >= 1000 && body <= 4999: // named 1-byte
		return 1, true
	case body >= 5000 && body <= 6999: // named 2-byte
		return 2, true
	case body >= 7000 && body <= 7999: // named 4-byte
		return 4, true
	case body >= 8000 && body <= 8149: // named 0-byte
		return 0, true
	case body >= 8150 && body <= 8159: // indexed sequencer, 3-byte
		return 3, true
	case body >= 8160 && body <= 8169: // FTP request — routed to the FTP
		// server before any codec sizing is consulted; 4 is a permissive
		// upper bound, never actually used to size a compressed run.
		return 4, true
	case body >= 8170 && body <= 8191: // FTP response — see above.
		return 4, true
	default:
		return 0, false
	}
}

// IsFTPRequest reports whether k's body falls in the FTP request region.
func IsFTPRequest(k Key) bool {
	b := k.Body()
	return b >= 8160 && b <= 8169
}

// IsFTPResponse reports whether k's body falls in the FTP response region.
func IsFTPResponse(k Key) bool {
	b := k.Body()
	return b >= 8170 && b <= 8191
}
