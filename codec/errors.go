package codec

import (
	"errors"
	"fmt"
)

// ErrUnderrun is the sentinel wrapped by UnderrunError, usable with
// errors.Is at call sites that don't need the offset.
var ErrUnderrun = errors.New("codec: buffer underrun")

// UnderrunError reports that a stream pointer would read past the end of the
// buffer mid-decode. Whatever tokens were already delivered to the sink
// before the underrun stay delivered, per §4.5.
type UnderrunError struct {
	Offset int
}

func (e *UnderrunError) Error() string {
	return fmt.Sprintf("codec: buffer underrun at offset %d", e.Offset)
}

func (e *UnderrunError) Unwrap() error { return ErrUnderrun }
