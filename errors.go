package rawmem

import "errors"

var (
	ErrAllocation        = errors.New("allocation failed")
	ErrBufferOverrun     = errors.New("buffer overrun")
	ErrCursorOutOfRange  = errors.New("cursor out of range")
	ErrNotFixedLayout    = errors.New("type is not fixed layout")
	ErrNotPointer        = errors.New("expected non-nil pointer")
	ErrSignatureMismatch = errors.New("type signature mismatch")
	ErrArgCount          = errors.New("no values given")
)
