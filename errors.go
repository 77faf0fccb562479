package prerecord

import "errors"

var (
	// ErrFlushing is returned by Push while a flush is in progress
	// (between flush-start and flush-stop). The rejected frame stays
	// with the caller.
	ErrFlushing = errors.New("prerecord: flushing")

	// ErrEOS is returned by Push after end of stream has been observed.
	// The rejected frame stays with the caller.
	ErrEOS = errors.New("prerecord: end of stream")
)
