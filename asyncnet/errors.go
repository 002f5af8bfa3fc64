package asyncnet

import (
	"errors"
	"fmt"
)

// ErrInvalidOperation marks caller misuse: the call was rejected before any
// I/O was attempted. Every error below except ErrWriteAborted wraps it.
var ErrInvalidOperation = errors.New("asyncnet: invalid operation")

var (
	// ErrReadOutstanding is returned when a read is requested while another is in flight.
	ErrReadOutstanding = fmt.Errorf("%w: read already outstanding", ErrInvalidOperation)

	// ErrClosed is returned for operations on a shut down or disposed socket.
	ErrClosed = fmt.Errorf("%w: socket closed", ErrInvalidOperation)

	// ErrNotBound is returned by AcceptAsync before Bind.
	ErrNotBound = fmt.Errorf("%w: listener not bound", ErrInvalidOperation)

	// ErrAlreadyBound is returned by a second Bind.
	ErrAlreadyBound = fmt.Errorf("%w: listener already bound", ErrInvalidOperation)
)

// ErrWriteAborted completes writes that were queued behind a failed write.
// The completion error also wraps the original transport failure.
var ErrWriteAborted = errors.New("asyncnet: write aborted after an earlier write failed")
