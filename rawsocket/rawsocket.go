// Package rawsocket defines the callback-style asynchronous socket primitive
// the asyncnet package is built on, together with a TCP implementation.
//
// Every Begin* call returns immediately and reports its outcome exactly once
// through the supplied callback. Callbacks may run on any goroutine, in any
// order relative to other operations, and must not block for long.
package rawsocket

import (
	"errors"
	"net"
	"time"
)

// ErrAlreadyBound is returned by Listener.Bind on a listener that is already
// bound.
var ErrAlreadyBound = errors.New("rawsocket: already bound")

// ErrNotBound is reported to accept callbacks on a listener that was never bound.
var ErrNotBound = errors.New("rawsocket: not bound")

// IOCallback receives the outcome of a receive or send: the number of bytes
// transferred, or a failure. A receive reporting (0, nil) means the peer
// closed its side of the stream.
type IOCallback func(n int, err error)

// AcceptCallback receives a newly established connection or a failure.
type AcceptCallback func(conn Conn, err error)

// DoneCallback receives the outcome of an operation without a result.
type DoneCallback func(err error)

// LingerOption mirrors SO_LINGER.
type LingerOption struct {
	// Enabled reports whether close lingers to flush unsent data.
	Enabled bool
	// Seconds is the linger timeout; 0 with Enabled resets the connection on close.
	Seconds int
}

// Conn is an established stream socket.
type Conn interface {
	// BeginReceive reads up to len(b) bytes into b. b must stay valid until
	// the callback runs.
	BeginReceive(b []byte, cb IOCallback)

	// BeginReceiveV reads into the concatenation of bufs with one receive.
	BeginReceiveV(bufs [][]byte, cb IOCallback)

	// BeginSend transmits a prefix of b, possibly shorter than b.
	BeginSend(b []byte, cb IOCallback)

	// BeginSendV transmits a prefix of the concatenation of bufs.
	BeginSendV(bufs [][]byte, cb IOCallback)

	// BeginDisconnect shuts down both directions gracefully. The socket
	// still has to be closed afterwards.
	BeginDisconnect(cb DoneCallback)

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	NoDelay() (bool, error)
	SetNoDelay(noDelay bool) error
	Linger() (LingerOption, error)
	SetLinger(opt LingerOption) error

	// Close releases the socket. Outstanding operations complete with an error.
	Close() error
}

// Listener is a listening stream socket.
type Listener interface {
	// Bind binds to address and starts listening with the given backlog.
	// An address without a host (":7007") listens on every IPv4 and IPv6
	// address, as net.Listen does.
	Bind(address string, backlog int) error

	// BeginAccept accepts one connection.
	BeginAccept(cb AcceptCallback)

	// Addr returns the bound address, or nil before Bind.
	Addr() net.Addr

	// Close stops listening. An outstanding accept completes with an error.
	Close() error
}

// Options tunes the TCP implementation.
type Options struct {
	// MaxSendChunk caps the bytes handed to the kernel per send, if positive.
	// Sends larger than this complete short, which exercises callers'
	// continuation logic.
	MaxSendChunk int

	// DialTimeout bounds BeginDial when the caller passes no timeout.
	DialTimeout time.Duration
}

// DefaultOptions returns Options with no send cap and a 10s dial timeout.
func DefaultOptions() Options {
	return Options{
		MaxSendChunk: 0,
		DialTimeout:  10 * time.Second,
	}
}
