package rawsocket

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// tcpConn runs each Begin* operation on its own goroutine against a
// *net.TCPConn and reports through the callback from that goroutine.
type tcpConn struct {
	conn *net.TCPConn
	opts Options

	mu      sync.Mutex
	noDelay bool
	linger  LingerOption
}

// NewTCPConn wraps an established TCP connection.
//
// Parameters:
//   - conn: The connection to wrap; ownership passes to the returned Conn
//   - opts: Send chunking and dial settings
//
// Returns:
//   - A Conn whose operations complete on background goroutines
func NewTCPConn(conn *net.TCPConn, opts Options) Conn {
	return &tcpConn{
		conn:    conn,
		opts:    opts,
		noDelay: true, // Go enables TCP_NODELAY on every new TCP socket
	}
}

func (c *tcpConn) BeginReceive(b []byte, cb IOCallback) {
	go func() {
		cb(receiveResult(c.conn.Read(b)))
	}()
}

func (c *tcpConn) BeginReceiveV(bufs [][]byte, cb IOCallback) {
	go func() {
		cb(receiveResult(c.receiveV(bufs)))
	}()
}

func (c *tcpConn) BeginSend(b []byte, cb IOCallback) {
	chunk := b
	if limit := c.opts.MaxSendChunk; limit > 0 && len(chunk) > limit {
		chunk = chunk[:limit]
	}

	go func() {
		cb(c.conn.Write(chunk))
	}()
}

func (c *tcpConn) BeginSendV(bufs [][]byte, cb IOCallback) {
	nb := limitBuffers(bufs, c.opts.MaxSendChunk)

	go func() {
		n, err := nb.WriteTo(c.conn)
		cb(int(n), err)
	}()
}

func (c *tcpConn) BeginDisconnect(cb DoneCallback) {
	go func() {
		err := c.conn.CloseWrite()
		if err == nil {
			err = c.conn.CloseRead()
		}

		cb(err)
	}()
}

func (c *tcpConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *tcpConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *tcpConn) SetNoDelay(noDelay bool) error {
	if err := c.conn.SetNoDelay(noDelay); err != nil {
		return err
	}

	c.mu.Lock()
	c.noDelay = noDelay
	c.mu.Unlock()
	return nil
}

func (c *tcpConn) SetLinger(opt LingerOption) error {
	sec := -1
	if opt.Enabled {
		sec = max(opt.Seconds, 0)
	}

	if err := c.conn.SetLinger(sec); err != nil {
		return err
	}

	c.mu.Lock()
	c.linger = opt
	c.mu.Unlock()
	return nil
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

// receiveResult folds a graceful end of stream into the (0, nil) outcome.
func receiveResult(n int, err error) (int, error) {
	if err != nil && errors.Is(err, io.EOF) {
		return n, nil
	}

	return n, err
}

// limitBuffers copies the segment headers of bufs, truncated to limit bytes
// when limit is positive. The copy is consumed by net.Buffers.WriteTo.
func limitBuffers(bufs [][]byte, limit int) net.Buffers {
	nb := make(net.Buffers, 0, len(bufs))
	remaining := limit
	for _, b := range bufs {
		if limit > 0 {
			if remaining == 0 {
				break
			}
			if len(b) > remaining {
				b = b[:remaining]
			}
			remaining -= len(b)
		}
		nb = append(nb, b)
	}

	return nb
}

type tcpListener struct {
	opts Options

	mu     sync.Mutex
	ln     *net.TCPListener
	closed bool
}

// NewTCPListener returns an unbound TCP Listener. Accepted connections are
// created with opts.
func NewTCPListener(opts Options) Listener {
	return &tcpListener{opts: opts}
}

func (l *tcpListener) Bind(address string, backlog int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return net.ErrClosed
	}

	if l.ln != nil {
		return ErrAlreadyBound
	}

	ln, err := listenTCP(address, backlog)
	if err != nil {
		return fmt.Errorf("bind %s: %w", address, err)
	}

	l.ln = ln
	return nil
}

func (l *tcpListener) BeginAccept(cb AcceptCallback) {
	l.mu.Lock()
	ln, closed := l.ln, l.closed
	l.mu.Unlock()

	go func() {
		switch {
		case closed:
			cb(nil, net.ErrClosed)
		case ln == nil:
			cb(nil, ErrNotBound)
		default:
			conn, err := ln.AcceptTCP()
			if err != nil {
				cb(nil, err)
				return
			}

			cb(NewTCPConn(conn, l.opts), nil)
		}
	}()
}

func (l *tcpListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}

	return l.ln.Addr()
}

func (l *tcpListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	if l.ln == nil {
		return nil
	}

	return l.ln.Close()
}

// BeginDial connects to address and reports the connection through cb.
//
// Parameters:
//   - address: The "host:port" to connect to
//   - timeout: Connect timeout; 0 uses opts.DialTimeout
//   - opts: Options for the resulting Conn
//   - cb: Receives the connection or the dial failure
func BeginDial(address string, timeout time.Duration, opts Options, cb AcceptCallback) {
	if timeout <= 0 {
		timeout = opts.DialTimeout
	}

	go func() {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.Dial("tcp", address)
		if err != nil {
			cb(nil, err)
			return
		}

		cb(NewTCPConn(conn.(*net.TCPConn), opts), nil)
	}()
}
