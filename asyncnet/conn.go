// Package asyncnet turns the callback-style rawsocket primitive into
// connections and listeners that report discrete completion events: one
// ReadCompleted per ReadAsync, one WriteCompleted per WriteAsync in
// submission order, one ShutdownCompleted per ShutdownAsync, one
// AcceptCompleted per AcceptAsync.
//
// Raw callbacks never touch connection state or call handlers directly. They
// capture the outcome and hand it to a scheduler.Scheduler; all state updates
// and all handler calls happen inside scheduled tasks, so handlers run on the
// scheduler's execution context and may freely call back into the Conn.
package asyncnet

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/go-asyncsocket/logger"
	"github.com/cyberinferno/go-asyncsocket/rawsocket"
	"github.com/cyberinferno/go-asyncsocket/scheduler"
)

// Conn is an established connection with at most one read in flight and
// writes sent strictly one after another, in submission order. It is safe
// for concurrent use.
type Conn struct {
	raw   rawsocket.Conn
	sched scheduler.Scheduler
	log   logger.Logger

	mu       sync.Mutex
	state    *StateMachine
	fault    error
	disposed bool

	onRead     ReadCompletedHandler
	onWrite    WriteCompletedHandler
	onShutdown ShutdownCompletedHandler
}

// NewConn wraps an established raw connection.
//
// Parameters:
//   - raw: The raw connection; ownership passes to the Conn
//   - sched: Scheduler that runs every completion
//   - log: Logger for diagnostics; nil discards
//
// Returns:
//   - A *Conn in StateOpen
func NewConn(raw rawsocket.Conn, sched scheduler.Scheduler, log logger.Logger) *Conn {
	return &Conn{
		raw:   raw,
		sched: sched,
		log: logger.OrNop(log).With(
			logger.F("local", addrString(raw.LocalAddr())),
			logger.F("remote", addrString(raw.RemoteAddr())),
		),
		state: NewStateMachine(),
	}
}

// OnReadCompleted registers the handler for read completions, replacing any
// previous one. Ignored once the Conn is closed.
func (c *Conn) OnReadCompleted(handler ReadCompletedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Closed() {
		c.onRead = handler
	}
}

// OnWriteCompleted registers the handler for write completions, replacing any
// previous one. Ignored once the Conn is closed.
func (c *Conn) OnWriteCompleted(handler WriteCompletedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Closed() {
		c.onWrite = handler
	}
}

// OnShutdownCompleted registers the handler for the shutdown completion,
// replacing any previous one. Ignored once the Conn is disposed.
func (c *Conn) OnShutdownCompleted(handler ShutdownCompletedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.disposed {
		c.onShutdown = handler
	}
}

// ReadAsync starts one receive into b. Exactly one ReadCompleted event
// follows, carrying the byte count or the transport failure.
//
// Parameters:
//   - b: Destination; must not be touched until the event fires
//
// Returns:
//   - ErrReadOutstanding if a read is already in flight, ErrClosed after
//     ShutdownAsync or Dispose; transport failures are never returned here
func (c *Conn) ReadAsync(b []byte) error {
	if err := c.beginRead(); err != nil {
		return err
	}

	c.raw.BeginReceive(b, c.receiveDone)
	return nil
}

// ReadVAsync is ReadAsync for a scatter list of destination ranges.
func (c *Conn) ReadVAsync(bufs [][]byte) error {
	if err := c.beginRead(); err != nil {
		return err
	}

	c.raw.BeginReceiveV(bufs, c.receiveDone)
	return nil
}

// WriteAsync queues b to be sent after every earlier write. One
// WriteCompleted event carrying token follows once all of b was sent, however
// many partial sends that took, or once sending failed.
//
// Parameters:
//   - b: Source; must not be modified until the event fires
//   - token: Opaque value returned in the event
//
// Returns:
//   - ErrClosed after ShutdownAsync or Dispose
func (c *Conn) WriteAsync(b []byte, token any) error {
	return c.submitWrite(NewWriteRequest(b, token))
}

// WriteVAsync is WriteAsync for a gather list of source ranges.
func (c *Conn) WriteVAsync(bufs [][]byte, token any) error {
	return c.submitWrite(NewVectorWriteRequest(bufs, token))
}

// ShutdownAsync closes the Conn for new operations, detaches the read and
// write handlers, and starts a graceful disconnect. One ShutdownCompleted
// event follows. The socket itself is released by Dispose.
//
// Returns:
//   - ErrClosed if the Conn was already shut down or disposed
func (c *Conn) ShutdownAsync() error {
	c.mu.Lock()
	if c.state.Closed() {
		c.mu.Unlock()
		return ErrClosed
	}

	c.state.Close()
	c.onRead = nil
	c.onWrite = nil
	c.mu.Unlock()

	c.log.Debug("shutting down")
	c.raw.BeginDisconnect(func(err error) {
		c.schedule("shutdown", func() { c.shutdownDone(err) })
	})

	return nil
}

// Dispose detaches every handler, closes the Conn and releases the socket.
// Operations still in flight complete silently. Safe to call more than once.
//
// Returns:
//   - The error from closing the socket on the first call, nil afterwards
func (c *Conn) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}

	c.disposed = true
	c.state.Close()
	c.onRead = nil
	c.onWrite = nil
	c.onShutdown = nil
	c.mu.Unlock()

	c.log.Debug("disposed")
	return c.raw.Close()
}

// State returns StateOpen until ShutdownAsync or Dispose is called.
func (c *Conn) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Closed() {
		return StateClosed
	}

	return StateOpen
}

// LocalAddr returns the local endpoint.
func (c *Conn) LocalAddr() net.Addr {
	return c.raw.LocalAddr()
}

// RemoteAddr returns the peer endpoint.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// NoDelay reports whether Nagle's algorithm is disabled.
func (c *Conn) NoDelay() (bool, error) {
	return c.raw.NoDelay()
}

// SetNoDelay enables or disables Nagle's algorithm.
func (c *Conn) SetNoDelay(noDelay bool) error {
	return c.raw.SetNoDelay(noDelay)
}

// Linger returns the socket's linger setting.
func (c *Conn) Linger() (rawsocket.LingerOption, error) {
	return c.raw.Linger()
}

// SetLinger changes the socket's linger setting.
func (c *Conn) SetLinger(opt rawsocket.LingerOption) error {
	return c.raw.SetLinger(opt)
}

func (c *Conn) beginRead() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.BeginRead()
}

// receiveDone runs on the transport's goroutine.
func (c *Conn) receiveDone(n int, err error) {
	c.schedule("read", func() { c.readDone(n, err) })
}

func (c *Conn) readDone(n int, err error) {
	if err != nil {
		n = 0
		c.log.Debug("read failed", logger.F("error", err))
	}

	c.mu.Lock()
	c.state.EndRead()
	handler := c.onRead
	c.mu.Unlock()

	if handler != nil {
		handler(ReadCompletedEvent{N: n, Err: err, Timestamp: time.Now()})
	}
}

func (c *Conn) submitWrite(req WriteRequest) error {
	c.mu.Lock()
	start, err := c.state.SubmitWrite(req)
	c.mu.Unlock()

	if err != nil {
		return err
	}

	if start {
		c.send(req)
	}

	return nil
}

// send transmits what remains of req. Once the Conn has faulted, nothing is
// sent and req completes with ErrWriteAborted.
func (c *Conn) send(req WriteRequest) {
	c.mu.Lock()
	fault := c.fault
	c.mu.Unlock()

	if fault != nil {
		err := fmt.Errorf("%w: %w", ErrWriteAborted, fault)
		c.schedule("write", func() { c.writeDone(req, err) })
		return
	}

	cb := func(n int, err error) {
		c.schedule("write", func() { c.sendDone(req, n, err) })
	}

	if req.Vectored() {
		c.raw.BeginSendV(req.Buffers(), cb)
	} else {
		c.raw.BeginSend(req.Bytes(), cb)
	}
}

// sendDone handles one raw send result: resubmits the remainder after a short
// send, or finishes the request.
func (c *Conn) sendDone(req WriteRequest, n int, err error) {
	if err == nil && (n < 0 || n > req.Len()) {
		err = fmt.Errorf("asyncnet: transport reported %d bytes sent of %d", n, req.Len())
	}

	if err != nil {
		c.setFault(err)
		c.writeDone(req, err)
		return
	}

	rest := req.Advance(n)
	if rest.Len() == 0 {
		c.writeDone(req, nil)
		return
	}

	if n == 0 {
		c.setFault(io.ErrShortWrite)
		c.writeDone(req, io.ErrShortWrite)
		return
	}

	c.mu.Lock()
	closed := c.state.Closed()
	c.mu.Unlock()

	if closed {
		c.writeDone(req, ErrClosed)
		return
	}

	c.send(rest)
}

// writeDone pops the finished request, starts the next queued one unless the
// Conn is closed, and raises the completion.
func (c *Conn) writeDone(req WriteRequest, err error) {
	c.mu.Lock()
	next, ok := c.state.CompleteWrite()
	closed := c.state.Closed()
	handler := c.onWrite
	c.mu.Unlock()

	if ok && !closed {
		c.send(next)
	}

	if err != nil {
		c.log.Debug("write failed", logger.F("error", err))
	}

	if handler != nil {
		handler(WriteCompletedEvent{Token: req.Token(), Err: err, Timestamp: time.Now()})
	}
}

func (c *Conn) shutdownDone(err error) {
	c.mu.Lock()
	handler := c.onShutdown
	c.onShutdown = nil
	c.mu.Unlock()

	if err != nil {
		c.log.Debug("shutdown failed", logger.F("error", err))
	}

	if handler != nil {
		handler(ShutdownCompletedEvent{Err: err, Timestamp: time.Now()})
	}
}

func (c *Conn) setFault(err error) {
	c.mu.Lock()
	if c.fault == nil {
		c.fault = err
	}
	c.mu.Unlock()
}

// schedule hands a completion to the scheduler. If the scheduler has stopped
// the completion is dropped.
func (c *Conn) schedule(op string, task scheduler.Task) {
	if err := c.sched.Schedule(task); err != nil {
		c.log.Debug("completion dropped", logger.F("op", op), logger.F("error", err))
	}
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	return addr.String()
}
