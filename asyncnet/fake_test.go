package asyncnet

import (
	"net"
	"sync"

	"github.com/cyberinferno/go-asyncsocket/rawsocket"
)

type fakeOp struct {
	data     []byte // send: copy of what was handed to the transport
	bufs     [][]byte
	vectored bool
	cb       rawsocket.IOCallback
}

// fakeConn records every raw operation. With chunk > 0, sends complete
// inline with at most chunk bytes, as a transport that finishes synchronously
// on the calling goroutine would.
type fakeConn struct {
	mu          sync.Mutex
	chunk       int
	receives    []fakeOp
	sends       []fakeOp
	disconnects []rawsocket.DoneCallback
	wire        []byte
	closed      int
	noDelay     bool
	linger      rawsocket.LingerOption
	local       net.Addr
	remote      net.Addr
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		local:  &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1000},
		remote: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2000},
	}
}

func (f *fakeConn) BeginReceive(b []byte, cb rawsocket.IOCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receives = append(f.receives, fakeOp{bufs: [][]byte{b}, cb: cb})
}

func (f *fakeConn) BeginReceiveV(bufs [][]byte, cb rawsocket.IOCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receives = append(f.receives, fakeOp{bufs: bufs, vectored: true, cb: cb})
}

func (f *fakeConn) BeginSend(b []byte, cb rawsocket.IOCallback) {
	f.send(fakeOp{data: append([]byte(nil), b...), cb: cb})
}

func (f *fakeConn) BeginSendV(bufs [][]byte, cb rawsocket.IOCallback) {
	var data []byte
	for _, b := range bufs {
		data = append(data, b...)
	}
	f.send(fakeOp{data: data, bufs: bufs, vectored: true, cb: cb})
}

func (f *fakeConn) send(op fakeOp) {
	f.mu.Lock()
	f.sends = append(f.sends, op)
	chunk := f.chunk
	n := min(chunk, len(op.data))
	if chunk > 0 {
		f.wire = append(f.wire, op.data[:n]...)
	}
	f.mu.Unlock()

	if chunk > 0 {
		op.cb(n, nil)
	}
}

func (f *fakeConn) BeginDisconnect(cb rawsocket.DoneCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects = append(f.disconnects, cb)
}

func (f *fakeConn) LocalAddr() net.Addr  { return f.local }
func (f *fakeConn) RemoteAddr() net.Addr { return f.remote }

func (f *fakeConn) NoDelay() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.noDelay, nil
}

func (f *fakeConn) SetNoDelay(v bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noDelay = v
	return nil
}

func (f *fakeConn) Linger() (rawsocket.LingerOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linger, nil
}

func (f *fakeConn) SetLinger(opt rawsocket.LingerOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linger = opt
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeConn) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeConn) sendAt(i int) fakeOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[i]
}

func (f *fakeConn) receiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.receives)
}

func (f *fakeConn) receiveAt(i int) fakeOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receives[i]
}

func (f *fakeConn) wireString() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.wire)
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeListener hands out connections only when the test completes an accept.
type fakeListener struct {
	mu      sync.Mutex
	bindErr error
	bound   string
	backlog int
	accepts []rawsocket.AcceptCallback
	closed  int
}

func (f *fakeListener) Bind(address string, backlog int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bindErr != nil {
		return f.bindErr
	}
	f.bound = address
	f.backlog = backlog
	return nil
}

func (f *fakeListener) BeginAccept(cb rawsocket.AcceptCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepts = append(f.accepts, cb)
}

func (f *fakeListener) Addr() net.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bound == "" {
		return nil
	}
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
}

func (f *fakeListener) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeListener) acceptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.accepts)
}

func (f *fakeListener) acceptAt(i int) rawsocket.AcceptCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepts[i]
}
