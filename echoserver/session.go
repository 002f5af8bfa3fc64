package echoserver

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cyberinferno/go-asyncsocket/asyncnet"
	"github.com/cyberinferno/go-asyncsocket/logger"
)

// Session is one accepted connection. Reads are re-armed after every
// completion until the peer closes the connection or a transfer fails.
type Session struct {
	id     uint32
	conn   *asyncnet.Conn
	server *Server
	log    logger.Logger
	buf    []byte

	closeOnce sync.Once
	closed    atomic.Bool
}

func newSession(id uint32, conn *asyncnet.Conn, server *Server) *Session {
	s := &Session{
		id:     id,
		conn:   conn,
		server: server,
		log:    server.log.With(logger.F("session", id), logger.F("remote", conn.RemoteAddr().String())),
		buf:    make([]byte, server.cfg.ReadBufferSize),
	}

	conn.OnReadCompleted(s.readCompleted)
	conn.OnWriteCompleted(s.writeCompleted)
	conn.OnShutdownCompleted(func(e asyncnet.ShutdownCompletedEvent) {
		s.close(e.Err)
	})

	return s
}

// ID returns the session's unique identifier assigned by the server.
func (s *Session) ID() uint32 {
	return s.id
}

// RemoteAddr returns the peer endpoint.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Send queues data for sending after everything sent before it. data must
// not be modified afterwards.
//
// Parameters:
//   - data: The bytes to send
//
// Returns:
//   - asyncnet.ErrClosed once the session is closing
func (s *Session) Send(data []byte) error {
	return s.conn.WriteAsync(data, nil)
}

// Shutdown starts a graceful close: queued sends are dropped, the peer sees
// end of stream, and OnClose follows once the disconnect completes.
//
// Returns:
//   - asyncnet.ErrClosed if the session is already closing
func (s *Session) Shutdown() error {
	return s.conn.ShutdownAsync()
}

// Close closes the session immediately. OnClose runs on the calling
// goroutine. Safe to call more than once.
func (s *Session) Close() error {
	s.close(nil)
	return nil
}

func (s *Session) start() {
	if err := s.conn.ReadAsync(s.buf); err != nil {
		s.close(err)
	}
}

func (s *Session) readCompleted(e asyncnet.ReadCompletedEvent) {
	if e.Err != nil {
		s.close(e.Err)
		return
	}

	if e.N == 0 {
		s.log.Debug("peer closed connection")
		s.close(nil)
		return
	}

	s.server.handler.OnData(s, s.buf[:e.N])

	if err := s.conn.ReadAsync(s.buf); err != nil && !errors.Is(err, asyncnet.ErrClosed) {
		s.close(err)
	}
}

func (s *Session) writeCompleted(e asyncnet.WriteCompletedEvent) {
	if e.Err != nil {
		s.close(e.Err)
	}
}

func (s *Session) close(err error) {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.server.sessions.delete(s.id)
		_ = s.conn.Dispose()
		s.server.sem.Release(1)

		if err != nil {
			s.log.Debug("session closed", logger.F("error", err))
		} else {
			s.log.Debug("session closed")
		}

		s.server.handler.OnClose(s, err)
	})
}
