// Package echoserver is a session server built on asyncnet. It accepts one
// connection at a time, gated by a session cap and an admission policy, and
// hands each accepted connection to a Handler as a Session.
package echoserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/go-asyncsocket/admission"
	"github.com/cyberinferno/go-asyncsocket/asyncnet"
	"github.com/cyberinferno/go-asyncsocket/logger"
	"github.com/cyberinferno/go-asyncsocket/rawsocket"
	"github.com/cyberinferno/go-asyncsocket/scheduler"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const maxAcceptDelay = time.Second

// Server accepts connections on Config.Address and runs a Session per
// connection. Sessions are stored by ID and can be looked up while open.
type Server struct {
	cfg       Config
	sched     scheduler.Scheduler
	handler   Handler
	admission admission.Policy
	log       logger.Logger

	listener *asyncnet.Listener
	accepted chan asyncnet.AcceptCompletedEvent
	sem      *semaphore.Weighted
	sessions registry
	ids      atomic.Uint32
	running  atomic.Bool

	// sessMu orders session registration against shutdown's snapshot.
	sessMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewServer creates a stopped server.
//
// Parameters:
//   - cfg: Server settings (e.g. from DefaultConfig)
//   - sched: Scheduler for every connection completion and Handler callback
//   - handler: Receives session callbacks; nil uses EchoHandler
//   - policy: Admission policy applied to every accepted connection
//   - log: Logger for diagnostics; nil discards
//
// Returns:
//   - A new *Server; call Start and then Run
func NewServer(cfg Config, sched scheduler.Scheduler, handler Handler, policy admission.Policy, log logger.Logger) *Server {
	if handler == nil {
		handler = EchoHandler{}
	}

	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultConfig("").ReadBufferSize
	}

	if policy.Limit <= 0 {
		policy.Limit = cfg.AdmissionLimit
	}

	if policy.Window <= 0 {
		policy.Window = cfg.AdmissionWindow
	}

	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = math.MaxInt64
	}

	return &Server{
		cfg:       cfg,
		sched:     sched,
		handler:   handler,
		admission: policy,
		log:       logger.OrNop(log).With(logger.F("server", cfg.Name)),
		accepted:  make(chan asyncnet.AcceptCompletedEvent, 1),
		sem:       semaphore.NewWeighted(maxSessions),
	}
}

// Start binds the listening socket. It is safe to call only when the server
// is not already running.
//
// Returns:
//   - An error if the server is already running or if binding Address fails
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Error("server already running")
		return fmt.Errorf("server %s already running", s.cfg.Name)
	}

	opts := rawsocket.DefaultOptions()
	opts.MaxSendChunk = s.cfg.SendChunk

	l := asyncnet.NewListenerWithOptions(opts, s.sched, s.log)
	l.OnAcceptCompleted(func(e asyncnet.AcceptCompletedEvent) {
		if !s.running.Load() {
			if e.Conn != nil {
				_ = e.Conn.Dispose()
			}
			return
		}

		s.accepted <- e
	})

	if err := l.Bind(s.cfg.Address, s.cfg.Backlog); err != nil {
		s.running.Store(false)
		return fmt.Errorf("server %s failed to start: %w", s.cfg.Name, err)
	}

	s.listener = l
	s.log.Info(fmt.Sprintf("%s server started", s.cfg.Name), logger.F("addr", l.Addr().String()))
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Run accepts connections until ctx is done or Stop is called, then disposes
// the listener and closes every session.
//
// Returns:
//   - An error if the server was not started or the accept pump failed
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		return fmt.Errorf("server %s not started", s.cfg.Name)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return s.acceptLoop(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown()
		return nil
	})

	err := g.Wait()
	s.drainAccepted()
	return err
}

// Stop ends Run. Before Run it disposes the listener directly. Safe to call
// more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		return
	}

	s.shutdown()
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	return s.sessions.len()
}

// GetSession returns the open session with the given id, if present.
//
// Parameters:
//   - id: The session ID to look up
//
// Returns:
//   - The session and true if found, or nil and false otherwise
func (s *Server) GetSession(id uint32) (*Session, bool) {
	return s.sessions.load(id)
}

// acceptLoop keeps one accept outstanding while a session slot is free.
func (s *Server) acceptLoop(ctx context.Context) error {
	var delay time.Duration

	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		if err := s.listener.AcceptAsync(); err != nil {
			s.sem.Release(1)
			if errors.Is(err, asyncnet.ErrClosed) {
				return nil
			}

			return fmt.Errorf("server %s accept failed: %w", s.cfg.Name, err)
		}

		var e asyncnet.AcceptCompletedEvent
		select {
		case <-ctx.Done():
			s.sem.Release(1)
			return nil
		case e = <-s.accepted:
		}

		if e.Err != nil {
			s.sem.Release(1)
			delay = min(max(2*delay, 5*time.Millisecond), maxAcceptDelay)
			s.log.Error(fmt.Sprintf("%s server accept error", s.cfg.Name), logger.F("error", e.Err), logger.F("retry_in", delay))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}

			continue
		}

		delay = 0
		if !s.admit(ctx, e.Conn) {
			_ = e.Conn.Dispose()
			s.sem.Release(1)
			continue
		}

		if ctx.Err() != nil {
			_ = e.Conn.Dispose()
			s.sem.Release(1)
			return nil
		}

		s.startSession(e.Conn)
	}
}

// admit applies the admission policy. A failing counter admits the
// connection.
func (s *Server) admit(ctx context.Context, conn *asyncnet.Conn) bool {
	ok, err := s.admission.Allow(ctx, conn.RemoteAddr())
	if err != nil {
		s.log.Warn("admission check failed", logger.F("remote", conn.RemoteAddr().String()), logger.F("error", err))
		return true
	}

	if !ok {
		s.log.Info("connection refused by admission policy", logger.F("remote", conn.RemoteAddr().String()))
	}

	return ok
}

func (s *Server) startSession(conn *asyncnet.Conn) {
	if err := conn.SetNoDelay(s.cfg.NoDelay); err != nil {
		s.log.Debug("set nodelay failed", logger.F("error", err))
	}

	s.sessMu.Lock()
	if !s.running.Load() {
		s.sessMu.Unlock()
		_ = conn.Dispose()
		s.sem.Release(1)
		return
	}

	sess := newSession(s.ids.Add(1), conn, s)
	s.sessions.store(sess)
	s.sessMu.Unlock()
	sess.log.Debug("session opened")

	err := s.sched.Schedule(func() {
		if sess.closed.Load() {
			return
		}

		s.handler.OnOpen(sess)
		sess.start()
	})
	if err != nil {
		sess.close(err)
	}
}

// shutdown stops the server once. A connection admitted after the session
// snapshot is taken is disposed by startSession instead of being served.
func (s *Server) shutdown() {
	s.sessMu.Lock()
	stopped := s.running.CompareAndSwap(true, false)
	s.sessMu.Unlock()

	if !stopped {
		return
	}

	if s.listener != nil {
		_ = s.listener.Dispose()
	}

	for _, sess := range s.sessions.snapshot() {
		_ = sess.Close()
	}

	s.log.Info(fmt.Sprintf("%s server stopped", s.cfg.Name))
}

// drainAccepted closes a connection whose accept completed after the pump
// stopped waiting for it.
func (s *Server) drainAccepted() {
	select {
	case e := <-s.accepted:
		if e.Conn != nil {
			_ = e.Conn.Dispose()
		}
	default:
	}
}
