package asyncnet

import (
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/go-asyncsocket/logger"
	"github.com/cyberinferno/go-asyncsocket/rawsocket"
	"github.com/cyberinferno/go-asyncsocket/scheduler"
)

// Listener accepts connections one AcceptAsync call at a time and wraps each
// in a Conn sharing the listener's scheduler and logger. It is safe for
// concurrent use; overlapping AcceptAsync calls are allowed but not ordered.
type Listener struct {
	raw   rawsocket.Listener
	sched scheduler.Scheduler
	log   logger.Logger

	mu       sync.Mutex
	bound    bool
	disposed bool
	onAccept AcceptCompletedHandler
}

// NewListener returns an unbound TCP Listener.
//
// Parameters:
//   - sched: Scheduler for accept completions and for every accepted Conn
//   - log: Logger for diagnostics; nil discards
func NewListener(sched scheduler.Scheduler, log logger.Logger) *Listener {
	return NewListenerWithOptions(rawsocket.DefaultOptions(), sched, log)
}

// NewListenerWithOptions is NewListener with raw socket options applied to
// the listener and the connections it accepts.
func NewListenerWithOptions(opts rawsocket.Options, sched scheduler.Scheduler, log logger.Logger) *Listener {
	return NewListenerFrom(rawsocket.NewTCPListener(opts), sched, log)
}

// NewListenerFrom wraps an arbitrary raw listener.
func NewListenerFrom(raw rawsocket.Listener, sched scheduler.Scheduler, log logger.Logger) *Listener {
	return &Listener{
		raw:   raw,
		sched: sched,
		log:   logger.OrNop(log),
	}
}

// OnAcceptCompleted registers the handler for accept completions, replacing
// any previous one. Ignored once disposed.
func (l *Listener) OnAcceptCompleted(handler AcceptCompletedHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.disposed {
		l.onAccept = handler
	}
}

// Bind binds to address and starts listening. Binding is synchronous, so
// failures such as the address being in use are returned directly.
//
// Parameters:
//   - address: The "host:port" to listen on; port 0 picks a free port
//   - backlog: Pending-connection queue length; <= 0 uses the system maximum
//
// Returns:
//   - ErrClosed after Dispose, ErrAlreadyBound on a second call, or the
//     transport's bind error
func (l *Listener) Bind(address string, backlog int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return ErrClosed
	}

	if l.bound {
		return ErrAlreadyBound
	}

	if err := l.raw.Bind(address, backlog); err != nil {
		l.log.Error("bind failed", logger.F("addr", address), logger.F("error", err))
		return err
	}

	l.bound = true
	l.log.Info("listening", logger.F("addr", addrString(l.raw.Addr())), logger.F("backlog", backlog))
	return nil
}

// AcceptAsync starts one accept. Exactly one AcceptCompleted event follows
// unless the Listener is disposed first. It is not re-armed: call it again
// to accept the next connection.
//
// Returns:
//   - ErrClosed after Dispose, ErrNotBound before Bind
func (l *Listener) AcceptAsync() error {
	l.mu.Lock()
	disposed, bound := l.disposed, l.bound
	l.mu.Unlock()

	if disposed {
		return ErrClosed
	}

	if !bound {
		return ErrNotBound
	}

	l.raw.BeginAccept(func(conn rawsocket.Conn, err error) {
		if serr := l.sched.Schedule(func() { l.acceptDone(conn, err) }); serr != nil {
			l.log.Debug("completion dropped", logger.F("op", "accept"), logger.F("error", serr))
			if conn != nil {
				_ = conn.Close()
			}
		}
	})

	return nil
}

// Addr returns the bound address, or nil before Bind.
func (l *Listener) Addr() net.Addr {
	return l.raw.Addr()
}

// Dispose detaches the accept handler and closes the listening socket. An
// outstanding accept completes silently; a connection it still produced is
// closed. Safe to call more than once.
func (l *Listener) Dispose() error {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return nil
	}

	l.disposed = true
	l.onAccept = nil
	l.mu.Unlock()

	l.log.Debug("listener disposed")
	return l.raw.Close()
}

func (l *Listener) acceptDone(raw rawsocket.Conn, err error) {
	l.mu.Lock()
	handler := l.onAccept
	l.mu.Unlock()

	if handler == nil {
		if raw != nil {
			_ = raw.Close()
		}
		return
	}

	if err != nil {
		l.log.Debug("accept failed", logger.F("error", err))
		handler(AcceptCompletedEvent{Err: err, Timestamp: time.Now()})
		return
	}

	conn := NewConn(raw, l.sched, l.log)
	conn.log.Debug("accepted")
	handler(AcceptCompletedEvent{Conn: conn, Timestamp: time.Now()})
}
