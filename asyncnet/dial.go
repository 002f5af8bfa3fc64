package asyncnet

import (
	"time"

	"github.com/cyberinferno/go-asyncsocket/logger"
	"github.com/cyberinferno/go-asyncsocket/rawsocket"
	"github.com/cyberinferno/go-asyncsocket/scheduler"
)

// Dial connects to address in the background and reports the outcome with a
// ConnectCompleted event on sched.
//
// Parameters:
//   - address: The "host:port" to connect to
//   - timeout: Connect timeout; 0 uses the raw socket default
//   - sched: Scheduler for the event and for the resulting Conn
//   - log: Logger for diagnostics; nil discards
//   - handler: Receives the event; if nil, a connection that was made is closed
func Dial(address string, timeout time.Duration, sched scheduler.Scheduler, log logger.Logger, handler ConnectCompletedHandler) {
	DialWithOptions(address, timeout, rawsocket.DefaultOptions(), sched, log, handler)
}

// DialWithOptions is Dial with raw socket options for the resulting Conn.
func DialWithOptions(
	address string,
	timeout time.Duration,
	opts rawsocket.Options,
	sched scheduler.Scheduler,
	log logger.Logger,
	handler ConnectCompletedHandler,
) {
	log = logger.OrNop(log)

	rawsocket.BeginDial(address, timeout, opts, func(raw rawsocket.Conn, err error) {
		task := func() {
			if handler == nil {
				if raw != nil {
					_ = raw.Close()
				}
				return
			}

			if err != nil {
				log.Debug("dial failed", logger.F("addr", address), logger.F("error", err))
				handler(ConnectCompletedEvent{Err: err, Timestamp: time.Now()})
				return
			}

			handler(ConnectCompletedEvent{Conn: NewConn(raw, sched, log), Timestamp: time.Now()})
		}

		if serr := sched.Schedule(task); serr != nil {
			log.Debug("completion dropped", logger.F("op", "connect"), logger.F("error", serr))
			if raw != nil {
				_ = raw.Close()
			}
		}
	})
}
