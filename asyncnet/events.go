package asyncnet

import "time"

// ConnectionState is the lifecycle state of a Conn.
type ConnectionState int

const (
	StateOpen   ConnectionState = iota // Reads and writes may be submitted
	StateClosed                        // ShutdownAsync or Dispose was called; terminal
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case StateOpen:
		return "Open"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ReadCompletedEvent reports the outcome of one ReadAsync call.
type ReadCompletedEvent struct {
	N         int       // Bytes read; 0 with a nil Err means the peer closed its side
	Err       error     // Transport failure, if any; N is 0 when set
	Timestamp time.Time // When the completion was delivered
}

// WriteCompletedEvent reports that an entire WriteAsync request was sent, or
// why it was not.
type WriteCompletedEvent struct {
	Token     any       // The token passed to WriteAsync, unchanged
	Err       error     // Transport failure, if any
	Timestamp time.Time // When the completion was delivered
}

// ShutdownCompletedEvent reports the outcome of ShutdownAsync.
type ShutdownCompletedEvent struct {
	Err       error     // Disconnect failure, if any; the Conn is closed regardless
	Timestamp time.Time // When the completion was delivered
}

// AcceptCompletedEvent reports the outcome of one AcceptAsync call.
type AcceptCompletedEvent struct {
	Conn      *Conn     // The accepted connection; nil when Err is set
	Err       error     // Accept failure, if any
	Timestamp time.Time // When the completion was delivered
}

// ConnectCompletedEvent reports the outcome of Dial.
type ConnectCompletedEvent struct {
	Conn      *Conn     // The established connection; nil when Err is set
	Err       error     // Dial failure, if any
	Timestamp time.Time // When the completion was delivered
}

// ReadCompletedHandler is called on the scheduler when a read completes.
type ReadCompletedHandler func(event ReadCompletedEvent)

// WriteCompletedHandler is called on the scheduler when a write completes.
type WriteCompletedHandler func(event WriteCompletedEvent)

// ShutdownCompletedHandler is called on the scheduler when a shutdown completes.
type ShutdownCompletedHandler func(event ShutdownCompletedEvent)

// AcceptCompletedHandler is called on the scheduler when an accept completes.
type AcceptCompletedHandler func(event AcceptCompletedEvent)

// ConnectCompletedHandler is called on the scheduler when a dial completes.
type ConnectCompletedHandler func(event ConnectCompletedEvent)
