// Package admission decides whether a new connection may be served, based on
// how many connections the same remote host opened within a recent window.
package admission

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrInvalidWindow is returned when a counter is asked for a window that is
// not positive.
var ErrInvalidWindow = errors.New("admission: window must be positive")

// Counter counts hits per key in fixed windows. A window opens at the first
// hit on a key and the count restarts once it has elapsed.
type Counter interface {
	// Hit records one hit on key.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The key to count against
	//   - window: Lifetime of the window opened by the first hit
	//
	// Returns:
	//   - The number of hits in the current window, including this one
	//   - An error if the backend could not be updated
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)

	// Reset discards the count for key.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The key to reset
	//
	// Returns:
	//   - An error if the operation fails
	Reset(ctx context.Context, key string) error
}

// Policy admits at most Limit connections per remote host per Window.
// A zero Policy, or one with a nil Counter or a Limit <= 0, admits everything.
type Policy struct {
	Counter Counter
	Limit   int64
	Window  time.Duration
}

// Enabled reports whether the policy can ever refuse a connection.
func (p Policy) Enabled() bool {
	return p.Counter != nil && p.Limit > 0
}

// Allow records a connection from addr and reports whether it is admitted.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - addr: The remote endpoint; only the host part is counted
//
// Returns:
//   - true if the connection is within the limit
//   - An error if the counter failed; the connection should then be refused
//     or admitted at the caller's discretion
func (p Policy) Allow(ctx context.Context, addr net.Addr) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}

	n, err := p.Counter.Hit(ctx, Key(addr), p.Window)
	if err != nil {
		return false, fmt.Errorf("admission check failed: %w", err)
	}

	return n <= p.Limit, nil
}

// Key returns the counter key for addr: its host, without the port.
func Key(addr net.Addr) string {
	if addr == nil {
		return "conn:"
	}

	if tcp, ok := addr.(*net.TCPAddr); ok {
		return "conn:" + tcp.IP.String()
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "conn:" + addr.String()
	}

	return "conn:" + host
}
