package echoserver

import "time"

// Config holds configuration for a Server.
type Config struct {
	// Name identifies the server in log messages.
	Name string
	// Address is the "host:port" to listen on.
	Address string
	// Backlog is the pending-connection queue length; <= 0 uses the system maximum.
	Backlog int
	// ReadBufferSize is the size of each session's receive buffer.
	ReadBufferSize int
	// MaxSessions caps concurrently open sessions; <= 0 means no cap.
	MaxSessions int64
	// AdmissionLimit is the number of connections a remote host may open per
	// AdmissionWindow; <= 0 disables the check.
	AdmissionLimit int64
	// AdmissionWindow is the window AdmissionLimit applies to.
	AdmissionWindow time.Duration
	// NoDelay disables Nagle's algorithm on accepted connections.
	NoDelay bool
	// SendChunk caps the bytes handed to the transport per send; 0 means no cap.
	SendChunk int
}

// DefaultConfig returns a Config with default values for the given address.
//
// Parameters:
//   - address: The "host:port" to listen on
//
// Returns:
//   - A Config with defaults: Name "echo", Backlog 128, ReadBufferSize 4096,
//     MaxSessions 1024, AdmissionLimit 0 (disabled), AdmissionWindow 1m,
//     NoDelay true, SendChunk 0.
func DefaultConfig(address string) Config {
	return Config{
		Name:            "echo",
		Address:         address,
		Backlog:         128,
		ReadBufferSize:  4096,
		MaxSessions:     1024,
		AdmissionLimit:  0,
		AdmissionWindow: time.Minute,
		NoDelay:         true,
		SendChunk:       0,
	}
}
