//go:build !linux

package rawsocket

import (
	"context"
	"net"
)

// listenTCP ignores backlog: outside Linux the standard listener is used and
// the kernel default applies.
func listenTCP(address string, _ int) (*net.TCPListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", address)
	if err != nil {
		return nil, err
	}

	return ln.(*net.TCPListener), nil
}
