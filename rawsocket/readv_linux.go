//go:build linux

package rawsocket

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// receiveV performs a single readv(2) through the runtime poller.
func (c *tcpConn) receiveV(bufs [][]byte) (int, error) {
	rc, err := c.conn.SyscallConn()
	if err != nil {
		return 0, err
	}

	var (
		n    int
		rerr error
	)
	err = rc.Read(func(fd uintptr) bool {
		for {
			n, rerr = unix.Readv(int(fd), bufs)
			if rerr != unix.EINTR {
				return rerr != unix.EAGAIN
			}
		}
	})
	if err != nil {
		return 0, err
	}

	if rerr != nil {
		return 0, os.NewSyscallError("readv", rerr)
	}

	if n == 0 && totalLen(bufs) > 0 {
		return 0, io.EOF
	}

	return n, nil
}

func totalLen(bufs [][]byte) int {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}

	return n
}
