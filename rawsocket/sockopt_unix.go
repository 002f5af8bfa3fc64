//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package rawsocket

import (
	"os"

	"golang.org/x/sys/unix"
)

// NoDelay reads TCP_NODELAY from the live socket.
func (c *tcpConn) NoDelay() (bool, error) {
	var v int
	err := c.control("getsockopt", func(fd int) (err error) {
		v, err = unix.GetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY)
		return err
	})
	if err != nil {
		return false, err
	}

	return v != 0, nil
}

// Linger reads SO_LINGER from the live socket.
func (c *tcpConn) Linger() (LingerOption, error) {
	var l *unix.Linger
	err := c.control("getsockopt", func(fd int) (err error) {
		l, err = unix.GetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER)
		return err
	})
	if err != nil {
		return LingerOption{}, err
	}

	return LingerOption{Enabled: l.Onoff != 0, Seconds: int(l.Linger)}, nil
}

func (c *tcpConn) control(call string, fn func(fd int) error) error {
	rc, err := c.conn.SyscallConn()
	if err != nil {
		return err
	}

	var ferr error
	if err := rc.Control(func(fd uintptr) { ferr = fn(int(fd)) }); err != nil {
		return err
	}

	if ferr != nil {
		return os.NewSyscallError(call, ferr)
	}

	return nil
}
