//go:build linux

package rawsocket

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listenTCP creates the listening socket by hand so the backlog reaches
// listen(2); net.Listen always uses the system maximum.
func listenTCP(address string, backlog int) (*net.TCPListener, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}

	family, sa := tcpSockaddr(addr)
	fd, err := socket(family)
	if err == unix.EAFNOSUPPORT && len(addr.IP) == 0 {
		// IPv6 disabled on this host; a wildcard bind falls back to IPv4
		family, sa = unix.AF_INET, &unix.SockaddrInet4{Port: addr.Port}
		fd, err = socket(family)
	}
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	fail := func(call string, err error) (*net.TCPListener, error) {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError(call, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}

	if family == unix.AF_INET6 && len(addr.IP) == 0 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
			return fail("setsockopt", err)
		}
	}

	if err := unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}

	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}

	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}

	f := os.NewFile(uintptr(fd), "tcp:"+address)
	defer func() { _ = f.Close() }()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, err
	}

	return ln.(*net.TCPListener), nil
}

func socket(family int) (int, error) {
	return unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
}

// tcpSockaddr maps addr to a socket address. A host-less address maps to the
// IPv6 wildcard, which listenTCP makes dual-stack like net.Listen does.
func tcpSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}

	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}

	return unix.AF_INET6, sa
}
