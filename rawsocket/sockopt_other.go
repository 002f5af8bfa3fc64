//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package rawsocket

// NoDelay returns the last value set; the option cannot be read back here.
func (c *tcpConn) NoDelay() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.noDelay, nil
}

// Linger returns the last value set.
func (c *tcpConn) Linger() (LingerOption, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linger, nil
}
