//go:build !linux

package rawsocket

// receiveV fills the first non-empty segment; without readv a single receive
// cannot span segments.
func (c *tcpConn) receiveV(bufs [][]byte) (int, error) {
	for _, b := range bufs {
		if len(b) > 0 {
			return c.conn.Read(b)
		}
	}

	return 0, nil
}
