package asyncnet

import "fmt"

// WriteRequest is one write submission: a contiguous range or a list of
// ranges, plus the caller's correlation token. It is a value; Advance returns
// a new request rather than modifying the receiver.
type WriteRequest struct {
	buf      []byte
	bufs     [][]byte
	vectored bool
	token    any
}

// NewWriteRequest describes a write of b.
func NewWriteRequest(b []byte, token any) WriteRequest {
	return WriteRequest{buf: b, token: token}
}

// NewVectorWriteRequest describes a gather write of bufs, sent as if
// concatenated. The outer slice is copied; the byte ranges are not.
func NewVectorWriteRequest(bufs [][]byte, token any) WriteRequest {
	return WriteRequest{
		bufs:     append([][]byte(nil), bufs...),
		vectored: true,
		token:    token,
	}
}

// Len returns the number of bytes still to send.
func (r WriteRequest) Len() int {
	if !r.vectored {
		return len(r.buf)
	}

	n := 0
	for _, b := range r.bufs {
		n += len(b)
	}

	return n
}

// Token returns the caller's correlation token.
func (r WriteRequest) Token() any {
	return r.token
}

// Vectored reports whether the request was built from multiple ranges.
func (r WriteRequest) Vectored() bool {
	return r.vectored
}

// Bytes returns the contiguous range of a non-vectored request.
func (r WriteRequest) Bytes() []byte {
	return r.buf
}

// Buffers returns the ranges of a vectored request. Callers must not modify
// the returned slice.
func (r WriteRequest) Buffers() [][]byte {
	return r.bufs
}

// Advance returns the request for what remains after n bytes were sent.
// Fully sent ranges are dropped and a partially sent range is re-sliced.
// It panics if n is negative or larger than Len.
func (r WriteRequest) Advance(n int) WriteRequest {
	if n < 0 || n > r.Len() {
		panic(fmt.Sprintf("asyncnet: advance %d outside request of %d bytes", n, r.Len()))
	}

	if !r.vectored {
		r.buf = r.buf[n:]
		return r
	}

	i := 0
	for i < len(r.bufs) && n >= len(r.bufs[i]) {
		n -= len(r.bufs[i])
		i++
	}

	rest := make([][]byte, 0, len(r.bufs)-i)
	if i < len(r.bufs) {
		rest = append(rest, r.bufs[i][n:])
		rest = append(rest, r.bufs[i+1:]...)
	}

	r.bufs = rest
	return r
}
