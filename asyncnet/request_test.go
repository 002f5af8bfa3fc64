package asyncnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatten(r WriteRequest) string {
	if !r.Vectored() {
		return string(r.Bytes())
	}
	var out []byte
	for _, b := range r.Buffers() {
		out = append(out, b...)
	}
	return string(out)
}

func TestWriteRequest_Single(t *testing.T) {
	r := NewWriteRequest([]byte("hello"), "tok")
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, "tok", r.Token())
	assert.False(t, r.Vectored())

	t.Run("advance keeps the suffix", func(t *testing.T) {
		rest := r.Advance(2)
		assert.Equal(t, "llo", flatten(rest))
		assert.Equal(t, "tok", rest.Token())
		assert.Equal(t, "hello", flatten(r), "receiver must be unchanged")
	})

	t.Run("advance to the end", func(t *testing.T) {
		assert.Zero(t, r.Advance(5).Len())
	})

	t.Run("advance out of range panics", func(t *testing.T) {
		assert.Panics(t, func() { r.Advance(6) })
		assert.Panics(t, func() { r.Advance(-1) })
	})
}

func TestWriteRequest_Vectored(t *testing.T) {
	bufs := [][]byte{[]byte("ab"), {}, []byte("cde"), []byte("f")}
	r := NewVectorWriteRequest(bufs, 7)
	assert.True(t, r.Vectored())
	assert.Equal(t, 6, r.Len())

	t.Run("outer slice is copied", func(t *testing.T) {
		bufs[0] = []byte("zz")
		assert.Equal(t, "abcdef", flatten(r))
		bufs[0] = []byte("ab")
	})

	t.Run("advance within first range", func(t *testing.T) {
		rest := r.Advance(1)
		assert.Equal(t, "bcdef", flatten(rest))
		require.Len(t, rest.Buffers(), 4)
	})

	t.Run("advance skips empty and finished ranges", func(t *testing.T) {
		rest := r.Advance(2)
		assert.Equal(t, "cdef", flatten(rest))
		require.Len(t, rest.Buffers(), 2)
		assert.Equal(t, "cde", string(rest.Buffers()[0]))
	})

	t.Run("advance into a later range", func(t *testing.T) {
		rest := r.Advance(4)
		assert.Equal(t, "ef", flatten(rest))
		assert.Equal(t, 7, rest.Token())
	})

	t.Run("advance to the end", func(t *testing.T) {
		rest := r.Advance(6)
		assert.Zero(t, rest.Len())
		assert.Empty(t, rest.Buffers())
	})

	t.Run("one byte at a time", func(t *testing.T) {
		var got []byte
		cur := r
		for cur.Len() > 0 {
			got = append(got, flatten(cur)[0])
			cur = cur.Advance(1)
		}
		assert.Equal(t, "abcdef", string(got))
	})
}
