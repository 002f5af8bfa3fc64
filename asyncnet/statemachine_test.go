package asyncnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_Read(t *testing.T) {
	t.Run("one read at a time", func(t *testing.T) {
		s := NewStateMachine()
		require.NoError(t, s.BeginRead())
		assert.True(t, s.ReadOutstanding())

		err := s.BeginRead()
		assert.ErrorIs(t, err, ErrReadOutstanding)
		assert.ErrorIs(t, err, ErrInvalidOperation)

		s.EndRead()
		assert.False(t, s.ReadOutstanding())
		assert.NoError(t, s.BeginRead())
	})

	t.Run("rejected after close", func(t *testing.T) {
		s := NewStateMachine()
		s.Close()
		assert.ErrorIs(t, s.BeginRead(), ErrClosed)
		assert.False(t, s.ReadOutstanding())
	})

	t.Run("end read is always legal", func(t *testing.T) {
		s := NewStateMachine()
		assert.NotPanics(t, s.EndRead)
		s.Close()
		assert.NotPanics(t, s.EndRead)
	})
}

func TestStateMachine_Write(t *testing.T) {
	t.Run("first write starts immediately", func(t *testing.T) {
		s := NewStateMachine()
		start, err := s.SubmitWrite(NewWriteRequest([]byte("a"), 1))
		require.NoError(t, err)
		assert.True(t, start)
		assert.Equal(t, 1, s.PendingWrites())
	})

	t.Run("later writes queue behind the head", func(t *testing.T) {
		s := NewStateMachine()
		for i := 0; i < 4; i++ {
			start, err := s.SubmitWrite(NewWriteRequest(nil, i))
			require.NoError(t, err)
			assert.Equal(t, i == 0, start)
		}
		assert.Equal(t, 4, s.PendingWrites())

		for want := 1; want < 4; want++ {
			next, ok := s.CompleteWrite()
			require.True(t, ok)
			assert.Equal(t, want, next.Token())
		}

		_, ok := s.CompleteWrite()
		assert.False(t, ok)
		assert.Zero(t, s.PendingWrites())
	})

	t.Run("queue restarts after draining", func(t *testing.T) {
		s := NewStateMachine()
		_, _ = s.SubmitWrite(NewWriteRequest(nil, "a"))
		_, ok := s.CompleteWrite()
		require.False(t, ok)

		start, err := s.SubmitWrite(NewWriteRequest(nil, "b"))
		require.NoError(t, err)
		assert.True(t, start)
	})

	t.Run("complete on empty queue", func(t *testing.T) {
		s := NewStateMachine()
		_, ok := s.CompleteWrite()
		assert.False(t, ok)
	})

	t.Run("rejected after close", func(t *testing.T) {
		s := NewStateMachine()
		s.Close()
		start, err := s.SubmitWrite(NewWriteRequest(nil, nil))
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, err, ErrInvalidOperation)
		assert.False(t, start)
	})

	t.Run("close keeps queued writes for draining", func(t *testing.T) {
		s := NewStateMachine()
		_, _ = s.SubmitWrite(NewWriteRequest(nil, 1))
		_, _ = s.SubmitWrite(NewWriteRequest(nil, 2))
		s.Close()
		assert.True(t, s.Closed())
		assert.Equal(t, 2, s.PendingWrites())

		next, ok := s.CompleteWrite()
		require.True(t, ok)
		assert.Equal(t, 2, next.Token())
	})
}
