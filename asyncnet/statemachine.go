package asyncnet

// StateMachine holds the per-connection operation bookkeeping: whether a read
// is outstanding, the FIFO of writes whose head is the one in flight, and
// whether the connection has been closed. It performs no I/O and is not safe
// for concurrent use; Conn guards it with its own mutex.
type StateMachine struct {
	readOutstanding bool
	writes          []WriteRequest
	closed          bool
}

// NewStateMachine returns an open state machine with nothing outstanding.
func NewStateMachine() *StateMachine {
	return &StateMachine{}
}

// BeginRead marks a read as outstanding.
//
// Returns:
//   - ErrClosed after Close, ErrReadOutstanding if a read is already in flight
func (s *StateMachine) BeginRead() error {
	if s.closed {
		return ErrClosed
	}

	if s.readOutstanding {
		return ErrReadOutstanding
	}

	s.readOutstanding = true
	return nil
}

// EndRead clears the outstanding read.
func (s *StateMachine) EndRead() {
	s.readOutstanding = false
}

// SubmitWrite appends req to the write queue.
//
// Returns:
//   - true if the queue was empty, meaning the caller must start sending req
//     now; false if req has to wait for the writes ahead of it
//   - ErrClosed after Close
func (s *StateMachine) SubmitWrite(req WriteRequest) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}

	s.writes = append(s.writes, req)
	return len(s.writes) == 1, nil
}

// CompleteWrite removes the write that just finished from the head of the
// queue.
//
// Returns:
//   - The new head and true if another write is waiting; the caller must
//     start sending it
//   - A zero WriteRequest and false if the queue is now empty
func (s *StateMachine) CompleteWrite() (WriteRequest, bool) {
	if len(s.writes) == 0 {
		return WriteRequest{}, false
	}

	s.writes[0] = WriteRequest{}
	s.writes = s.writes[1:]
	if len(s.writes) == 0 {
		s.writes = nil
		return WriteRequest{}, false
	}

	return s.writes[0], true
}

// Close marks the state machine closed. Queued writes are left in place so
// in-flight completions can still run CompleteWrite.
func (s *StateMachine) Close() {
	s.closed = true
}

// Closed reports whether Close has been called.
func (s *StateMachine) Closed() bool {
	return s.closed
}

// ReadOutstanding reports whether a read is in flight.
func (s *StateMachine) ReadOutstanding() bool {
	return s.readOutstanding
}

// PendingWrites returns the number of queued writes, including the one in flight.
func (s *StateMachine) PendingWrites() int {
	return len(s.writes)
}
