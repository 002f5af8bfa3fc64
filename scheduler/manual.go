package scheduler

import "sync"

// Manual is a Scheduler that only runs tasks when told to. Tests use it to
// step through completions deterministically.
type Manual struct {
	mu      sync.Mutex
	pending queue
	closed  bool
}

// NewManual returns an empty Manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// Schedule implements Scheduler.
func (m *Manual) Schedule(task Task) error {
	if task == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.pending.push(task)
	return nil
}

// RunOne runs the oldest queued task, if any, and reports whether one ran.
func (m *Manual) RunOne() bool {
	m.mu.Lock()
	task, ok := m.pending.pop()
	m.mu.Unlock()

	if ok {
		task()
	}

	return ok
}

// RunPending runs queued tasks, including ones scheduled while running, until
// the queue is empty.
//
// Returns:
//   - The number of tasks run
func (m *Manual) RunPending() int {
	n := 0
	for m.RunOne() {
		n++
	}

	return n
}

// Len returns the number of queued tasks.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.len()
}

// Close makes further Schedule calls fail. Queued tasks can still be run.
func (m *Manual) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
