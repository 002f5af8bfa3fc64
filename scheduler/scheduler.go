// Package scheduler provides completion schedulers: facilities that accept
// units of work from any goroutine and run them later, one at a time, in
// submission order, on a single execution context.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cyberinferno/go-asyncsocket/logger"
)

// ErrClosed is returned by Schedule once the scheduler has been stopped.
var ErrClosed = errors.New("scheduler: closed")

// Task is a unit of work.
type Task func()

// Scheduler runs submitted tasks later, exactly once each, never on the
// submitting goroutine's stack, and in the order they were scheduled.
type Scheduler interface {
	// Schedule queues task for execution. It never blocks on task itself.
	//
	// Parameters:
	//   - task: The work to run; nil is ignored
	//
	// Returns:
	//   - ErrClosed if the scheduler no longer accepts work, nil otherwise
	Schedule(task Task) error
}

// queue is an unbounded FIFO of tasks.
type queue struct {
	tasks []Task
	head  int
}

func (q *queue) push(t Task) {
	q.tasks = append(q.tasks, t)
}

func (q *queue) pop() (Task, bool) {
	if q.head == len(q.tasks) {
		return nil, false
	}

	t := q.tasks[q.head]
	q.tasks[q.head] = nil
	q.head++
	if q.head == len(q.tasks) {
		q.tasks = q.tasks[:0]
		q.head = 0
	}

	return t, true
}

func (q *queue) len() int {
	return len(q.tasks) - q.head
}

// Serial is a Scheduler backed by one worker goroutine. All tasks run on that
// goroutine, so tasks never run concurrently with each other.
type Serial struct {
	log logger.Logger

	mu      sync.Mutex
	pending queue
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewSerial starts a Serial scheduler. Panics raised by tasks are recovered
// and logged at error level; the worker keeps running.
//
// Parameters:
//   - log: Logger for task panics; nil discards
//
// Returns:
//   - A running *Serial; call Close or Shutdown to stop it
func NewSerial(log logger.Logger) *Serial {
	s := &Serial{
		log:  logger.OrNop(log),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	go s.run()
	return s
}

// Schedule implements Scheduler.
func (s *Serial) Schedule(task Task) error {
	if task == nil {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.pending.push(task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return nil
}

// Shutdown stops accepting tasks, lets the worker drain what is already
// queued, and waits for it to exit or for ctx to be done.
//
// Returns:
//   - nil once the worker has exited, or ctx.Err()
func (s *Serial) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is Shutdown without a deadline.
func (s *Serial) Close() error {
	return s.Shutdown(context.Background())
}

func (s *Serial) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		task, ok := s.pending.pop()
		closed := s.closed
		s.mu.Unlock()

		if ok {
			s.execute(task)
			continue
		}

		if closed {
			return
		}

		<-s.wake
	}
}

func (s *Serial) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled task panicked", logger.F("panic", fmt.Sprint(r)))
		}
	}()

	task()
}
