// Package chans provides the typed FIFO channel pair that backs every edge and
// control line in the kernel. Unlike a native Go channel, a pair can be closed
// from either end without racing a concurrent sender, sends never block, and a
// receiver can drain whatever is queued without waiting.
package chans

import (
	"context"
	"errors"
	"iter"
	"sync"
)

var (
	ErrDisconnected = errors.New("channel disconnected")
	ErrFull         = errors.New("channel full")
)

type queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	closed   bool
	notify   chan struct{}
	done     chan struct{}
}

// Sender is the producer half of a pair. The zero value is disconnected.
type Sender[T any] struct {
	q *queue[T]
}

// Receiver is the consumer half of a pair. The zero value is disconnected.
type Receiver[T any] struct {
	q *queue[T]
}

// New returns an unbounded pair.
func New[T any]() (Sender[T], Receiver[T]) {
	return NewBounded[T](0)
}

// NewBounded returns a pair holding at most capacity queued items; a
// capacity <= 0 means unbounded.
func NewBounded[T any](capacity int) (Sender[T], Receiver[T]) {
	if capacity < 0 {
		capacity = 0
	}
	q := &queue[T]{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	return Sender[T]{q: q}, Receiver[T]{q: q}
}

func (q *queue[T]) close() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}

func (q *queue[T]) isClosed() bool {
	if q == nil {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *queue[T]) pop() (T, bool, error) {
	var zero T
	if q == nil {
		return zero, false, ErrDisconnected
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		v := q.items[0]
		q.items[0] = zero
		q.items = q.items[1:]
		if len(q.items) > 0 {
			// hand the wakeup on to any other blocked receiver
			select {
			case q.notify <- struct{}{}:
			default:
			}
		}
		return v, true, nil
	}
	if q.closed {
		return zero, false, ErrDisconnected
	}
	return zero, false, nil
}

// Send enqueues v without blocking.
func (s Sender[T]) Send(v T) error {
	q := s.q
	if q == nil {
		return ErrDisconnected
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrDisconnected
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.mu.Unlock()
		return ErrFull
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close disconnects both halves and drops anything still queued.
func (s Sender[T]) Close() { s.q.close() }

// Disconnected reports whether the pair has been closed.
func (s Sender[T]) Disconnected() bool { return s.q.isClosed() }

// Close disconnects both halves and drops anything still queued.
func (r Receiver[T]) Close() { r.q.close() }

// Disconnected reports whether the pair has been closed.
func (r Receiver[T]) Disconnected() bool { return r.q.isClosed() }

// Len returns the number of queued items.
func (r Receiver[T]) Len() int {
	if r.q == nil {
		return 0
	}
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return len(r.q.items)
}

// TryRecv pops the oldest item if one is queued.
func (r Receiver[T]) TryRecv() (T, bool, error) {
	return r.q.pop()
}

// TryIter returns a single-pass sequence that pops queued items until the
// queue is empty. Items sent while the sequence is being consumed are
// yielded too; an empty or disconnected queue yields nothing.
func (r Receiver[T]) TryIter() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok, _ := r.q.pop()
			if !ok {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Recv blocks until an item arrives, the pair is closed or ctx is done.
func (r Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	q := r.q
	if q == nil {
		return zero, ErrDisconnected
	}
	for {
		v, ok, err := q.pop()
		if err != nil {
			return zero, err
		}
		if ok {
			return v, nil
		}
		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
