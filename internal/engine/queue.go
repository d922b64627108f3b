package engine

import (
	"sync"
)

// envelope pairs a command with the channel its result is delivered on.
type envelope struct {
	cmd   Command
	reply chan Result // buffered, size 1
}

// commandQueue is a thread-safe FIFO queue of submitted commands.
//
// The queue is unbounded so that producers (CLI script readers, API
// handlers) never block on a slow writer; back-pressure is the caller's
// choice of whether to wait on the reply.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type commandQueue struct {
	mu      sync.Mutex
	pending []envelope
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

// defaultQueueHint is the initial queue capacity.
const defaultQueueHint = 64

// newCommandQueue creates an empty command queue with room for hint
// commands before it grows.
func newCommandQueue(hint int) *commandQueue {
	if hint < 1 {
		hint = defaultQueueHint
	}
	return &commandQueue{
		pending: make([]envelope, 0, hint),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds an envelope to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *commandQueue) Enqueue(e envelope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.pending = append(q.pending, e)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (envelope{}, false) if queue is empty.
func (q *commandQueue) TryDequeue() (envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return envelope{}, false
	}

	e := q.pending[0]

	// Nil out the slot so the reply channel can be collected.
	q.pending[0] = envelope{}

	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}

	return e, true
}

// Wait returns a channel that signals when commands may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *commandQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Closed reports whether Close has been called.
func (q *commandQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more commands will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *commandQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
