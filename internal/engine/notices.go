package engine

import "sync"

// NoticeKind distinguishes user-visible notices.
type NoticeKind string

const (
	// NoticeSessionExpired follows a forced logout.
	NoticeSessionExpired NoticeKind = "session_expired"
	// NoticeRejected carries a validation message from the backend.
	NoticeRejected NoticeKind = "rejected"
	// NoticeConflict reports that another client changed an order first.
	NoticeConflict NoticeKind = "conflict"
	// NoticeNetwork reports that the backend could not be reached.
	NoticeNetwork NoticeKind = "network"
	// NoticeOrderPlaced confirms an order, including a replayed pending order.
	NoticeOrderPlaced NoticeKind = "order_placed"
)

// Notice is a message for whoever is presenting the engine to a user.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	OrderID string     `json:"order_id,omitempty"`
}

// NoticeQueue is a thread-safe FIFO of notices.
//
// The queue is unbounded; a UI that never drains it only costs memory for
// the notices produced. Pollers and operations push from any goroutine.
//
// The queue uses a channel for signaling so consumers can wait with a
// context:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryNext
//	}
type NoticeQueue struct {
	mu      sync.Mutex
	notices []Notice
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

// newNoticeQueue creates an empty notice queue.
func newNoticeQueue() *NoticeQueue {
	return &NoticeQueue{
		notices: make([]Notice, 0, 8),
		signal:  make(chan struct{}, 1),
	}
}

// Push adds a notice to the back of the queue.
// Returns false if the queue is closed.
func (q *NoticeQueue) Push(n Notice) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.notices = append(q.notices, n)

	// Non-blocking; the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryNext removes and returns the front notice without blocking.
// Returns (Notice{}, false) if the queue is empty.
func (q *NoticeQueue) TryNext() (Notice, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.notices) == 0 {
		return Notice{}, false
	}

	n := q.notices[0]
	q.notices[0] = Notice{}
	if len(q.notices) == 1 {
		q.notices = q.notices[:0]
	} else {
		q.notices = q.notices[1:]
	}
	return n, true
}

// Drain removes and returns every queued notice.
func (q *NoticeQueue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Notice, len(q.notices))
	copy(out, q.notices)
	q.notices = q.notices[:0]
	return out
}

// Wait returns a channel that signals when notices may be available.
func (q *NoticeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *NoticeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.notices)
}

// Close signals that no more notices will be pushed and wakes any waiters.
func (q *NoticeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
