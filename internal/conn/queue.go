package conn

import (
	"sync"

	"venuegate/internal/domain"
)

// Queue is the FIFO notification queue owned by the connection manager.
// Drain order equals enqueue order, independent of event timestamps.
type Queue struct {
	mu      sync.Mutex
	items   []domain.Notification
	emitAll bool
}

// NewQueue creates a queue. When emitAll is false, low-priority informational
// notifications are dropped on enqueue.
func NewQueue(emitAll bool) *Queue {
	return &Queue{emitAll: emitAll}
}

// Push enqueues one notification, subject to the informational filter.
func (q *Queue) Push(n domain.Notification) {
	if n.Informational && !q.emitAll {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()
}

// Pop removes and returns the oldest notification. Non-blocking.
func (q *Queue) Pop() (domain.Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.Notification{}, false
	}
	n := q.items[0]
	q.items = q.items[1:]
	return n, true
}

// Len reports the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
