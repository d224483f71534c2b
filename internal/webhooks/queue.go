package webhooks

import (
	"sync"
	"time"
)

// Delivery is one queued webhook call.
type Delivery struct {
	ID            string
	SessionID     string
	EventType     string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
}

// Queue is a bounded in-memory delivery queue.
type Queue struct {
	mu    sync.Mutex
	items []Delivery
	size  int
}

func NewQueue(size int) *Queue {
	return &Queue{size: size}
}

// Enqueue adds d. It reports false when the queue is full.
func (q *Queue) Enqueue(d Delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size > 0 && len(q.items) >= q.size {
		return false
	}
	q.items = append(q.items, d)
	return true
}

// Due removes and returns up to limit deliveries whose next attempt is not
// after now, oldest first.
func (q *Queue) Due(now time.Time, limit int) []Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Delivery
	keep := q.items[:0]
	for _, d := range q.items {
		if len(out) < limit && !d.NextAttemptAt.After(now) {
			out = append(out, d)
			continue
		}
		keep = append(keep, d)
	}
	q.items = keep
	return out
}

// Retry puts d back for a later attempt.
func (q *Queue) Retry(d Delivery) {
	q.mu.Lock()
	q.items = append(q.items, d)
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
