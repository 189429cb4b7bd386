package scan

import (
	"context"
	"sync"
	"time"

	"github.com/licenscan/licenscan/pkg/deps"
)

// item is a unit of work: one identity awaiting resolution.
type item struct {
	id deps.Identity
}

// queue is a mutex-guarded FIFO that also tracks how many popped items are
// still being processed. Workers use the in-flight count to decide whether
// an empty queue means the scan is finished or merely that other workers may
// still discover new dependencies.
//
// The count shares the queue's lock so "queue empty and nothing in flight"
// is observed atomically; checking the two separately would let a worker
// exit while another is about to push new children.
type queue struct {
	mu       sync.Mutex
	items    []item
	inflight int
}

func newQueue() *queue {
	return &queue{}
}

// push appends an item.
func (q *queue) push(it item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()
}

// pop removes the oldest item, blocking until one is available. It returns
// ok=false when the queue is empty with no item in flight, meaning no more
// work can appear, or when ctx is cancelled.
//
// A successful pop increments the in-flight count; the caller must call
// done after processing the item.
func (q *queue) pop(ctx context.Context) (item, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items = q.items[1:]
			q.inflight++
			q.mu.Unlock()
			return it, true
		}
		idle := q.inflight == 0
		q.mu.Unlock()

		if idle {
			return item{}, false
		}
		select {
		case <-ctx.Done():
			return item{}, false
		case <-time.After(time.Millisecond):
		}
	}
}

// done marks one popped item as fully processed, including any pushes it
// performed.
func (q *queue) done() {
	q.mu.Lock()
	q.inflight--
	q.mu.Unlock()
}
