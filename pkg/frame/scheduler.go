package frame

import (
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs callbacks on the next frame.
type Scheduler interface {
	// RequestFrame queues fn for the next frame. The returned function
	// cancels the request if it has not run yet.
	RequestFrame(fn func(now time.Time)) (cancel func())
}

type request struct {
	fn        func(time.Time)
	cancelled atomic.Bool
}

// queue holds the callbacks waiting for the next frame.
type queue struct {
	mu   sync.Mutex
	reqs []*request
}

func (q *queue) add(fn func(time.Time)) func() {
	r := &request{fn: fn}

	q.mu.Lock()
	q.reqs = append(q.reqs, r)
	q.mu.Unlock()

	return func() {
		if !r.cancelled.CompareAndSwap(false, true) {
			return
		}
		q.mu.Lock()
		defer q.mu.Unlock()
		for i, other := range q.reqs {
			if other == r {
				q.reqs = append(q.reqs[:i], q.reqs[i+1:]...)
				return
			}
		}
	}
}

// take removes and returns every pending request.
func (q *queue) take() []*request {
	q.mu.Lock()
	defer q.mu.Unlock()
	reqs := q.reqs
	q.reqs = nil
	return reqs
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reqs)
}

// run calls each request in order. Requests made by the callbacks land in
// the next frame.
func run(reqs []*request, now time.Time) {
	for _, r := range reqs {
		if r.cancelled.Load() {
			continue
		}
		r.fn(now)
	}
}
