package frame

import "time"

// Manual is a Scheduler whose frames are delivered by Step.
type Manual struct {
	q queue
}

// NewManual creates a manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// RequestFrame implements Scheduler.
func (m *Manual) RequestFrame(fn func(now time.Time)) func() {
	return m.q.add(fn)
}

// Step runs one frame on the calling goroutine and returns the number of
// callbacks that were due.
func (m *Manual) Step(now time.Time) int {
	reqs := m.q.take()
	run(reqs, now)
	return len(reqs)
}

// Pending returns the number of callbacks waiting for the next frame.
func (m *Manual) Pending() int {
	return m.q.len()
}
