package frame

import (
	"sync"
	"time"
)

// Every runs fn once per frame until stop is called. The first run is on
// the next frame. stop is safe to call more than once and from fn.
func Every(s Scheduler, fn func(now time.Time)) (stop func()) {
	t := &task{s: s, fn: fn}
	t.schedule()
	return t.stop
}

type task struct {
	s  Scheduler
	fn func(time.Time)

	mu      sync.Mutex
	cancel  func()
	stopped bool
}

func (t *task) schedule() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.cancel = t.s.RequestFrame(t.tick)
}

func (t *task) tick(now time.Time) {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return
	}

	t.fn(now)
	t.schedule()
}

func (t *task) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.cancel != nil {
		t.cancel()
	}
}
