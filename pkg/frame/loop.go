package frame

import (
	"sync"
	"time"
)

// DefaultFPS is the frame rate used when LoopConfig.FPS is zero.
const DefaultFPS = 60

// LoopConfig configures a Loop.
type LoopConfig struct {
	// FPS is the number of frames per second.
	// Default: 60.
	FPS int
}

// Loop is a frame clock. Callbacks run on the loop's goroutine, one frame
// at a time. The clock is stopped while nothing is pending or the loop is
// paused.
type Loop struct {
	q        queue
	interval time.Duration

	mu     sync.Mutex
	paused bool
	closed bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewLoop creates and starts a frame loop.
func NewLoop(cfg LoopConfig) *Loop {
	fps := cfg.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}

	l := &Loop{
		interval: time.Second / time.Duration(fps),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	l.wg.Add(1)
	go l.run()
	return l
}

// RequestFrame implements Scheduler. Requests made after Close never run.
func (l *Loop) RequestFrame(fn func(now time.Time)) func() {
	cancel := l.q.add(fn)
	l.notify()
	return cancel
}

// Pause stops frame delivery until Resume. Pending callbacks are kept.
func (l *Loop) Pause() {
	l.mu.Lock()
	l.paused = true
	l.mu.Unlock()
	l.notify()
}

// Resume restarts frame delivery.
func (l *Loop) Resume() {
	l.mu.Lock()
	l.paused = false
	l.mu.Unlock()
	l.notify()
}

// Paused reports whether frame delivery is paused.
func (l *Loop) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// Interval returns the time between frames.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Close stops the loop and waits for the current frame to finish.
// Close must not be called from a frame callback.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()
	return nil
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) active() bool {
	l.mu.Lock()
	paused := l.paused
	l.mu.Unlock()
	return !paused && l.q.len() > 0
}

func (l *Loop) run() {
	defer l.wg.Done()

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		if l.active() {
			if ticker == nil {
				ticker = time.NewTicker(l.interval)
				tick = ticker.C
			}
		} else if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}

		select {
		case <-l.done:
			return
		case <-l.wake:
		case now := <-tick:
			if l.Paused() {
				continue
			}
			run(l.q.take(), now)
		}
	}
}
