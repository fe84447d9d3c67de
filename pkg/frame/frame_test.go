package frame

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManual_Step(t *testing.T) {
	m := NewManual()
	var calls []int

	m.RequestFrame(func(time.Time) { calls = append(calls, 1) })
	m.RequestFrame(func(time.Time) { calls = append(calls, 2) })

	if got := m.Pending(); got != 2 {
		t.Fatalf("Pending: expected 2, got %d", got)
	}
	if got := m.Step(time.Now()); got != 2 {
		t.Errorf("Step: expected 2 callbacks, got %d", got)
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("expected callbacks in request order, got %v", calls)
	}
	if got := m.Step(time.Now()); got != 0 {
		t.Errorf("second Step: expected 0 callbacks, got %d", got)
	}
}

func TestManual_Cancel(t *testing.T) {
	m := NewManual()
	ran := false

	cancel := m.RequestFrame(func(time.Time) { ran = true })
	cancel()
	cancel()

	m.Step(time.Now())
	if ran {
		t.Error("cancelled callback ran")
	}
	if m.Pending() != 0 {
		t.Errorf("expected no pending callbacks, got %d", m.Pending())
	}
}

func TestManual_RequestDuringFrameRunsNextFrame(t *testing.T) {
	m := NewManual()
	count := 0

	var again func(time.Time)
	again = func(time.Time) {
		count++
		m.RequestFrame(again)
	}
	m.RequestFrame(again)

	m.Step(time.Now())
	if count != 1 {
		t.Fatalf("expected 1 run after first frame, got %d", count)
	}
	m.Step(time.Now())
	if count != 2 {
		t.Errorf("expected 2 runs after second frame, got %d", count)
	}
}

func TestEvery(t *testing.T) {
	m := NewManual()
	count := 0

	stop := Every(m, func(time.Time) { count++ })
	for i := 0; i < 3; i++ {
		m.Step(time.Now())
	}
	if count != 3 {
		t.Fatalf("expected 3 runs, got %d", count)
	}

	stop()
	stop()
	m.Step(time.Now())
	if count != 3 {
		t.Errorf("expected no runs after stop, got %d", count)
	}
	if m.Pending() != 0 {
		t.Errorf("expected stop to cancel the pending frame, got %d pending", m.Pending())
	}
}

func TestEvery_StopFromCallback(t *testing.T) {
	m := NewManual()
	count := 0

	var stop func()
	stop = Every(m, func(time.Time) {
		count++
		stop()
	})

	m.Step(time.Now())
	m.Step(time.Now())
	if count != 1 {
		t.Errorf("expected 1 run, got %d", count)
	}
}

func TestLoop_DeliversFrames(t *testing.T) {
	l := NewLoop(LoopConfig{FPS: 1000})
	defer l.Close()

	if l.Interval() != time.Millisecond {
		t.Errorf("Interval: expected 1ms, got %v", l.Interval())
	}

	var count atomic.Int32
	done := make(chan struct{})
	stop := Every(l, func(time.Time) {
		if count.Add(1) == 3 {
			close(done)
		}
	})
	defer stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected 3 frames, got %d", count.Load())
	}
}

func TestLoop_PauseResume(t *testing.T) {
	l := NewLoop(LoopConfig{FPS: 1000})
	defer l.Close()

	l.Pause()
	if !l.Paused() {
		t.Fatal("expected loop to be paused")
	}

	ran := make(chan struct{}, 1)
	l.RequestFrame(func(time.Time) { ran <- struct{}{} })

	select {
	case <-ran:
		t.Fatal("frame delivered while paused")
	case <-time.After(30 * time.Millisecond):
	}

	l.Resume()
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("frame not delivered after Resume")
	}
}

func TestLoop_Close(t *testing.T) {
	l := NewLoop(LoopConfig{})
	if l.Interval() != time.Second/DefaultFPS {
		t.Errorf("Interval: expected default, got %v", l.Interval())
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	var ran atomic.Bool
	l.RequestFrame(func(time.Time) { ran.Store(true) })
	time.Sleep(40 * time.Millisecond)
	if ran.Load() {
		t.Error("frame delivered after Close")
	}
}
