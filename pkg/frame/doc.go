// Package frame delivers per-frame callbacks.
//
// A Scheduler runs each requested callback once, on the next frame.
// Callbacks that want to run every frame request the following frame
// themselves; Every wraps that pattern and returns a stop handle.
//
// Two schedulers are provided. Loop is a frame clock that only ticks while
// callbacks are pending and can be paused, the way a browser stops
// delivering animation frames to a hidden tab. Manual delivers frames only
// when Step is called, for tests and for hosts that own their render loop.
package frame
