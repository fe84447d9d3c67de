package reactive

import "sync/atomic"

// Watcher calls a function synchronously every time a signal changes.
type Watcher[T any] struct {
	id      uint64
	sig     *Signal[T]
	fn      func(T)
	stopped atomic.Bool
}

// Watch subscribes fn to changes of s. fn receives the value current at
// notification time. The watcher does not fire for the value s holds now.
func Watch[T any](s *Signal[T], fn func(T)) *Watcher[T] {
	w := &Watcher[T]{
		id:  NextID(),
		sig: s,
		fn:  fn,
	}
	s.Subscribe(w)
	return w
}

// MarkDirty implements Listener.
func (w *Watcher[T]) MarkDirty() {
	if w.stopped.Load() {
		return
	}
	w.fn(w.sig.Peek())
}

// ID implements Listener.
func (w *Watcher[T]) ID() uint64 {
	return w.id
}

// Stop unsubscribes the watcher. Safe to call more than once.
func (w *Watcher[T]) Stop() {
	if w.stopped.CompareAndSwap(false, true) {
		w.sig.Unsubscribe(w)
	}
}
