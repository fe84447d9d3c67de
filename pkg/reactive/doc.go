// Package reactive provides the observable values storage cells are built on.
//
// A Signal holds a value and notifies its listeners when the value changes.
// Reads made while a listener is being tracked subscribe that listener:
//
//	count := reactive.NewSignal(0)
//
//	w := reactive.Watch(count, func(v int) {
//	    fmt.Println("count is now", v)
//	})
//	defer w.Stop()
//
//	count.Set(1) // prints "count is now 1"
//
// # Batching
//
// Batch groups updates so every affected listener is notified once:
//
//	reactive.Batch(func() {
//	    first.Set("Ada")
//	    last.Set("Lovelace")
//	})
//
// # Silent updates
//
// SetSkipping updates a signal without notifying one specific listener. A
// watcher that writes the value it is watching uses this to avoid observing
// its own write.
package reactive
