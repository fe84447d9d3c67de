package reactive

import "sync/atomic"

// globalIDCounter is the source of unique IDs for signals and listeners.
var globalIDCounter uint64

// NextID returns the next unique ID for a reactive primitive.
// IDs are monotonically increasing and never reused. Custom Listener
// implementations use it to obtain an ID that cannot collide with the
// package's own listeners.
func NextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}
