package reactive

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// trackingContext holds the reactive state for a goroutine.
type trackingContext struct {
	// currentListener is what's currently tracking dependencies.
	// nil means no tracking (reads don't create subscriptions).
	currentListener Listener

	// batchDepth tracks nested Batch() calls.
	batchDepth int

	// pendingUpdates accumulates listeners to notify when the batch completes.
	pendingUpdates []Listener
}

// trackingContexts stores per-goroutine tracking contexts.
var trackingContexts sync.Map

// activeListeners and activeBatches count WithListener and Batch calls in
// flight across all goroutines. While both are zero no goroutine can hold
// a listener or a batch, and reads and writes skip the goroutine lookup.
var (
	activeListeners atomic.Int64
	activeBatches   atomic.Int64
)

// getGoroutineID returns a unique identifier for the current goroutine,
// parsed from the "goroutine <id> " stack header.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine,
// creating it on first use.
func getTrackingContext() *trackingContext {
	gid := getGoroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}

	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// releaseTrackingContext drops the current goroutine's context once it holds
// no state, so short-lived goroutines do not accumulate entries.
func releaseTrackingContext(ctx *trackingContext) {
	if ctx.currentListener == nil && ctx.batchDepth == 0 && len(ctx.pendingUpdates) == 0 {
		trackingContexts.Delete(getGoroutineID())
	}
}

func getCurrentListener() Listener {
	if activeListeners.Load() == 0 {
		return nil
	}
	gid := getGoroutineID()
	ctx, ok := trackingContexts.Load(gid)
	if !ok {
		return nil
	}
	return ctx.(*trackingContext).currentListener
}

// setCurrentListener sets the current listener and returns the previous one.
func setCurrentListener(l Listener) Listener {
	ctx := getTrackingContext()
	old := ctx.currentListener
	ctx.currentListener = l
	releaseTrackingContext(ctx)
	return old
}

func getBatchDepth() int {
	if activeBatches.Load() == 0 {
		return 0
	}
	gid := getGoroutineID()
	ctx, ok := trackingContexts.Load(gid)
	if !ok {
		return 0
	}
	return ctx.(*trackingContext).batchDepth
}

func incrementBatchDepth() {
	getTrackingContext().batchDepth++
}

// decrementBatchDepth returns true when the outermost batch completed.
func decrementBatchDepth() bool {
	ctx := getTrackingContext()
	ctx.batchDepth--
	return ctx.batchDepth == 0
}

func queuePendingUpdate(l Listener) {
	ctx := getTrackingContext()
	ctx.pendingUpdates = append(ctx.pendingUpdates, l)
}

func drainPendingUpdates() []Listener {
	ctx := getTrackingContext()
	updates := ctx.pendingUpdates
	ctx.pendingUpdates = nil
	releaseTrackingContext(ctx)
	return updates
}

// WithListener runs fn with l as the tracking listener. Signals read through
// Get inside fn subscribe l.
func WithListener(l Listener, fn func()) {
	activeListeners.Add(1)
	defer activeListeners.Add(-1)

	old := setCurrentListener(l)
	defer setCurrentListener(old)
	fn()
}
