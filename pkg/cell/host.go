package cell

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/storesync/pkg/frame"
	"github.com/vango-dev/storesync/pkg/storage"
)

// DefaultOpTimeout bounds each storage operation a cell performs.
const DefaultOpTimeout = 5 * time.Second

const defaultTracerName = "storesync"

// HostConfig configures a Host.
type HostConfig struct {
	// Persistent backs cells attached with the default scope.
	// Default: a new storage.MemoryArea.
	Persistent storage.Area

	// Session backs cells attached WithScope(storage.Session).
	// Default: a new storage.MemoryArea.
	Session storage.Area

	// Bus carries notifications between the host's cells.
	// Default: storage.NewLocalBus().
	Bus storage.Bus

	// Frames drives the fallback poll.
	// Default: frame.NewLoop(frame.LoopConfig{}).
	Frames frame.Scheduler

	// Logger receives every recovered failure.
	// Default: slog.Default().
	Logger *slog.Logger

	// Metrics records cell activity. Nil disables metrics.
	Metrics *Metrics

	// TracerName names the OpenTelemetry tracer.
	// Default: "storesync".
	TracerName string

	// OpTimeout bounds each storage operation.
	// Default: 5s.
	OpTimeout time.Duration
}

// Host is the execution context cells live in, the equivalent of one
// browser tab. Cells of one host share its storage areas, its notification
// bus and its frame scheduler.
//
// Writes from a host are tagged with its ID. When an area reports a write
// (storage.Observable), the host publishes it on its bus as a native
// notification unless the host made the write itself.
type Host struct {
	id        string
	areas     map[storage.Scope]storage.Area
	bus       storage.Bus
	frames    frame.Scheduler
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	opTimeout time.Duration

	mu      sync.Mutex
	cells   map[uint64]func()
	unwatch []func()
	owned   []io.Closer
	closed  bool
}

// NewHost creates a host and starts forwarding area notifications.
func NewHost(cfg HostConfig) *Host {
	h := &Host{
		id:        uuid.NewString(),
		areas:     make(map[storage.Scope]storage.Area, 2),
		bus:       cfg.Bus,
		frames:    cfg.Frames,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		opTimeout: cfg.OpTimeout,
		cells:     make(map[uint64]func()),
	}

	if cfg.Persistent == nil {
		area := storage.NewMemoryArea()
		cfg.Persistent = area
		h.owned = append(h.owned, area)
	}
	if cfg.Session == nil {
		area := storage.NewMemoryArea()
		cfg.Session = area
		h.owned = append(h.owned, area)
	}
	h.areas[storage.Persistent] = cfg.Persistent
	h.areas[storage.Session] = cfg.Session

	if h.bus == nil {
		h.bus = storage.NewLocalBus()
	}
	if h.frames == nil {
		loop := frame.NewLoop(frame.LoopConfig{})
		h.frames = loop
		h.owned = append(h.owned, loop)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.opTimeout <= 0 {
		h.opTimeout = DefaultOpTimeout
	}

	name := cfg.TracerName
	if name == "" {
		name = defaultTracerName
	}
	h.tracer = otel.Tracer(name)

	for scope, area := range h.areas {
		if obs, ok := area.(storage.Observable); ok {
			h.unwatch = append(h.unwatch, obs.Watch(h.forward(scope)))
		}
	}

	return h
}

// forward returns a watcher that republishes foreign writes to scope's
// area as native notifications.
func (h *Host) forward(scope storage.Scope) func(storage.Event) {
	return func(ev storage.Event) {
		if ev.Origin == h.id {
			return
		}
		ev.Scope = scope
		ev.Synthetic = false
		h.bus.Publish(ev)
	}
}

// ID returns the host's origin identifier.
func (h *Host) ID() string {
	return h.id
}

// Area returns the storage area backing scope.
func (h *Host) Area(scope storage.Scope) storage.Area {
	return h.areas[scope]
}

// Bus returns the host's notification bus.
func (h *Host) Bus() storage.Bus {
	return h.bus
}

// Frames returns the host's frame scheduler.
func (h *Host) Frames() frame.Scheduler {
	return h.frames
}

// Logger returns the host's logger.
func (h *Host) Logger() *slog.Logger {
	return h.logger
}

// Cells returns the number of attached cells.
func (h *Host) Cells() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cells)
}

// track registers a cell's detach function. It reports false if the host
// is closed.
func (h *Host) track(id uint64, detach func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.cells[id] = detach
	return true
}

func (h *Host) untrack(id uint64) {
	h.mu.Lock()
	delete(h.cells, id)
	h.mu.Unlock()
}

// Close detaches every cell, stops forwarding notifications and releases
// the areas and frame loop the host created itself. Areas passed in
// HostConfig are left open.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	detach := make([]func(), 0, len(h.cells))
	for _, fn := range h.cells {
		detach = append(detach, fn)
	}
	unwatch := h.unwatch
	h.unwatch = nil
	h.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
	for _, stop := range unwatch {
		stop()
	}

	var firstErr error
	for _, c := range h.owned {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
