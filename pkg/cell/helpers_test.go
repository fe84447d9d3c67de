package cell

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vango-dev/storesync/pkg/frame"
	"github.com/vango-dev/storesync/pkg/storage"
)

// logRecorder is an slog.Handler that keeps every record.
type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *logRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (h *logRecorder) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r.Clone())
	h.mu.Unlock()
	return nil
}

func (h *logRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *logRecorder) WithGroup(string) slog.Handler      { return h }

// codes returns the code attribute of every error record, in order.
func (h *logRecorder) codes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var codes []string
	for _, r := range h.records {
		if r.Level != slog.LevelError {
			continue
		}
		code := ""
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "code" {
				code = a.Value.String()
				return false
			}
			return true
		})
		codes = append(codes, code)
	}
	return codes
}

// countingArea wraps an area and counts writes. It does not implement
// storage.Observable, so writes made on it produce no notifications.
type countingArea struct {
	storage.Area
	sets atomic.Int32
}

func (a *countingArea) SetItem(ctx context.Context, key, value string) error {
	a.sets.Add(1)
	return a.Area.SetItem(ctx, key, value)
}

// failingArea fails every write.
type failingArea struct {
	storage.Area
	err error
}

func (a *failingArea) SetItem(context.Context, string, string) error {
	return a.err
}

type testHost struct {
	*Host
	frames     *frame.Manual
	persistent *storage.MemoryArea
	session    *storage.MemoryArea
	logs       *logRecorder
}

// newTestHost builds a host with in-memory areas and manual frames.
// cfg fields left zero are filled in.
func newTestHost(t *testing.T, cfg HostConfig) *testHost {
	t.Helper()

	th := &testHost{
		frames:     frame.NewManual(),
		persistent: storage.NewMemoryArea(),
		session:    storage.NewMemoryArea(),
		logs:       &logRecorder{},
	}
	if cfg.Persistent == nil {
		cfg.Persistent = th.persistent
	}
	if cfg.Session == nil {
		cfg.Session = th.session
	}
	if cfg.Frames == nil {
		cfg.Frames = th.frames
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(th.logs)
	}

	th.Host = NewHost(cfg)
	t.Cleanup(func() { th.Host.Close() })
	return th
}

// step runs n frames.
func (th *testHost) step(n int) {
	for i := 0; i < n; i++ {
		th.frames.Step(fixedNow)
	}
}

func getItem(t *testing.T, area storage.Area, key string) (string, bool) {
	t.Helper()
	text, ok, err := area.GetItem(context.Background(), key)
	if err != nil {
		t.Fatalf("GetItem(%q) failed: %v", key, err)
	}
	return text, ok
}

func setItem(t *testing.T, area storage.Area, key, value string) {
	t.Helper()
	if err := area.SetItem(context.Background(), key, value); err != nil {
		t.Fatalf("SetItem(%q) failed: %v", key, err)
	}
}

// setItemAs writes as origin, so hosts with that ID ignore the write.
func setItemAs(t *testing.T, area storage.Area, origin, key, value string) {
	t.Helper()
	ctx := storage.WithOrigin(context.Background(), origin)
	if err := area.SetItem(ctx, key, value); err != nil {
		t.Fatalf("SetItem(%q) failed: %v", key, err)
	}
}

func expectCodes(t *testing.T, logs *logRecorder, want ...string) {
	t.Helper()
	got := logs.codes()
	if len(got) != len(want) {
		t.Fatalf("expected logged codes %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected logged codes %v, got %v", want, got)
		}
	}
}
