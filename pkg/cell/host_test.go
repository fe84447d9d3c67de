package cell

import (
	"testing"

	"github.com/vango-dev/storesync/pkg/frame"
	"github.com/vango-dev/storesync/pkg/storage"
)

func TestNewHost_Defaults(t *testing.T) {
	h := NewHost(HostConfig{})

	if h.ID() == "" {
		t.Error("expected a host ID")
	}
	if h.Area(storage.Persistent) == nil || h.Area(storage.Session) == nil {
		t.Fatal("expected default areas")
	}
	if h.Area(storage.Persistent) == h.Area(storage.Session) {
		t.Error("persistent and session areas should differ")
	}
	if _, ok := h.Frames().(*frame.Loop); !ok {
		t.Errorf("expected a default frame loop, got %T", h.Frames())
	}
	if h.Bus() == nil || h.Logger() == nil {
		t.Error("expected default bus and logger")
	}
	if h.opTimeout != DefaultOpTimeout {
		t.Errorf("opTimeout: expected %v, got %v", DefaultOpTimeout, h.opTimeout)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, _, err := h.Area(storage.Persistent).GetItem(t.Context(), "k"); err == nil {
		t.Error("expected the default area to be closed")
	}
}

func TestNewHost_UniqueIDs(t *testing.T) {
	a := newTestHost(t, HostConfig{})
	b := newTestHost(t, HostConfig{})
	if a.ID() == b.ID() {
		t.Error("hosts should have distinct IDs")
	}
}

func TestHost_ForwardsForeignWrites(t *testing.T) {
	th := newTestHost(t, HostConfig{})

	var got []storage.Event
	th.Bus().Subscribe(func(ev storage.Event) { got = append(got, ev) })

	setItemAs(t, th.session, "elsewhere", "k", "1")
	setItemAs(t, th.session, th.ID(), "k", "2")

	if len(got) != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", len(got))
	}
	ev := got[0]
	if ev.Key != "k" || ev.Scope != storage.Session || ev.Synthetic || ev.NewValue == nil || *ev.NewValue != "1" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestHost_CloseDetachesCells(t *testing.T) {
	th := newTestHost(t, HostConfig{})
	a, _ := Attach(th.Host, "a", 0)
	b, _ := Attach(th.Host, "b", "x")

	if err := th.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !a.Detached() || !b.Detached() {
		t.Error("expected cells to be detached")
	}
	if th.Cells() != 0 || th.frames.Pending() != 0 {
		t.Errorf("expected no cells and no frames, got %d and %d", th.Cells(), th.frames.Pending())
	}

	// Forwarding stopped.
	var got int
	th.Bus().Subscribe(func(storage.Event) { got++ })
	setItemAs(t, th.persistent, "elsewhere", "a", "3")
	if got != 0 {
		t.Errorf("closed host forwarded %d events", got)
	}
}

// Two hosts over one area behave like two tabs of one origin.
func TestHosts_SharedArea(t *testing.T) {
	shared := storage.NewMemoryArea()
	tabA := newTestHost(t, HostConfig{Persistent: shared})
	tabB := newTestHost(t, HostConfig{Persistent: shared})

	a, setA := Attach(tabA.Host, "count", 0)
	b, setB := Attach(tabB.Host, "count", 0)

	setA(3)
	if b.Peek() != 3 {
		t.Errorf("tab B: expected 3, got %d", b.Peek())
	}

	setB(8)
	if a.Peek() != 8 {
		t.Errorf("tab A: expected 8, got %d", a.Peek())
	}
	if text, _ := getItem(t, shared, "count"); text != "8" {
		t.Errorf("storage: expected \"8\", got %q", text)
	}

	expectCodes(t, tabA.logs)
	expectCodes(t, tabB.logs)
}

func TestHosts_SharedAreaCorruptWrite(t *testing.T) {
	shared := storage.NewMemoryArea()
	tabA := newTestHost(t, HostConfig{Persistent: shared})
	a, setA := Attach[any](tabA.Host, "count", 0)
	setA(2)

	// Another context stores a value of the wrong kind.
	setItemAs(t, shared, "other-tab", "count", `"two"`)

	if a.Peek() != 0 {
		t.Errorf("handle: expected revert to 0, got %v", a.Peek())
	}
	if text, _ := getItem(t, shared, "count"); text != "0" {
		t.Errorf("storage: expected reseeded \"0\", got %q", text)
	}
	expectCodes(t, tabA.logs, codeTypeMismatch)
}
