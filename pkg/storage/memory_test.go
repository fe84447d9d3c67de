package storage

import (
	"context"
	"testing"
)

// TestMemoryArea tests the in-memory storage area implementation.
func TestMemoryArea(t *testing.T) {
	area := NewMemoryArea()
	defer area.Close()

	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		value, ok, err := area.GetItem(ctx, "count")
		if err != nil {
			t.Fatalf("GetItem failed: %v", err)
		}
		if ok || value != "" {
			t.Errorf("GetItem returned (%q, %v) for missing key", value, ok)
		}
	})

	t.Run("SetGet", func(t *testing.T) {
		if err := area.SetItem(ctx, "count", "5"); err != nil {
			t.Fatalf("SetItem failed: %v", err)
		}
		value, ok, err := area.GetItem(ctx, "count")
		if err != nil || !ok || value != "5" {
			t.Errorf("GetItem: got (%q, %v, %v), want 5", value, ok, err)
		}
	})

	t.Run("EmptyStringIsPresent", func(t *testing.T) {
		if err := area.SetItem(ctx, "blank", ""); err != nil {
			t.Fatalf("SetItem failed: %v", err)
		}
		if _, ok, _ := area.GetItem(ctx, "blank"); !ok {
			t.Error("empty value should still be present")
		}
	})

	t.Run("Keys", func(t *testing.T) {
		keys, err := area.Keys(ctx)
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if len(keys) != 2 || keys[0] != "blank" || keys[1] != "count" {
			t.Errorf("Keys: got %v", keys)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := area.RemoveItem(ctx, "count"); err != nil {
			t.Fatalf("RemoveItem failed: %v", err)
		}
		if err := area.RemoveItem(ctx, "count"); err != nil {
			t.Fatalf("RemoveItem of missing key failed: %v", err)
		}
		if area.Len() != 1 {
			t.Errorf("Len: got %d, want 1", area.Len())
		}
	})
}

func TestMemoryArea_Watch(t *testing.T) {
	area := NewMemoryArea()
	var events []Event
	stop := area.Watch(func(ev Event) {
		events = append(events, ev)
	})

	ctx := WithOrigin(context.Background(), "tab-1")
	_ = area.SetItem(ctx, "theme", `"light"`)
	_ = area.SetItem(ctx, "theme", `"dark"`)
	_ = area.RemoveItem(ctx, "theme")
	_ = area.RemoveItem(ctx, "theme")

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if ev := events[0]; ev.Key != "theme" || *ev.NewValue != `"light"` || ev.OldValue != nil || ev.Origin != "tab-1" {
		t.Errorf("first event: %+v", ev)
	}
	if ev := events[1]; *ev.OldValue != `"light"` || *ev.NewValue != `"dark"` {
		t.Errorf("second event: %+v", ev)
	}
	if ev := events[2]; ev.NewValue != nil || *ev.OldValue != `"dark"` {
		t.Errorf("remove event: %+v", ev)
	}

	stop()
	_ = area.SetItem(ctx, "theme", `"auto"`)
	if len(events) != 3 {
		t.Errorf("stopped watcher received an event")
	}
}

func TestMemoryArea_Closed(t *testing.T) {
	area := NewMemoryArea()
	if err := area.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := area.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	ctx := context.Background()
	if err := area.SetItem(ctx, "k", "1"); err == nil {
		t.Error("SetItem should fail after Close")
	}
	if _, _, err := area.GetItem(ctx, "k"); err == nil {
		t.Error("GetItem should fail after Close")
	}
	if _, err := area.Keys(ctx); err == nil {
		t.Error("Keys should fail after Close")
	}
}
